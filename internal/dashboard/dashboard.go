// Package dashboard implements the engine's HTTP control plane: a
// status/control/config surface plus a 2Hz Server-Sent-Events stream,
// served over the standard library's net/http and http.ServeMux.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hft-engine/internal/enginestate"
	"hft-engine/internal/pnl"
	"hft-engine/internal/risk"
	"hft-engine/internal/storage"
	"hft-engine/internal/strategycore"
	"hft-engine/pkg/tradetypes"
)

const (
	readTimeout  = 5 * time.Second
	writeTimeout = 0 // SSE connections are long-lived; no write deadline is applied
	idleTimeout  = 120 * time.Second
	sseInterval  = 500 * time.Millisecond

	positionEpsilon     = 1e-6
	defaultHistoryLimit = 100
)

// Server exposes the engine's state over HTTP.
type Server struct {
	http *http.Server

	state   *enginestate.State
	pnl     *pnl.State
	risk    *risk.Manager
	storage *storage.Store
	logger  *slog.Logger

	onStart func()
	onStop  func()
}

// Deps carries every dependency the dashboard reads or mutates.
// The control endpoint arms/disarms Risk and toggles State's running
// flag itself; OnStart/OnStop are optional extra hooks it calls after a
// START or STOP, so callers can react without the dashboard importing
// execdispatch or feed directly.
type Deps struct {
	State   *enginestate.State
	PnL     *pnl.State
	Risk    *risk.Manager
	Storage *storage.Store
	OnStart func()
	OnStop  func()
}

// New builds a Server bound to addr (e.g. "127.0.0.1:3000") with every
// route wired. Call Run to start serving.
func New(addr string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		state:   deps.State,
		pnl:     deps.PnL,
		risk:    deps.Risk,
		storage: deps.Storage,
		logger:  logger.With("component", "dashboard"),
		onStart: noopIfNil(deps.OnStart),
		onStop:  noopIfNil(deps.OnStop),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/strategy", s.handleStrategy)
	mux.HandleFunc("/api/strategies", s.handleStrategies)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/pnl_series", s.handlePnLSeries)
	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/sse", s.handleSSE)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

func noopIfNil(f func()) func() {
	if f == nil {
		return func() {}
	}
	return f
}

// Run serves until ctx is cancelled, then shuts the HTTP server down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	snap := s.state.Snapshot(s.pnl.Snapshot())
	writeJSON(w, http.StatusOK, snap)
}

// controlRequest is the body accepted by POST /api/control.
type controlRequest struct {
	Command string `json:"command"`
	Confirm bool   `json:"confirm"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if s.state.ShuttingDown() {
		writeError(w, http.StatusServiceUnavailable, "engine is shutting down")
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	switch req.Command {
	case "START":
		s.risk.Arm()
		s.state.SetRunning(true)
		s.onStart()
		s.state.AddLog("control: START")
	case "STOP":
		s.state.SetRunning(false)
		s.risk.Disarm()
		s.onStop()
		s.state.AddLog("control: STOP")
	case "FLATTEN":
		if !req.Confirm {
			writeError(w, http.StatusBadRequest, "FLATTEN requires confirm=true")
			return
		}
		// Accepted and logged; not yet wired to a close-position path.
		s.state.AddLog("control: FLATTEN (no-op)")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	default:
		writeError(w, http.StatusBadRequest, "unknown command: "+req.Command)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// configRequest is the body accepted by POST /api/config.
type configRequest struct {
	MaxLoss      float64 `json:"max_loss"`
	TargetProfit float64 `json:"target_profit"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.state.SetRiskBounds(req.MaxLoss, req.TargetProfit)
	s.state.AddLog(fmt.Sprintf("control: config updated max_loss=%v target_profit=%v", req.MaxLoss, req.TargetProfit))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// strategyRequest is the body accepted by POST /api/strategy.
type strategyRequest struct {
	Strategy string `json:"strategy"`
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req strategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	position := s.pnl.Snapshot().CurrentPosition
	if abs(position) > positionEpsilon {
		writeError(w, http.StatusConflict, "cannot switch strategy while holding a position")
		return
	}

	s.state.SetActiveStrategy(req.Strategy)
	s.state.AddLog("control: strategy switched to " + req.Strategy)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	writeJSON(w, http.StatusOK, strategycore.Names())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		rows, err := s.storage.History(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rows)
	case http.MethodDelete:
		if err := s.storage.DeleteHistory(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or DELETE only")
	}
}

func (s *Server) handlePnLSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	if r.URL.Query().Get("mode") == "historical" {
		rows, err := s.storage.History(r.Context(), -1) // SQLite treats LIMIT -1 as unbounded
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		points := make([]tradetypes.PnLPoint, 0, len(rows))
		for _, rec := range rows {
			points = append(points, tradetypes.PnLPoint{TimestampMs: rec.ExchangeTsMs, RealizedPnL: rec.PnL})
		}
		writeJSON(w, http.StatusOK, points)
		return
	}
	writeJSON(w, http.StatusOK, s.pnl.History())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	writeJSON(w, http.StatusOK, s.state.RecentLogs())
}

// handleSSE streams an SSEFrame every 500ms (2Hz) until the client
// disconnects.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(sseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap := s.pnl.Snapshot()
			frame := tradetypes.SSEFrame{
				PnL:              snap.CurrentPnL,
				UnrealizedPnL:    0, // no mark-price feed wired; unrealized P&L is always reported flat
				LastTick:         s.state.LastTickTs(),
				TradeCount:       snap.TradeCount,
				Position:         snap.CurrentPosition,
				AvailableBalance: s.state.AvailableBalance(),
				TimestampMs:      time.Now().UnixMilli(),
			}
			tps, _ := s.state.SampledRates()
			frame.TPS = tps

			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
