// Package engine is the central orchestrator of the trading system.
//
// It wires together every subsystem: engine state, the risk manager and
// the P&L state come up first, then the persistence sink and the venue
// client, the two queues, feed ingress, the strategy core, the execution
// dispatcher, the dashboard, and finally the shutdown sequencer.
//
// Lifecycle: New() -> Start() -> [runs until the caller invokes Stop();
// cmd/engine does so on SIGINT/SIGTERM] -> Stop(). A dashboard STOP only
// pauses trading and does not call Stop().
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hft-engine/internal/config"
	"hft-engine/internal/dashboard"
	"hft-engine/internal/enginestate"
	"hft-engine/internal/execdispatch"
	"hft-engine/internal/feed"
	"hft-engine/internal/pnl"
	"hft-engine/internal/queue"
	"hft-engine/internal/risk"
	"hft-engine/internal/shutdown"
	"hft-engine/internal/storage"
	"hft-engine/internal/strategycore"
	"hft-engine/internal/venue"
	"hft-engine/pkg/tradetypes"
)

// queueCapacity sizes both the market-event queue (Q1) and the
// trade-instruction queue (Q2); both are fixed-capacity SPSC rings.
const queueCapacity = 4096

// telemetrySampleInterval is how often the ticks/cycles counters are
// swapped-with-zero to derive the TPS/CPS figures the dashboard reports.
const telemetrySampleInterval = 1 * time.Second

// Engine orchestrates every component's lifecycle: construction order,
// goroutine ownership, and the shutdown sequence.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger

	state   *enginestate.State
	riskMgr *risk.Manager
	pnlMgr  *pnl.State
	store   *storage.Store
	venue   *venue.Client

	q1 *queue.Queue[tradetypes.MarketEvent]
	q2 *queue.Queue[tradetypes.TradeInstruction]

	feedIngress *feed.Feed
	core        *strategycore.Core
	dispatcher  *execdispatch.Dispatcher
	dash        *dashboard.Server
	sequencer   *shutdown.Sequencer

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New wires every component together and starts none of the component
// loops; the only goroutine it leaves running is the persistence sink's
// flush loop, which storage.Open launches. It performs
// one synchronous network call when trading is enabled: position sync,
// to seed the P&L state's starting position and average entry price.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	logger = logger.With("component", "engine")

	state := enginestate.New(cfg.Strategy.Active)
	state.SetRiskBounds(cfg.Risk.MaxDrawdown, 0)

	riskMgr := risk.New(risk.Limits{
		MaxOrderSize: cfg.Risk.MaxOrderSize,
		MaxPosition:  cfg.Risk.MaxPosition,
	}, logger)

	pnlMgr := pnl.New()

	store, err := storage.Open(cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open storage: %w", err)
	}

	venueClient := venue.NewClient(venue.Config{
		RESTBaseURL: cfg.Network.RESTURL,
		APIKey:      cfg.Trading.APIKey,
		SecretKey:   cfg.Trading.SecretKey,
		DryRun:      cfg.Trading.DryRun,
	}, logger)

	if cfg.Trading.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		positions, err := venueClient.SyncPositions(ctx, cfg.Trading.Symbol)
		cancel()
		if err != nil {
			if _, isAuth := err.(*venue.AuthError); isAuth {
				store.Close()
				return nil, fmt.Errorf("engine: authentication failed during startup position sync: %w", err)
			}
			logger.Warn("startup position sync failed, starting flat", "error", err)
		} else {
			seedPositionFromSync(pnlMgr, positions, cfg.Trading.Symbol, logger)
		}
	}

	q1 := queue.New[tradetypes.MarketEvent](queueCapacity)
	q2 := queue.New[tradetypes.TradeInstruction](queueCapacity)

	feedIngress := feed.New(cfg.Network.WSURL, cfg.Trading.Symbol, state, q1, logger)

	strategyCfg := strategycore.Config{
		Symbol:           cfg.Trading.Symbol,
		DryRun:           cfg.Trading.DryRun,
		DisableThrottle:  cfg.Strategy.DisableThrottle,
		WindowSize:       cfg.Strategy.WindowSize,
		Threshold:        cfg.Strategy.Threshold,
		PriceThreshold:   cfg.Strategy.PriceThreshold,
		VolumeMultiplier: cfg.Strategy.VolumeMultiplier,
		FeeMaker:         cfg.Strategy.FeeMaker,
		FeeTaker:         cfg.Strategy.FeeTaker,
	}
	core := strategycore.New(state, q1, q2, strategyCfg, logger)

	dispatcher := execdispatch.New(q2, riskMgr, venueClient, pnlMgr, store, state, cfg.Strategy.FeeTaker, logger)

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		state:       state,
		riskMgr:     riskMgr,
		pnlMgr:      pnlMgr,
		store:       store,
		venue:       venueClient,
		q1:          q1,
		q2:          q2,
		feedIngress: feedIngress,
		core:        core,
		dispatcher:  dispatcher,
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.Dashboard.Enabled {
		e.dash = dashboard.New(fmt.Sprintf("127.0.0.1:%d", cfg.Dashboard.Port), dashboard.Deps{
			State:   state,
			PnL:     pnlMgr,
			Risk:    riskMgr,
			Storage: store,
			OnStart: func() { state.SetRunning(true) },
			OnStop:  func() { state.SetRunning(false) },
		}, logger)
	}

	e.sequencer = shutdown.New(state, shutdown.Steps{
		StopFeed:     func() { cancel() },
		StopStrategy: core.Stop,
		CancelAllOrders: func(ctx context.Context) error {
			if !cfg.Trading.Enabled {
				return nil
			}
			return venueClient.CancelAllOrders(ctx, cfg.Trading.Symbol)
		},
		Disarm:       riskMgr.Disarm,
		FlushStorage: store.Flush,
	}, logger)

	return e, nil
}

// seedPositionFromSync applies the venue's reported position for symbol
// as the starting point for the position/P&L state. Matches the
// venue's positionAmt/entryPrice reporting: a zero-position response
// leaves the engine flat, which is already pnl.State's zero value.
func seedPositionFromSync(pnlMgr *pnl.State, positions []venue.PositionRisk, symbol string, logger *slog.Logger) {
	for _, p := range positions {
		if p.Symbol != symbol {
			continue
		}
		qty := parseFloatOrZero(p.PositionAmt)
		price := parseFloatOrZero(p.EntryPrice)
		if qty == 0 {
			return
		}
		pnlMgr.UpdateFromTrade(qty, price, 0, time.Now().UnixMilli())
		logger.Info("seeded starting position from venue", "symbol", symbol, "position", qty, "entry_price", price)
		return
	}
}

func parseFloatOrZero(s string) float64 {
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0
	}
	return f
}

// Start launches every background component. The engine comes up with
// is_running false; an operator must issue a START control command (or
// the caller can arm it directly before Start, for tests) before the
// strategy core or dispatcher act on any event.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.feedIngress.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.core.Run()
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatcher.Run(e.ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sampleTelemetry()
	}()

	if e.dash != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.dash.Run(e.ctx); err != nil {
				e.logger.Error("dashboard server error", "error", err)
			}
		}()
	}

	e.logger.Info("engine started", "strategy", e.cfg.Strategy.Active, "symbol", e.cfg.Trading.Symbol, "dry_run", e.cfg.Trading.DryRun)
	return nil
}

// sampleTelemetry runs the 1Hz tick/cycle counter sampler described by
// the engine state component: it swaps both counters with zero and
// stashes the resulting per-second rate for the dashboard to report.
func (e *Engine) sampleTelemetry() {
	ticker := time.NewTicker(telemetrySampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			ticks := e.state.SwapTicksCounter()
			cycles := e.state.SwapCyclesCounter()
			e.state.SetSampledRates(float64(ticks), float64(cycles))
		}
	}
}

// Stop runs the fixed shutdown sequence and waits for every goroutine to
// return. Safe to call more than once; later calls return after the
// first has finished.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		e.sequencer.Run(shutdownCtx)

		e.wg.Wait()

		if err := e.store.Close(); err != nil {
			e.logger.Error("failed to close storage", "error", err)
		}

		e.logger.Info("shutdown complete")
	})
}
