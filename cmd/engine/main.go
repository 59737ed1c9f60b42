// Trading Engine — a low-latency automated trading engine that consumes a
// live trade feed from a crypto derivatives venue, evaluates pluggable
// decision policies, and dispatches signed orders under an armed-kill-switch
// safety model.
//
// Architecture:
//
//	main.go                   — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go          — orchestrator: wires feed → strategy core → dispatcher, owns every goroutine
//	feed/feed.go              — reconnecting WebSocket ingress: parses trade prints onto the tick queue
//	strategycore/core.go      — CPU-pinned hot loop: drains ticks, runs the active strategy, emits instructions
//	strategycore/ping_pong.go, momentum.go, liquidation.go — the three shipped policies: ping-pong, momentum breakout, liquidation cascade
//	execdispatch/dispatcher.go— drains instructions, gates through risk, places orders, updates P&L
//	pnl/state.go              — single-writer position/average-entry/realized-P&L state machine
//	risk/risk.go              — kill switch (armed/disarmed) plus order-size and position caps
//	venue/client.go           — HMAC-SHA256-signed REST client with token-bucket rate limiting
//	enginestate/state.go      — shared flags, risk bounds, telemetry counters, recent-logs ring
//	shutdown/shutdown.go      — at-most-once dead-man's-switch: stop, cancel all orders, disarm, flush
//	storage/storage.go        — buffered write-behind SQLite sink for executed trades
//	dashboard/dashboard.go    — localhost HTTP control plane: status, control, history, SSE stream
//
// Data flow:
//
//	The feed pushes each trade print onto a bounded lock-free SPSC queue.
//	The strategy core drains it on a dedicated OS thread and hands any
//	resulting instruction to the dispatcher over a second SPSC queue.
//	Both queues shed load when full — on the real-time path, liveness
//	beats completeness.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hft-engine/internal/config"
	"hft-engine/internal/engine"
)

func main() {
	cfgPath := "configs/config.toml"
	if p := os.Getenv("TRADING_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.Trading.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("trading engine started",
		"symbol", cfg.Trading.Symbol,
		"strategy", cfg.Strategy.Active,
		"max_position", cfg.Risk.MaxPosition,
		"dry_run", cfg.Trading.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
