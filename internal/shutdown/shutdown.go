// Package shutdown implements the engine's dead-man's-switch shutdown
// sequence: a single at-most-once latch that tears every component down
// in a fixed order, regardless of how many times or from how many
// goroutines it is triggered. SIGINT and SIGTERM reach it through
// Engine.Stop; the dashboard's STOP control command does not run it (STOP
// only clears the running flag and disarms the kill switch).
package shutdown

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"hft-engine/internal/enginestate"
)

// cancelTimeout bounds how long the sequence waits on CancelAllOrders
// before giving up and continuing the rest of the sequence anyway; a
// stuck cancel must never block process exit indefinitely.
const cancelTimeout = 10 * time.Second

// Sequencer runs the fixed shutdown order exactly once. Every step is a
// closure supplied by the caller rather than a concrete package
// reference, so this package has no dependency on feed, strategycore,
// execdispatch, venue, risk, or storage and cannot form an import cycle
// with any of them.
type Sequencer struct {
	state  *enginestate.State
	logger *slog.Logger

	stopFeed        func()
	stopStrategy    func()
	cancelAllOrders func(ctx context.Context) error
	disarm          func()
	flushStorage    func()

	done atomic.Bool
}

// Steps carries the callbacks the sequence invokes. Run calls them in
// field order: StopFeed, StopStrategy, CancelAllOrders, Disarm,
// FlushStorage. A nil field is treated as a no-op so callers wiring up
// partial test harnesses don't need to stub every step.
type Steps struct {
	StopFeed        func()
	StopStrategy    func()
	CancelAllOrders func(ctx context.Context) error
	Disarm          func()
	FlushStorage    func()
}

// New builds a Sequencer bound to state and the given step callbacks.
func New(state *enginestate.State, steps Steps, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		state:           state,
		logger:          logger.With("component", "shutdown"),
		stopFeed:        noopIfNil(steps.StopFeed),
		stopStrategy:    noopIfNil(steps.StopStrategy),
		cancelAllOrders: steps.CancelAllOrders,
		disarm:          noopIfNil(steps.Disarm),
		flushStorage:    noopIfNil(steps.FlushStorage),
	}
}

func noopIfNil(f func()) func() {
	if f == nil {
		return func() {}
	}
	return f
}

// Run executes the shutdown sequence. Safe to call concurrently or
// repeatedly; only the first caller runs the sequence, every other
// caller returns immediately once the first has started.
func (s *Sequencer) Run(ctx context.Context) {
	if !s.done.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("shutdown sequence starting")

	s.state.BeginShutdown()
	s.state.SetRunning(false)

	s.stopFeed()
	s.logger.Info("feed ingress stopped")

	s.stopStrategy()
	s.logger.Info("strategy thread joined")

	if s.cancelAllOrders != nil {
		cctx, cancel := context.WithTimeout(ctx, cancelTimeout)
		if err := s.cancelAllOrders(cctx); err != nil {
			s.logger.Error("cancel all orders failed during shutdown", "error", err)
		}
		cancel()
	}

	s.disarm()
	s.logger.Info("kill switch disarmed")

	s.flushStorage()
	s.logger.Info("persistence sink flushed")

	s.logger.Info("shutdown sequence complete")
}

// Done reports whether the sequence has started (and therefore will, or
// already did, run to completion).
func (s *Sequencer) Done() bool {
	return s.done.Load()
}
