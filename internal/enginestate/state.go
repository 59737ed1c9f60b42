// Package enginestate holds the process-wide fields every other component
// reads or mutates: the running/shutting-down flags, the operator-mutable
// risk bounds, the active strategy name, and the telemetry and log
// counters the dashboard reports. It depends only on pkg/tradetypes and
// the standard library so every other internal package — including ones
// that must not import each other — can depend on it without creating an
// import cycle.
package enginestate

import (
	"sync"
	"sync/atomic"
	"time"

	"hft-engine/pkg/tradetypes"
)

const (
	maxRecentLogs = 200
)

// State is the shared engine-state record described by the safety
// envelope: atomic flags and counters plus a small set of mutex-guarded
// fields (risk bounds, active strategy, recent-logs ring) that change far
// less often than the monetary fields pnl.State owns.
type State struct {
	isRunning    atomic.Bool
	shuttingDown atomic.Bool

	ticksCounter  atomic.Uint64
	cyclesCounter atomic.Uint64
	droppedTicks  atomic.Uint64
	lastTickTs    atomic.Int64

	mu             sync.Mutex
	maxLossLimit   float64
	targetProfit   float64
	activeStrategy string
	availableBal   float64
	recentLogs     []string
	tpsCache       float64
	cpsCache       float64
}

// New returns a State with is_running false (startup begins stopped),
// shutting_down false, and the given initial strategy name.
func New(initialStrategy string) *State {
	s := &State{activeStrategy: initialStrategy}
	return s
}

// IsRunning reports whether the engine is currently dispatching.
func (s *State) IsRunning() bool { return s.isRunning.Load() }

// SetRunning sets the running flag. The control plane and the shutdown
// sequencer are the only callers.
func (s *State) SetRunning(v bool) { s.isRunning.Store(v) }

// ShuttingDown reports whether the shutdown sequencer has started. Once
// true it is never reset.
func (s *State) ShuttingDown() bool { return s.shuttingDown.Load() }

// BeginShutdown sets shutting_down. Idempotent; callers needing
// exactly-once semantics use their own CAS latch (see internal/shutdown)
// and call this as one step of that sequence.
func (s *State) BeginShutdown() { s.shuttingDown.Store(true) }

// ActiveStrategy returns the currently configured strategy name.
func (s *State) ActiveStrategy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeStrategy
}

// SetActiveStrategy updates the strategy name. Strategy Core observes the
// change on its next outer-loop iteration and rebuilds strategy state
// from scratch.
func (s *State) SetActiveStrategy(name string) {
	s.mu.Lock()
	s.activeStrategy = name
	s.mu.Unlock()
}

// MaxLossLimit and TargetProfit return the current operator-set risk
// bounds, read by the execution dispatcher's auto-stop check.
func (s *State) MaxLossLimit() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxLossLimit
}

func (s *State) TargetProfit() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetProfit
}

// SetRiskBounds updates both bounds atomically with respect to each
// other, the shape POST /api/config mutates.
func (s *State) SetRiskBounds(maxLoss, targetProfit float64) {
	s.mu.Lock()
	s.maxLossLimit = maxLoss
	s.targetProfit = targetProfit
	s.mu.Unlock()
}

// AvailableBalance is best-effort telemetry only. Nothing in the engine
// sets it (neither startup position sync nor fills), so it reports zero
// unless SetAvailableBalance is called.
func (s *State) AvailableBalance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableBal
}

// SetAvailableBalance stores the balance reported by AvailableBalance. No
// engine component calls it.
func (s *State) SetAvailableBalance(v float64) {
	s.mu.Lock()
	s.availableBal = v
	s.mu.Unlock()
}

// AddLog appends a line to the bounded recent-logs ring, evicting the
// oldest entry once full.
func (s *State) AddLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recentLogs) >= maxRecentLogs {
		s.recentLogs = append(s.recentLogs[1:], line)
		return
	}
	s.recentLogs = append(s.recentLogs, line)
}

// RecentLogs returns a copy of the current log ring, oldest first.
func (s *State) RecentLogs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.recentLogs))
	copy(out, s.recentLogs)
	return out
}

// RecordTick updates tick telemetry. Called by Feed Ingress on every
// successfully parsed frame.
func (s *State) RecordTick(tsMs int64) {
	s.ticksCounter.Add(1)
	s.lastTickTs.Store(tsMs)
}

// RecordDroppedTick bumps the dropped-ticks counter when Q1 is full.
func (s *State) RecordDroppedTick() {
	s.droppedTicks.Add(1)
}

// RecordCycle bumps the cycle counter, one per event the strategy core
// drains from Q1.
func (s *State) RecordCycle() {
	s.cyclesCounter.Add(1)
}

// LastTickTs returns the last tick's wall-clock millisecond timestamp.
func (s *State) LastTickTs() int64 { return s.lastTickTs.Load() }

// DroppedTicks returns the cumulative dropped-tick count.
func (s *State) DroppedTicks() uint64 { return s.droppedTicks.Load() }

// TicksCounter and CyclesCounter expose the raw monotonically increasing
// counters the 1Hz sampler swaps-with-zero to derive TPS/CPS.
func (s *State) TicksCounter() uint64  { return s.ticksCounter.Load() }
func (s *State) CyclesCounter() uint64 { return s.cyclesCounter.Load() }

// SwapTicksCounter and SwapCyclesCounter atomically read-and-reset the
// counters; the telemetry sampler calls these once per second.
func (s *State) SwapTicksCounter() uint64  { return s.ticksCounter.Swap(0) }
func (s *State) SwapCyclesCounter() uint64 { return s.cyclesCounter.Swap(0) }

// SetSampledRates stores the most recent 1Hz-sampled ticks/cycles-per-second
// values as plain floats, stashed behind the mutex alongside the other
// infrequently-updated fields.
func (s *State) SetSampledRates(tps, cps float64) {
	s.mu.Lock()
	s.tpsCache, s.cpsCache = tps, cps
	s.mu.Unlock()
}

// SampledRates returns the most recent 1Hz-sampled TPS/CPS.
func (s *State) SampledRates() (tps, cps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tpsCache, s.cpsCache
}

// Snapshot assembles a dashboard-facing status view. pos is a
// tradetypes.PositionSnapshot obtained from pnl.State.Snapshot(); State
// itself never reads pnl internals directly, keeping the two packages
// decoupled.
func (s *State) Snapshot(pos tradetypes.PositionSnapshot) tradetypes.StatusSnapshot {
	s.mu.Lock()
	maxLoss, target, strat := s.maxLossLimit, s.targetProfit, s.activeStrategy
	tps, cps := s.tpsCache, s.cpsCache
	s.mu.Unlock()

	return tradetypes.StatusSnapshot{
		IsRunning:      s.IsRunning(),
		ShuttingDown:   s.ShuttingDown(),
		TradeCount:     pos.TradeCount,
		CurrentPnL:     pos.CurrentPnL,
		MaxLossLimit:   maxLoss,
		TargetProfit:   target,
		Position:       pos.CurrentPosition,
		AvgEntryPrice:  pos.AvgEntryPrice,
		CurrentTPS:     tps,
		CurrentCPS:     cps,
		LastOrderRTTNs: pos.LastOrderRTTNs,
		ActiveStrategy: strat,
		Timestamp:      time.Now(),
	}
}
