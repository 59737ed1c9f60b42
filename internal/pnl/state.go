// Package pnl implements the single-writer position and realized P&L
// state machine for the engine's single traded symbol. The Execution
// Dispatcher is the only writer; every other component reads a value-copy
// snapshot obtained under a short lock, following the single-writer
// monetary state pattern the rest of this engine's state is built around.
package pnl

import (
	"sync"

	"hft-engine/pkg/tradetypes"
)

// maxHistory bounds the PnL history FIFO; oldest points are evicted once
// it is full.
const maxHistory = 5000

// State tracks the signed position, average entry price, realized P&L,
// and bounded P&L history for the engine's single traded symbol.
type State struct {
	mu sync.Mutex

	position   float64
	avgEntry   float64
	realized   float64
	tradeCount uint64
	lastRTTNs  uint64

	history []tradetypes.PnLPoint
}

// New returns a zeroed State: flat position, zero entry, zero P&L.
func New() *State {
	return &State{}
}

// UpdateFromTrade applies one fill to the position/P&L state. qty is
// signed (positive for a buy fill, negative for a sell fill); price and
// fee are always non-negative. nowMs is the wall-clock millisecond
// timestamp recorded alongside the resulting history point.
//
// The update follows the textbook position-averaging rules: fills that
// reduce an existing position realize P&L against the current average
// entry price; fills that extend a position in the same direction
// re-average the entry price by notional; a fill that flips the sign of
// the position treats the residual as a brand-new position opened at the
// trade price.
func (s *State) UpdateFromTrade(qty, price, fee float64, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p0 := s.position
	p1 := p0 + qty
	e := s.avgEntry

	var realized float64
	if sign(p0)*sign(qty) < 0 {
		closed := min(abs(p0), abs(qty))
		if p0 > 0 {
			realized += (price - e) * closed
		} else {
			realized += (e - price) * closed
		}
	}
	realized -= fee

	var newEntry float64
	switch {
	case p1 == 0:
		newEntry = 0
	case abs(p1) > abs(p0) && (p0 == 0 || sign(p1) == sign(p0)):
		newEntry = (abs(p0)*e + abs(qty)*price) / abs(p1)
	case p0*p1 < 0:
		newEntry = price
	default:
		newEntry = e
	}

	s.position = p1
	s.avgEntry = newEntry
	s.realized += realized

	if realized != 0 || fee > 0 {
		s.appendHistory(tradetypes.PnLPoint{TimestampMs: nowMs, RealizedPnL: s.realized})
	}
}

// appendHistory must be called with s.mu held.
func (s *State) appendHistory(pt tradetypes.PnLPoint) {
	if len(s.history) >= maxHistory {
		s.history = append(s.history[1:], pt)
		return
	}
	s.history = append(s.history, pt)
}

// RecordOrderResult updates the trade counter and last RTT after a
// successful venue acknowledgment. Called by the Execution Dispatcher
// alongside UpdateFromTrade.
func (s *State) RecordOrderResult(rttNs uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradeCount++
	s.lastRTTNs = rttNs
}

// Snapshot returns a value-copy of the current position/P&L state, safe
// to read without holding any lock.
func (s *State) Snapshot() tradetypes.PositionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tradetypes.PositionSnapshot{
		CurrentPosition: s.position,
		AvgEntryPrice:   s.avgEntry,
		CurrentPnL:      s.realized,
		TradeCount:      s.tradeCount,
		LastOrderRTTNs:  s.lastRTTNs,
	}
}

// History returns a copy of the bounded P&L history series.
func (s *State) History() []tradetypes.PnLPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tradetypes.PnLPoint, len(s.history))
	copy(out, s.history)
	return out
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
