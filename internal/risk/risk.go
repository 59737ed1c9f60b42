// Package risk implements the kill-switch and the ordered, short-circuiting
// checks every trade instruction passes through before it is allowed to
// reach the venue. It is deliberately small: one process-wide armed/
// disarmed flag plus a handful of structural and configured-limit checks,
// modeled on the portfolio risk manager's logger-scoping and atomic-state
// idioms but cut down to the single-symbol scope this engine has.
package risk

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Manager is the process-wide kill switch and risk gate. The zero value is
// disarmed, matching the safety-first default required at startup.
type Manager struct {
	enabled atomic.Bool
	limits  Limits
	logger  *slog.Logger
}

// Limits are the extensible caps applied after the structural checks.
type Limits struct {
	MaxOrderSize float64
	MaxPosition  float64
}

// New creates a disarmed Manager with the given limits.
func New(limits Limits, logger *slog.Logger) *Manager {
	return &Manager{
		limits: limits,
		logger: logger.With("component", "risk"),
	}
}

// Arm enables trading. Idempotent.
func (m *Manager) Arm() {
	m.enabled.Store(true)
	m.logger.Info("kill switch armed")
}

// Disarm disables trading. Idempotent. Safe to call repeatedly from the
// shutdown sequencer without special-casing re-entry.
func (m *Manager) Disarm() {
	m.enabled.Store(false)
	m.logger.Info("kill switch disarmed")
}

// IsArmed reports the current kill-switch state.
func (m *Manager) IsArmed() bool {
	return m.enabled.Load()
}

// Check applies the ordered, short-circuiting risk gate described by the
// engine's safety envelope. currentPosition is a snapshot read under the
// P&L state's own lock; it is not mutated here.
func (m *Manager) Check(side string, quantity, price, currentPosition float64, dryRun bool) error {
	if !m.IsArmed() {
		return fmt.Errorf("risk: %w", ErrDisarmed)
	}
	if dryRun {
		return nil
	}
	if quantity <= 0 {
		return fmt.Errorf("risk: invalid quantity %v", quantity)
	}
	if price <= 0 {
		return fmt.Errorf("risk: invalid price %v", price)
	}
	if m.limits.MaxOrderSize > 0 && quantity > m.limits.MaxOrderSize {
		return fmt.Errorf("risk: quantity %v exceeds max order size %v", quantity, m.limits.MaxOrderSize)
	}
	if m.limits.MaxPosition > 0 {
		projected := currentPosition
		if side == "SELL" {
			projected -= quantity
		} else {
			projected += quantity
		}
		if abs(projected) > m.limits.MaxPosition {
			return fmt.Errorf("risk: projected position %v exceeds max position %v", projected, m.limits.MaxPosition)
		}
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
