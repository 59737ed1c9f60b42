// Package strategycore runs the synchronous, CPU-pinned hot loop that
// drains Q1, delegates to the active decision policy, and enqueues any
// resulting instruction onto Q2. The concrete strategies it ships are
// adapted from the three pluggable policies the original engine shipped:
// ping-pong, momentum, and liquidation-cascade detection.
package strategycore

import (
	"log/slog"

	"hft-engine/pkg/tradetypes"
)

// Strategy is the decision-policy interface. Implementations must be
// stateless with respect to wall-clock time; any throttling is computed
// from the monotonic received_timestamp_ns carried on each event.
type Strategy interface {
	// ProcessEvent evaluates one market event and optionally returns an
	// instruction to place. A nil return means "no action this tick".
	ProcessEvent(event tradetypes.MarketEvent) *tradetypes.TradeInstruction
}

// Config carries every tunable a constructor might need. Not every
// strategy reads every field; unused fields are ignored by that
// strategy's constructor.
type Config struct {
	Symbol           string
	DryRun           bool
	DisableThrottle  bool
	WindowSize       int
	Threshold        float64
	PriceThreshold   float64
	VolumeMultiplier float64
	FeeMaker         float64
	FeeTaker         float64
}

// Constructor builds a fresh Strategy from Config. Registered
// constructors must not carry over state between calls.
type Constructor func(Config) Strategy

// defaultStrategyName is what the registry falls back to when asked for
// an unregistered name.
const defaultStrategyName = "ping-pong"

// registry maps strategy names to constructors. Populated by init() in
// each strategy's own file so adding a new strategy never requires
// touching this file.
var registry = map[string]Constructor{}

func register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Names returns every registered strategy name, used by GET
// /api/strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}

// Build constructs the named strategy. An unknown name resolves to the
// safe default (ping-pong) and logs a warning, matching the registry
// contract in the component design.
func Build(name string, cfg Config, logger *slog.Logger) Strategy {
	ctor, ok := registry[name]
	if !ok {
		logger.Warn("unknown strategy, falling back to default", "requested", name, "default", defaultStrategyName)
		ctor = registry[defaultStrategyName]
	}
	return ctor(cfg)
}
