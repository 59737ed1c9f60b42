package strategycore

import (
	"hft-engine/pkg/tradetypes"
)

const momentumCooldownNs = uint64(1 * 1e9) // 1s

func init() {
	register("momentum", newMomentum)
}

// momentumStrategy tracks a rolling window of prices and trades the
// breakout once velocity clears a fee-adjusted threshold, reversing out
// on a simple sign flip.
type momentumStrategy struct {
	prices       []float64
	windowSize   int
	threshold    float64
	feeTaker     float64
	position     int // 0 flat, 1 long, -1 short
	lastSignalNs uint64
	signaled     bool // false until the first signal; the cooldown has nothing to measure against yet
}

func newMomentum(cfg Config) Strategy {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 20
	}
	return &momentumStrategy{
		windowSize: windowSize,
		threshold:  cfg.Threshold,
		feeTaker:   cfg.FeeTaker,
	}
}

func (s *momentumStrategy) ProcessEvent(event tradetypes.MarketEvent) *tradetypes.TradeInstruction {
	s.prices = append(s.prices, event.Price)
	if len(s.prices) > s.windowSize {
		s.prices = s.prices[len(s.prices)-s.windowSize:]
	}
	if len(s.prices) < s.windowSize {
		return nil
	}

	oldest := s.prices[0]
	velocity := event.Price - oldest
	now := event.ReceivedTimestampNs

	if s.signaled && now-s.lastSignalNs < momentumCooldownNs {
		return nil
	}

	feeCost := event.Price * (s.feeTaker * 2)
	effectiveThreshold := s.threshold + feeCost

	switch s.position {
	case 0:
		switch {
		case velocity > effectiveThreshold:
			s.position = 1
			s.lastSignalNs = now
			s.signaled = true
			return s.market(event, tradetypes.Buy)
		case velocity < -effectiveThreshold:
			s.position = -1
			s.lastSignalNs = now
			s.signaled = true
			return s.market(event, tradetypes.Sell)
		}
	case 1:
		if velocity < 0 {
			s.position = 0
			s.lastSignalNs = now
			s.signaled = true
			return s.market(event, tradetypes.Sell)
		}
	case -1:
		if velocity > 0 {
			s.position = 0
			s.lastSignalNs = now
			s.signaled = true
			return s.market(event, tradetypes.Buy)
		}
	}
	return nil
}

func (s *momentumStrategy) market(event tradetypes.MarketEvent, side tradetypes.Side) *tradetypes.TradeInstruction {
	return &tradetypes.TradeInstruction{
		Symbol:      event.Symbol,
		Side:        side,
		OrderType:   tradetypes.Market,
		Price:       event.Price,
		Quantity:    0.01,
		TimestampNs: event.ReceivedTimestampNs,
	}
}
