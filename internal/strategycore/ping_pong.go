package strategycore

import (
	"hft-engine/pkg/tradetypes"
)

const pingPongThrottleNs = uint64(10 * 1e9) // 10s default cooldown between signals

func init() {
	register("ping-pong", newPingPong)
}

// pingPongStrategy alternates Buy/Sell on a simple price threshold,
// mostly useful for wiring checks and latency benchmarks.
type pingPongStrategy struct {
	lastTradeNs uint64
	traded      bool // false until the first instruction is emitted; the cooldown has nothing to measure against yet
	nextSide    tradetypes.Side
	dryRun      bool
	throttle    bool
}

func newPingPong(cfg Config) Strategy {
	return &pingPongStrategy{
		nextSide: tradetypes.Buy,
		dryRun:   cfg.DryRun,
		throttle: !cfg.DisableThrottle,
	}
}

func (s *pingPongStrategy) ProcessEvent(event tradetypes.MarketEvent) *tradetypes.TradeInstruction {
	throttlePassed := !s.throttle || !s.traded || event.ReceivedTimestampNs-s.lastTradeNs > pingPongThrottleNs

	if event.Price <= 50_000 || !throttlePassed {
		return nil
	}

	instr := &tradetypes.TradeInstruction{
		Symbol:      event.Symbol,
		Side:        s.nextSide,
		OrderType:   tradetypes.Market,
		Price:       event.Price,
		Quantity:    0.01,
		TimestampNs: event.ReceivedTimestampNs,
		DryRun:      s.dryRun,
	}

	s.lastTradeNs = event.ReceivedTimestampNs
	s.traded = true
	s.nextSide = s.nextSide.Opposite()

	return instr
}
