package strategycore

import (
	"hft-engine/pkg/tradetypes"
)

const (
	liquidationWindowSize = 50
	liquidationCooldownNs = uint64(1 * 1e9)
	liquidationBurstTicks = 5
)

func init() {
	register("liquidation", newLiquidation)
}

// liquidationStrategy watches for a price cascade backed by a volume
// burst and rides the mean-reversion back out.
type liquidationStrategy struct {
	prices           []float64
	volumes          []float64
	avgVolume        float64
	position         int
	lastSignalNs     uint64
	signaled         bool // false until the first signal; the cooldown has nothing to measure against yet
	priceThreshold   float64
	volumeMultiplier float64
}

func newLiquidation(cfg Config) Strategy {
	return &liquidationStrategy{
		priceThreshold:   cfg.PriceThreshold,
		volumeMultiplier: cfg.VolumeMultiplier,
	}
}

func (s *liquidationStrategy) ProcessEvent(event tradetypes.MarketEvent) *tradetypes.TradeInstruction {
	s.prices = append(s.prices, event.Price)
	if len(s.prices) > liquidationWindowSize {
		s.prices = s.prices[len(s.prices)-liquidationWindowSize:]
	}
	s.volumes = append(s.volumes, event.Quantity)
	if len(s.volumes) > liquidationWindowSize {
		s.volumes = s.volumes[len(s.volumes)-liquidationWindowSize:]
	}

	if len(s.volumes) > 0 {
		var sum float64
		for _, v := range s.volumes {
			sum += v
		}
		s.avgVolume = sum / float64(len(s.volumes))
	}

	if len(s.prices) < liquidationWindowSize {
		return nil
	}

	now := event.ReceivedTimestampNs
	if s.signaled && now-s.lastSignalNs < liquidationCooldownNs {
		return nil
	}

	priceVelocity := event.Price - s.prices[0]

	burstWindow := liquidationBurstTicks
	if len(s.volumes) < burstWindow {
		burstWindow = len(s.volumes)
	}
	var currentVolume float64
	for i := len(s.volumes) - burstWindow; i < len(s.volumes); i++ {
		currentVolume += s.volumes[i]
	}

	if s.position == 0 {
		switch {
		case priceVelocity > s.priceThreshold && currentVolume > s.avgVolume*s.volumeMultiplier:
			s.position = 1
			s.lastSignalNs = now
			s.signaled = true
			return s.market(event, tradetypes.Buy)
		case priceVelocity < -s.priceThreshold && currentVolume > s.avgVolume*s.volumeMultiplier:
			s.position = -1
			s.lastSignalNs = now
			s.signaled = true
			return s.market(event, tradetypes.Sell)
		}
		return nil
	}

	recentAvgVolume := currentVolume / float64(burstWindow)
	if recentAvgVolume <= s.avgVolume {
		side := tradetypes.Sell
		if s.position == -1 {
			side = tradetypes.Buy
		}
		s.position = 0
		s.lastSignalNs = now
		s.signaled = true
		return s.market(event, side)
	}
	return nil
}

func (s *liquidationStrategy) market(event tradetypes.MarketEvent, side tradetypes.Side) *tradetypes.TradeInstruction {
	return &tradetypes.TradeInstruction{
		Symbol:      event.Symbol,
		Side:        side,
		OrderType:   tradetypes.Market,
		Price:       event.Price,
		Quantity:    0.01,
		TimestampNs: event.ReceivedTimestampNs,
	}
}
