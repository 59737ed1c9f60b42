package strategycore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hft-engine/pkg/tradetypes"
)

func TestPingPongThrottleDisabledTriggersOnThreshold(t *testing.T) {
	s := newPingPong(Config{DryRun: true, DisableThrottle: true})

	a := tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 49000, Quantity: 1, ExchangeTimestampMs: 1000, ReceivedTimestampNs: 1000}
	b := tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 50001, Quantity: 1, ExchangeTimestampMs: 2000, ReceivedTimestampNs: 2000}

	require.Nil(t, s.ProcessEvent(a))

	instr := s.ProcessEvent(b)
	require.NotNil(t, instr)
	require.Equal(t, tradetypes.Buy, instr.Side)
	require.Equal(t, tradetypes.Market, instr.OrderType)
	require.Equal(t, 50001.0, instr.Price)
	require.Equal(t, 0.01, instr.Quantity)
	require.True(t, instr.DryRun)
}

func TestPingPongThrottleEnabledSuppressesSecondTrigger(t *testing.T) {
	s := newPingPong(Config{DryRun: true})

	first := tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 60000, ReceivedTimestampNs: 0}
	second := tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 60000, ReceivedTimestampNs: 1_000_000} // 1ms later, well under 10s

	instr1 := s.ProcessEvent(first)
	require.NotNil(t, instr1)
	require.Equal(t, tradetypes.Buy, instr1.Side)

	instr2 := s.ProcessEvent(second)
	require.Nil(t, instr2)
}

func TestPingPongAlternatesSidesAcrossUnthrottledTriggers(t *testing.T) {
	s := newPingPong(Config{DryRun: true})

	elevenSecondsNs := uint64(11 * 1e9)
	e1 := tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 60000, ReceivedTimestampNs: 0}
	e2 := tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 60000, ReceivedTimestampNs: elevenSecondsNs}

	instr1 := s.ProcessEvent(e1)
	require.NotNil(t, instr1)
	require.Equal(t, tradetypes.Buy, instr1.Side)

	instr2 := s.ProcessEvent(e2)
	require.NotNil(t, instr2)
	require.Equal(t, tradetypes.Sell, instr2.Side)
}

func TestPingPongIgnoresPriceBelowThreshold(t *testing.T) {
	s := newPingPong(Config{DisableThrottle: true})
	require.Nil(t, s.ProcessEvent(tradetypes.MarketEvent{Symbol: "BTCUSDT", Price: 50000}))
}
