package enginestate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"hft-engine/pkg/tradetypes"
)

func TestNewStartsStoppedAndNotShuttingDown(t *testing.T) {
	s := New("ping-pong")
	require.False(t, s.IsRunning())
	require.False(t, s.ShuttingDown())
	require.Equal(t, "ping-pong", s.ActiveStrategy())
}

func TestBeginShutdownIsSticky(t *testing.T) {
	s := New("ping-pong")
	s.BeginShutdown()
	s.BeginShutdown()
	require.True(t, s.ShuttingDown())
}

func TestSetRiskBoundsUpdatesBothTogether(t *testing.T) {
	s := New("ping-pong")
	s.SetRiskBounds(500, 1000)
	require.Equal(t, 500.0, s.MaxLossLimit())
	require.Equal(t, 1000.0, s.TargetProfit())
}

func TestRecentLogsCapsAt200KeepingNewest(t *testing.T) {
	s := New("ping-pong")
	for i := 0; i < 500; i++ {
		s.AddLog(fmt.Sprintf("line %d", i))
	}
	logs := s.RecentLogs()
	require.Len(t, logs, 200)
	require.Equal(t, "line 300", logs[0])
	require.Equal(t, "line 499", logs[len(logs)-1])
}

func TestRecordTickUpdatesCounterAndTimestamp(t *testing.T) {
	s := New("ping-pong")
	s.RecordTick(1690000000000)
	s.RecordTick(1690000000001)
	require.Equal(t, uint64(2), s.TicksCounter())
	require.Equal(t, int64(1690000000001), s.LastTickTs())
}

func TestSwapCountersResetToZero(t *testing.T) {
	s := New("ping-pong")
	s.RecordTick(1)
	s.RecordCycle()
	s.RecordCycle()

	require.Equal(t, uint64(1), s.SwapTicksCounter())
	require.Equal(t, uint64(2), s.SwapCyclesCounter())
	require.Equal(t, uint64(0), s.TicksCounter())
	require.Equal(t, uint64(0), s.CyclesCounter())
}

func TestSnapshotAssemblesStateAndPositionFields(t *testing.T) {
	s := New("momentum")
	s.SetRunning(true)
	s.SetRiskBounds(100, 200)
	s.SetSampledRates(12.5, 3)

	snap := s.Snapshot(tradetypes.PositionSnapshot{
		CurrentPosition: 0.5,
		AvgEntryPrice:   50000,
		CurrentPnL:      42,
		TradeCount:      7,
		LastOrderRTTNs:  1500,
	})

	require.True(t, snap.IsRunning)
	require.False(t, snap.ShuttingDown)
	require.Equal(t, uint64(7), snap.TradeCount)
	require.Equal(t, 42.0, snap.CurrentPnL)
	require.Equal(t, 100.0, snap.MaxLossLimit)
	require.Equal(t, 200.0, snap.TargetProfit)
	require.Equal(t, 0.5, snap.Position)
	require.Equal(t, 12.5, snap.CurrentTPS)
	require.Equal(t, "momentum", snap.ActiveStrategy)
}
