package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hft-engine/pkg/tradetypes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := Open(path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueFlushesOnIntervalWithoutFullBatch(t *testing.T) {
	s := openTestStore(t)

	s.Enqueue(tradetypes.TradeRecord{Symbol: "BTCUSDT", Side: tradetypes.Buy, Price: 100, Quantity: 1})

	require.Eventually(t, func() bool {
		rows, err := s.History(context.Background(), 10)
		return err == nil && len(rows) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEnqueueFlushesImmediatelyAtBatchSize(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < flushBatchSize; i++ {
		s.Enqueue(tradetypes.TradeRecord{Symbol: "BTCUSDT", Side: tradetypes.Buy, Price: 100, Quantity: 1})
	}

	require.Eventually(t, func() bool {
		rows, err := s.History(context.Background(), flushBatchSize+10)
		return err == nil && len(rows) == flushBatchSize
	}, time.Second, 5*time.Millisecond)
}

func TestHistoryOrderedNewestFirst(t *testing.T) {
	s := openTestStore(t)

	s.Enqueue(tradetypes.TradeRecord{ExchangeTsMs: 1, Symbol: "BTCUSDT", Side: tradetypes.Buy, Price: 100, Quantity: 1})
	s.flush()
	s.Enqueue(tradetypes.TradeRecord{ExchangeTsMs: 2, Symbol: "BTCUSDT", Side: tradetypes.Sell, Price: 101, Quantity: 1})
	s.flush()

	rows, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(2), rows[0].ExchangeTsMs)
	require.Equal(t, int64(1), rows[1].ExchangeTsMs)
}

func TestDeleteHistoryClearsAllRows(t *testing.T) {
	s := openTestStore(t)
	s.Enqueue(tradetypes.TradeRecord{Symbol: "BTCUSDT", Side: tradetypes.Buy, Price: 100, Quantity: 1})
	s.flush()

	require.NoError(t, s.DeleteHistory(context.Background()))

	rows, err := s.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 0)
}

func TestCloseFlushesRemainingBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := Open(path, discardLogger())
	require.NoError(t, err)

	s.Enqueue(tradetypes.TradeRecord{Symbol: "BTCUSDT", Side: tradetypes.Buy, Price: 100, Quantity: 1})
	require.NoError(t, s.Close())

	s2, err := Open(path, discardLogger())
	require.NoError(t, err)
	defer s2.Close()

	rows, err := s2.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
