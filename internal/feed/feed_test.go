package feed

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"hft-engine/internal/enginestate"
	"hft-engine/internal/queue"
	"hft-engine/pkg/tradetypes"
)

func newTestFeed(t *testing.T) (*Feed, *queue.Queue[tradetypes.MarketEvent]) {
	t.Helper()
	q1 := queue.New[tradetypes.MarketEvent](16)
	st := enginestate.New("ping-pong")
	f := New("wss://example.invalid/ws", "BTCUSDT", st, q1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f, q1
}

func TestHandleFrameParsesValidTrade(t *testing.T) {
	f, q1 := newTestFeed(t)
	f.handleFrame([]byte(`{"s":"BTCUSDT","p":"50001.50","q":"0.01","T":1690000000000}`))

	event, err := q1.Pop()
	require.NoError(t, err)
	require.Equal(t, "BTCUSDT", event.Symbol)
	require.Equal(t, 50001.50, event.Price)
	require.Equal(t, 0.01, event.Quantity)
	require.Equal(t, int64(1690000000000), event.ExchangeTimestampMs)
}

func TestHandleFrameDropsMalformedPrice(t *testing.T) {
	f, q1 := newTestFeed(t)
	f.handleFrame([]byte(`{"s":"BTCUSDT","p":"not-a-number","q":"0.01","T":1}`))
	_, err := q1.Pop()
	require.ErrorIs(t, err, queue.ErrEmpty)
}

func TestHandleFrameDropsMalformedJSON(t *testing.T) {
	f, q1 := newTestFeed(t)
	f.handleFrame([]byte(`not json`))
	_, err := q1.Pop()
	require.ErrorIs(t, err, queue.ErrEmpty)
}

func TestHandleFrameRecordsDroppedTickWhenQueueFull(t *testing.T) {
	q1 := queue.New[tradetypes.MarketEvent](1)
	st := enginestate.New("ping-pong")
	f := New("wss://example.invalid/ws", "BTCUSDT", st, q1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.handleFrame([]byte(`{"s":"BTCUSDT","p":"1","q":"1","T":1}`))
	f.handleFrame([]byte(`{"s":"BTCUSDT","p":"2","q":"1","T":2}`))

	require.Equal(t, uint64(1), st.DroppedTicks())
}
