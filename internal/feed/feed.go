// Package feed maintains a reconnecting WebSocket connection to the
// venue's aggregate-trade stream for a single symbol, parses trade
// prints into tradetypes.MarketEvent, and pushes them onto the tick
// queue. Connection failures reconnect with exponential backoff; a full
// queue sheds load rather than blocking the read loop.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"hft-engine/internal/enginestate"
	"hft-engine/internal/queue"
	"hft-engine/pkg/tradetypes"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	pingInterval   = 50 * time.Second // keep-alive; ~2 missed pings trips the read deadline
	readTimeout    = 90 * time.Second
	writeTimeout   = 10 * time.Second
)

// rawTrade is the subset of the venue's aggregate-trade JSON this system
// consumes; every other field is ignored.
type rawTrade struct {
	Symbol   string `json:"s"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
	TradeMs  int64  `json:"T"`
}

// Feed owns the WebSocket connection lifecycle for one symbol.
type Feed struct {
	url    string
	symbol string
	state  *enginestate.State
	q1     *queue.Queue[tradetypes.MarketEvent]
	logger *slog.Logger

	start time.Time // process-relative monotonic reference point
}

// New builds a Feed. url is the venue's base WS endpoint; the symbol is
// appended as a lowercase aggTrade stream path, matching the venue's
// convention.
func New(url, symbol string, state *enginestate.State, q1 *queue.Queue[tradetypes.MarketEvent], logger *slog.Logger) *Feed {
	return &Feed{
		url:    url,
		symbol: symbol,
		state:  state,
		q1:     q1,
		logger: logger.With("component", "feed"),
		start:  time.Now(),
	}
}

// Run maintains the connection until ctx is cancelled, reconnecting with
// exponential backoff starting at 100ms and doubling to a 5s ceiling,
// resetting to 100ms after every successful connection.
func (f *Feed) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			f.logger.Info("feed stopping")
			return
		}

		connected, err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = initialBackoff
		}

		f.logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if !connected {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// connectAndRead dials the stream and blocks reading frames until the
// connection fails or ctx is cancelled. The returned bool reports whether
// the dial itself succeeded, which Run uses to decide whether to reset the
// backoff (a connection that was established and later dropped resets to
// 100ms; a dial failure keeps doubling).
func (f *Feed) connectAndRead(ctx context.Context) (bool, error) {
	streamURL := fmt.Sprintf("%s/%s@aggTrade", f.url, strings.ToLower(f.symbol))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return false, fmt.Errorf("feed: dial: %w", err)
	}
	defer conn.Close()

	f.logger.Info("feed connected", "url", streamURL)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx, conn)

	for {
		if ctx.Err() != nil {
			return true, ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("feed: read: %w", err)
		}

		f.handleFrame(data)
	}
}

// pingLoop keeps the connection alive. The read loop never writes, so
// this goroutine is the connection's only writer.
func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) handleFrame(data []byte) {
	var raw rawTrade
	if err := json.Unmarshal(data, &raw); err != nil {
		f.logger.Warn("feed: malformed frame, dropping", "error", err)
		return
	}
	if raw.Symbol == "" {
		return
	}

	price, err := strconv.ParseFloat(raw.Price, 64)
	if err != nil {
		f.logger.Warn("feed: malformed price, dropping", "raw", raw.Price, "error", err)
		return
	}
	qty, err := strconv.ParseFloat(raw.Quantity, 64)
	if err != nil {
		f.logger.Warn("feed: malformed quantity, dropping", "raw", raw.Quantity, "error", err)
		return
	}

	event := tradetypes.MarketEvent{
		Symbol:              raw.Symbol,
		Price:               price,
		Quantity:            qty,
		ExchangeTimestampMs: raw.TradeMs,
		ReceivedTimestampNs: uint64(time.Since(f.start).Nanoseconds()),
	}

	f.state.RecordTick(time.Now().UnixMilli())

	if err := f.q1.Push(event); err != nil {
		f.state.RecordDroppedTick()
		f.logger.Warn("Q1 full, dropping tick")
	}
}
