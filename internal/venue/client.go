// Package venue implements the REST client the execution dispatcher talks
// to: order placement, position sync at startup, and cancel-all-orders on
// shutdown. Order placement short-circuits before touching the network
// when the instruction is marked dry-run; every call that reaches the
// network passes through a shared token-bucket rate limiter first.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"hft-engine/pkg/tradetypes"
)

// Config carries the connection details the client needs.
type Config struct {
	RESTBaseURL string
	APIKey      string
	SecretKey   string
	DryRun      bool
}

// Client talks to the venue's signed REST API.
type Client struct {
	http       *resty.Client // default 10s timeout, used for order placement and position sync
	cancelHTTP *resty.Client // shorter 5s timeout, used only by CancelAllOrders
	signer     Signer
	rl         *TokenBucket
	dryRun     bool
	logger     *slog.Logger
}

// NewClient builds a Client from Config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	logger = logger.With("component", "venue")

	build := func(timeout time.Duration) *resty.Client {
		return resty.New().
			SetBaseURL(cfg.RESTBaseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetHeader("X-MBX-APIKEY", cfg.APIKey)
	}

	return &Client{
		http:       build(10 * time.Second),
		cancelHTTP: build(5 * time.Second),
		signer:     NewSigner(cfg.APIKey, cfg.SecretKey),
		rl:         NewTokenBucket(10, 10),
		dryRun:     cfg.DryRun,
		logger:     logger,
	}
}

// AuthError wraps a response the venue flagged as an authentication
// failure (error codes -2014/-2015, or the literal message
// "API-key format invalid"). Startup treats this as fatal when trading is
// enabled.
type AuthError struct {
	msg string
}

func (e *AuthError) Error() string { return "AUTH_ERROR: " + e.msg }

func classifyError(body string) error {
	if strings.Contains(body, "-2014") || strings.Contains(body, "-2015") || strings.Contains(body, "API-key format invalid") {
		return &AuthError{msg: body}
	}
	return fmt.Errorf("venue: exchange error: %s", body)
}

// PlaceOrder submits a new order. If instr.DryRun, it returns
// "DRY_RUN_SUCCESS" without contacting the network or consuming a
// rate-limit token.
func (c *Client) PlaceOrder(ctx context.Context, instr tradetypes.TradeInstruction) (string, error) {
	if instr.DryRun {
		return "DRY_RUN_SUCCESS", nil
	}

	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	query := c.canonicalOrderQuery(instr)
	signed := c.signer.SignedQuery(query)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(signed).
		Post("/fapi/v1/order")
	if err != nil {
		return "", fmt.Errorf("venue: place order: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return "", classifyError(resp.String())
	}
	return resp.String(), nil
}

func (c *Client) canonicalOrderQuery(instr tradetypes.TradeInstruction) string {
	parts := []string{
		"symbol=" + instr.Symbol,
		"side=" + string(instr.Side),
		"type=" + string(instr.OrderType),
		"quantity=" + fmtDecimal(instr.Quantity),
	}
	if instr.OrderType == tradetypes.Limit {
		parts = append(parts, "timeInForce=GTC", "price="+fmtDecimal(instr.Price))
	}
	parts = append(parts,
		"recvWindow=5000",
		"timestamp="+strconv.FormatInt(time.Now().UnixMilli(), 10),
	)
	return strings.Join(parts, "&")
}

// PositionRisk mirrors the venue's positionRisk response shape, trimmed to
// the fields this engine seeds its state from.
type PositionRisk struct {
	Symbol      string `json:"symbol"`
	PositionAmt string `json:"positionAmt"`
	EntryPrice  string `json:"entryPrice"`
}

// SyncPositions fetches the current position for symbol, used once at
// startup to seed current_position and avg_entry_price.
func (c *Client) SyncPositions(ctx context.Context, symbol string) ([]PositionRisk, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("recvWindow", "5000")
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	signed := c.signer.SignedQuery(query.Encode())

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryString(signed).
		Get("/fapi/v2/positionRisk")
	if err != nil {
		return nil, fmt.Errorf("venue: sync positions: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, classifyError(resp.String())
	}

	var out []PositionRisk
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("venue: sync positions: decode: %w", err)
	}
	return out, nil
}

// cancelBackoffs are the fixed retry delays for CancelAllOrders.
var cancelBackoffs = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}

// CancelAllOrders cancels every open order for symbol. It retries up to
// three times with a short fixed backoff and uses the shorter 5s-timeout
// client so shutdown cannot hang indefinitely. A response indicating no
// open orders is treated as success.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		err := c.cancelOnce(ctx, symbol)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt >= len(cancelBackoffs) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cancelBackoffs[attempt]):
		}
	}
	return fmt.Errorf("venue: cancel all orders: %w", lastErr)
}

func (c *Client) cancelOnce(ctx context.Context, symbol string) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("recvWindow", "5000")
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	signed := c.signer.SignedQuery(query.Encode())

	resp, err := c.cancelHTTP.R().
		SetContext(ctx).
		SetBody(signed).
		Delete("/fapi/v1/allOpenOrders")
	if err != nil {
		return err
	}
	body := resp.String()
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	if resp.StatusCode() == http.StatusBadRequest && (strings.Contains(body, "No open order") || strings.Contains(body, "-2011")) {
		c.logger.Info("cancel all orders: no open orders", "symbol", symbol)
		return nil
	}
	return classifyError(body)
}
