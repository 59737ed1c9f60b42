// Package execdispatch implements the execution dispatcher: it drains
// Q2, gates every instruction through the risk manager, signs and posts
// orders through the venue client, and updates the shared position/P&L
// state and persistence sink on success.
package execdispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"time"

	"hft-engine/internal/enginestate"
	"hft-engine/internal/pnl"
	"hft-engine/internal/queue"
	"hft-engine/internal/risk"
	"hft-engine/internal/storage"
	"hft-engine/internal/venue"
	"hft-engine/pkg/tradetypes"
)

// VenueClient is the subset of venue.Client the dispatcher depends on,
// narrowed to an interface so tests can substitute a mock.
type VenueClient interface {
	PlaceOrder(ctx context.Context, instr tradetypes.TradeInstruction) (string, error)
}

// Dispatcher owns the Q2 consumer loop.
type Dispatcher struct {
	q2      *queue.Queue[tradetypes.TradeInstruction]
	risk    *risk.Manager
	venue   VenueClient
	pnl     *pnl.State
	storage *storage.Store
	state   *enginestate.State
	feeRate float64
	logger  *slog.Logger

	shutdown chan struct{}
}

// New builds a Dispatcher. feeRate is the taker fee rate (e.g. 0.0004)
// applied to every filled order's notional to compute the fee passed
// into pnl.State.UpdateFromTrade.
func New(q2 *queue.Queue[tradetypes.TradeInstruction], riskMgr *risk.Manager, venueClient VenueClient, pnlState *pnl.State, store *storage.Store, state *enginestate.State, feeRate float64, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		q2:       q2,
		risk:     riskMgr,
		venue:    venueClient,
		pnl:      pnlState,
		storage:  store,
		state:    state,
		feeRate:  feeRate,
		logger:   logger.With("component", "execdispatch"),
		shutdown: make(chan struct{}),
	}
}

// Stop signals Run to exit. Safe to call once.
func (d *Dispatcher) Stop() {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}
}

// Run is the dispatcher's cooperative loop; it must run on its own
// goroutine and returns once Stop is called.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("execution dispatcher started")
	defer d.logger.Info("execution dispatcher shutting down")

	for {
		select {
		case <-d.shutdown:
			return
		case <-ctx.Done():
			return
		default:
		}

		instr, err := d.q2.Pop()
		if err != nil {
			runtime.Gosched()
			continue
		}

		if !d.state.IsRunning() {
			continue
		}

		snapshot := d.pnl.Snapshot()
		if err := d.risk.Check(string(instr.Side), instr.Quantity, instr.Price, snapshot.CurrentPosition, instr.DryRun); err != nil {
			d.state.AddLog("risk rejected: " + err.Error())
			d.logger.Warn("instruction rejected by risk gate", "error", err)
			continue
		}

		d.execute(ctx, instr)
	}
}

func (d *Dispatcher) execute(ctx context.Context, instr tradetypes.TradeInstruction) {
	start := time.Now()
	body, err := d.venue.PlaceOrder(ctx, instr)
	if err != nil {
		d.state.AddLog("order failed: " + err.Error())
		d.logger.Error("place order failed", "error", err, "symbol", instr.Symbol, "side", instr.Side)
		return
	}
	rtt := uint64(time.Since(start).Nanoseconds())

	d.pnl.RecordOrderResult(rtt)

	fee := instr.Quantity * instr.Price * d.feeRate
	signedQty := instr.Side.SignedQuantity(instr.Quantity)
	nowMs := time.Now().UnixMilli()
	d.pnl.UpdateFromTrade(signedQty, instr.Price, fee, nowMs)

	orderID, execID := parseOrderResponse(body)

	d.storage.Enqueue(tradetypes.TradeRecord{
		ExchangeTsMs: nowMs,
		MonotonicNs:  instr.TimestampNs,
		Symbol:       instr.Symbol,
		Side:         instr.Side,
		Price:        instr.Price,
		Quantity:     instr.Quantity,
		PnL:          d.pnl.Snapshot().CurrentPnL,
		Strategy:     d.state.ActiveStrategy(),
		OrderID:      orderID,
		ExecID:       execID,
		Fee:          fee,
		FeeCurrency:  "USDT",
		Raw:          body,
	})

	d.evaluateAutoStop()
}

// evaluateAutoStop stops the engine once realized P&L breaches the
// configured loss limit or clears the target-profit bound (when set).
func (d *Dispatcher) evaluateAutoStop() {
	pnlNow := d.pnl.Snapshot().CurrentPnL
	maxLoss := d.state.MaxLossLimit()
	target := d.state.TargetProfit()

	if maxLoss > 0 && pnlNow <= -maxLoss {
		d.state.SetRunning(false)
		d.state.AddLog("auto-stop: max loss limit reached")
		d.logger.Warn("auto-stop triggered: max loss limit reached", "pnl", pnlNow, "max_loss_limit", maxLoss)
		return
	}
	if target > 0 && pnlNow >= target {
		d.state.SetRunning(false)
		d.state.AddLog("auto-stop: target profit reached")
		d.logger.Warn("auto-stop triggered: target profit reached", "pnl", pnlNow, "target_profit", target)
	}
}

// parseOrderResponse best-effort extracts an order/exec ID from the
// venue's response body; a dry-run or unparsable body yields empty IDs,
// which is fine since Raw always carries the full body.
func parseOrderResponse(body string) (orderID, execID string) {
	var parsed struct {
		OrderID  json.Number `json:"orderId"`
		ClientID string      `json:"clientOrderId"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", ""
	}
	return parsed.OrderID.String(), parsed.ClientID
}

var _ VenueClient = (*venue.Client)(nil)
