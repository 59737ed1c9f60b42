package strategycore

import (
	"log/slog"
	"runtime"

	"hft-engine/internal/enginestate"
	"hft-engine/internal/queue"
	"hft-engine/pkg/tradetypes"
)

// Core runs the dedicated-thread hot loop: drain Q1, delegate to the
// active strategy, enqueue any instruction onto Q2. Construct with New
// and run Run on its own goroutine — Run locks that goroutine to its OS
// thread for the duration of the call.
type Core struct {
	state  *enginestate.State
	q1     *queue.Queue[tradetypes.MarketEvent]
	q2     *queue.Queue[tradetypes.TradeInstruction]
	cfg    Config
	logger *slog.Logger

	shutdown chan struct{}

	active   string
	strategy Strategy
}

// New builds a Core. Run builds the strategy named by state's
// active-strategy field on its first running iteration and rebuilds it
// whenever that field changes between iterations.
func New(state *enginestate.State, q1 *queue.Queue[tradetypes.MarketEvent], q2 *queue.Queue[tradetypes.TradeInstruction], cfg Config, logger *slog.Logger) *Core {
	return &Core{
		state:    state,
		q1:       q1,
		q2:       q2,
		cfg:      cfg,
		logger:   logger.With("component", "strategycore"),
		shutdown: make(chan struct{}),
	}
}

// Stop signals Run to exit its outer loop. Safe to call once; Run
// returns after observing the close.
func (c *Core) Stop() {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}
}

// Run is the dedicated-thread outer loop described by the component
// design. It locks the calling goroutine to its OS thread and attempts a
// best-effort pin to the last reported physical core; failure to pin is
// logged and ignored, never fatal.
func (c *Core) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := pinToLastCore(); err != nil {
		c.logger.Warn("failed to pin strategy thread to a core", "error", err)
	}

	c.logger.Info("strategy core started")
	defer c.logger.Info("strategy core shutting down")

	for {
		select {
		case <-c.shutdown:
			return
		default:
		}

		if !c.state.IsRunning() {
			runtime.Gosched()
			continue
		}

		if name := c.state.ActiveStrategy(); name != c.active {
			c.active = name
			c.strategy = Build(name, c.cfg, c.logger)
			c.logger.Info("strategy switched", "strategy", name)
		}

		event, err := c.q1.Pop()
		if err != nil {
			runtime.Gosched()
			continue
		}

		c.state.RecordCycle()

		instr := c.strategy.ProcessEvent(event)
		if instr == nil {
			continue
		}
		instr.DryRun = instr.DryRun || c.cfg.DryRun

		if err := c.q2.Push(*instr); err != nil {
			c.logger.Warn("Q2 full, dropping instruction", "symbol", instr.Symbol, "side", instr.Side)
		}
	}
}
