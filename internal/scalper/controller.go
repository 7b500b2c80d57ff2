// Package scalper implements the per-symbol scalping state machine. Each
// Controller watches one symbol's price stream, decides when to buy and
// sell, drives orders to completion through the execution boundary, and
// reconciles the results into the shared position ledger.
package scalper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quantdash/scalpbot/internal/domain"
	"github.com/quantdash/scalpbot/internal/ledger"
)

// AlgoState is the controller's position in its trading cycle. The machine
// cycles ToBuy -> BuySubmitted -> ToSell -> SellSubmitted -> ToBuy with no
// terminal state.
type AlgoState string

const (
	StateToBuy         AlgoState = "to_buy"
	StateBuySubmitted  AlgoState = "buy_submitted"
	StateToSell        AlgoState = "to_sell"
	StateSellSubmitted AlgoState = "sell_submitted"
)

// shortWindow is the fast moving-average length for the entry signal.
const shortWindow = 5

// Config holds per-controller trading policy. Zero values fall back to the
// documented defaults via withDefaults.
type Config struct {
	// LotSizeUSD is the fixed dollar amount per buy; quantity is derived
	// from the last price at submission time.
	LotSizeUSD float64

	// StopLossPct exits when unrealized loss reaches this percentage.
	StopLossPct float64

	// TakeProfitPct exits when unrealized gain reaches this percentage.
	TakeProfitPct float64

	// MinProfitPct is the smallest acceptable profit for a time-based exit,
	// and the floor baked into sell limit prices.
	MinProfitPct float64

	// MaxHoldTime forces an exit after this long, but only if the trade is
	// at least marginally profitable (MinProfitPct).
	MaxHoldTime time.Duration

	// OrderTimeout cancels an unresolved order after this long.
	OrderTimeout time.Duration

	// WindowSize is the rolling price window capacity and the slow
	// moving-average length.
	WindowSize int
}

func (c Config) withDefaults() Config {
	if c.LotSizeUSD <= 0 {
		c.LotSizeUSD = 100
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = 0.5
	}
	if c.TakeProfitPct <= 0 {
		c.TakeProfitPct = 0.3
	}
	if c.MinProfitPct <= 0 {
		c.MinProfitPct = 0.1
	}
	if c.MaxHoldTime <= 0 {
		c.MaxHoldTime = 300 * time.Second
	}
	if c.OrderTimeout <= 0 {
		c.OrderTimeout = 120 * time.Second
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 20
	}
	return c
}

// Controller runs the scalping state machine for a single symbol. All
// mutable state is guarded by one mutex; ticks, steps, and order updates may
// arrive from different goroutines.
type Controller struct {
	symbol string
	cfg    Config
	exec   domain.ExecutionClient
	ledger *ledger.Ledger
	logger *slog.Logger

	mu          sync.Mutex
	state       AlgoState
	lastOrderID string
	entryPrice  float64
	lastPrice   float64
	quantity    float64
	window      *priceWindow
	buyTime     time.Time
	orderTime   time.Time // when the outstanding order was submitted
	tradesWon   int
	tradesLost  int
	totalPnL    float64
}

// New creates a Controller for symbol in the initial ToBuy state. The
// execution boundary is injected here so controllers are testable against a
// fake broker.
func New(symbol string, cfg Config, exec domain.ExecutionClient, book *ledger.Ledger, logger *slog.Logger) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		symbol: symbol,
		cfg:    cfg,
		exec:   exec,
		ledger: book,
		logger: logger.With(
			slog.String("component", "scalper"),
			slog.String("symbol", symbol),
		),
		state:  StateToBuy,
		window: newPriceWindow(cfg.WindowSize),
	}
}

// Symbol returns the symbol this controller trades.
func (c *Controller) Symbol() string { return c.symbol }

// State returns the current state machine state.
func (c *Controller) State() AlgoState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize reconciles the controller with the execution boundary's
// reality at startup: an existing open position puts the machine in ToSell,
// an outstanding order in the matching submitted state, and a position with
// an outstanding sell lands in SellSubmitted so the in-flight exit is
// tracked rather than duplicated. The controller never assumes it starts
// from a clean slate, which makes restarts safe.
func (c *Controller) Initialize(ctx context.Context) error {
	positions, err := c.exec.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("scalper: list positions: %w", err)
	}
	var pos *domain.Position
	for i := range positions {
		if positions[i].Symbol == c.symbol {
			pos = &positions[i]
			break
		}
	}

	orders, err := c.exec.ListOrders(ctx, domain.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("scalper: list orders: %w", err)
	}
	var order *domain.Order
	for i := range orders {
		if orders[i].Symbol == c.symbol {
			order = &orders[i]
			break
		}
	}

	if pos != nil {
		if !c.ledger.HasOpenPosition(c.symbol) {
			entryID := pos.EntryOrderID
			if entryID == "" {
				entryID = "recovered"
			}
			c.ledger.OpenPosition(c.symbol, pos.EntryPrice, pos.Quantity, entryID)
		}

		c.mu.Lock()
		c.state = StateToSell
		c.entryPrice = pos.EntryPrice
		c.quantity = pos.Quantity
		c.buyTime = pos.EntryTime
		if c.buyTime.IsZero() {
			c.buyTime = time.Now().UTC()
		}
		c.mu.Unlock()

		c.logger.Info("adopted existing position",
			slog.Float64("entry_price", pos.EntryPrice),
			slog.Float64("quantity", pos.Quantity),
		)

		// An outstanding sell for the position means a restart interrupted
		// SellSubmitted; re-track it so its fill closes the position instead
		// of being filtered as foreign.
		if order != nil && order.Side == domain.OrderSideSell {
			c.ledger.RestorePendingOrder(*order)

			c.mu.Lock()
			c.state = StateSellSubmitted
			c.lastOrderID = order.ID
			c.orderTime = order.CreatedAt
			c.mu.Unlock()

			c.logger.Info("adopted pending sell for position",
				slog.String("order_id", order.ID),
			)
		} else if order != nil {
			c.logger.Warn("ignoring pending buy while holding a position",
				slog.String("order_id", order.ID),
			)
		}
		return nil
	}

	if order != nil {
		c.ledger.RestorePendingOrder(*order)

		c.mu.Lock()
		c.lastOrderID = order.ID
		c.orderTime = order.CreatedAt
		if order.Side == domain.OrderSideBuy {
			c.state = StateBuySubmitted
			c.buyTime = order.CreatedAt
		} else {
			c.state = StateSellSubmitted
		}
		c.mu.Unlock()

		c.logger.Info("adopted pending order",
			slog.String("order_id", order.ID),
			slog.String("side", string(order.Side)),
		)
		return nil
	}

	c.logger.Info("starting from clean slate")
	return nil
}

// UpdatePrice records a price sample in the rolling window. The window is a
// fixed-size ring, so history stays bounded to the configured capacity.
func (c *Controller) UpdatePrice(price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPrice = price
	c.window.push(price, time.Now().UTC())
}

// RunStep performs a single non-blocking evaluation of the state machine:
// signal checks with possible order submission, or a staleness check while
// an order is outstanding. Any failure is logged and the step abandoned so
// the calling loop can keep ticking; a crashing step must never take down
// the other symbols' controllers.
func (c *Controller) RunStep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("step panicked", slog.Any("panic", r))
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateToBuy:
		if c.buySignalLocked() {
			c.submitBuyOrderLocked(ctx)
		}
	case StateToSell:
		if c.sellSignalLocked() {
			c.submitSellOrderLocked(ctx)
		}
	case StateBuySubmitted, StateSellSubmitted:
		c.cancelStaleOrderLocked(ctx)
	}
}

// buySignalLocked implements the entry filter: with a full window, the
// short-term average must sit above the long-term average and the latest
// price above the long-term average (momentum above trend). No signal fires
// on insufficient history. Caller must hold c.mu.
func (c *Controller) buySignalLocked() bool {
	if !c.window.full() {
		return false
	}
	smaShort := c.window.sma(shortWindow)
	smaLong := c.window.sma(c.cfg.WindowSize)
	return smaShort > smaLong && c.window.last() > smaLong
}

// sellSignalLocked implements the exit policy: stop-loss, take-profit, or a
// time-based exit once the hold exceeds MaxHoldTime and the trade is at
// least marginally profitable. Caller must hold c.mu.
func (c *Controller) sellSignalLocked() bool {
	if c.entryPrice == 0 {
		return false
	}
	pnlPct := (c.lastPrice - c.entryPrice) / c.entryPrice * 100

	if pnlPct <= -c.cfg.StopLossPct {
		c.logger.Info("stop loss triggered", slog.Float64("pnl_pct", pnlPct))
		return true
	}
	if pnlPct >= c.cfg.TakeProfitPct {
		c.logger.Info("take profit triggered", slog.Float64("pnl_pct", pnlPct))
		return true
	}
	if !c.buyTime.IsZero() && time.Since(c.buyTime) > c.cfg.MaxHoldTime && pnlPct >= c.cfg.MinProfitPct {
		c.logger.Info("max hold time exit", slog.Float64("pnl_pct", pnlPct))
		return true
	}
	return false
}

// submitBuyOrderLocked sizes a fixed dollar lot at the last price and posts
// a nearly-marketable limit 0.1% above it, avoiding naive market-order
// slippage. Caller must hold c.mu.
func (c *Controller) submitBuyOrderLocked(ctx context.Context) {
	if c.lastPrice <= 0 {
		return
	}
	quantity := c.cfg.LotSizeUSD / c.lastPrice
	limitPrice := c.lastPrice * 1.001

	order := c.ledger.SubmitOrder(c.symbol, domain.OrderSideBuy, quantity, domain.OrderTypeLimit, limitPrice)
	if order == nil {
		return
	}

	if _, err := c.exec.SubmitOrder(ctx, domain.OrderRequest{
		ID:          order.ID,
		Symbol:      c.symbol,
		Side:        domain.OrderSideBuy,
		Quantity:    quantity,
		Type:        domain.OrderTypeLimit,
		LimitPrice:  limitPrice,
		TimeInForce: "gtc",
	}); err != nil {
		// Roll back the ledger entry; the next step re-evaluates from ToBuy.
		c.ledger.CancelOrder(order.ID)
		c.logger.Warn("buy submission failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	c.lastOrderID = order.ID
	c.state = StateBuySubmitted
	c.buyTime = now
	c.orderTime = now

	c.logger.Info("buy order submitted",
		slog.String("order_id", order.ID),
		slog.Float64("quantity", quantity),
		slog.Float64("limit_price", limitPrice),
	)
}

// submitSellOrderLocked posts a limit for the full held quantity at
// max(entry * (1 + MinProfitPct/100), last): the posted price never locks in
// a loss below policy even when the market is lower. Caller must hold c.mu.
func (c *Controller) submitSellOrderLocked(ctx context.Context) {
	pos := c.ledger.GetOpenPosition(c.symbol)
	if pos == nil {
		c.logger.Warn("no open position to sell")
		return
	}

	limitPrice := c.entryPrice * (1 + c.cfg.MinProfitPct/100)
	if c.lastPrice > limitPrice {
		limitPrice = c.lastPrice
	}

	order := c.ledger.SubmitOrder(c.symbol, domain.OrderSideSell, pos.Quantity, domain.OrderTypeLimit, limitPrice)
	if order == nil {
		return
	}

	if _, err := c.exec.SubmitOrder(ctx, domain.OrderRequest{
		ID:          order.ID,
		Symbol:      c.symbol,
		Side:        domain.OrderSideSell,
		Quantity:    pos.Quantity,
		Type:        domain.OrderTypeLimit,
		LimitPrice:  limitPrice,
		TimeInForce: "gtc",
	}); err != nil {
		c.ledger.CancelOrder(order.ID)
		c.logger.Warn("sell submission failed", slog.String("error", err.Error()))
		return
	}

	c.lastOrderID = order.ID
	c.state = StateSellSubmitted
	c.orderTime = time.Now().UTC()

	c.logger.Info("sell order submitted",
		slog.String("order_id", order.ID),
		slog.Float64("quantity", pos.Quantity),
		slog.Float64("limit_price", limitPrice),
	)
}

// cancelStaleOrderLocked cancels the outstanding order once it has aged past
// OrderTimeout and reverts to the pre-submission state. A failed cancel
// leaves everything unchanged for a retry on the next step. Caller must hold
// c.mu.
func (c *Controller) cancelStaleOrderLocked(ctx context.Context) {
	if c.lastOrderID == "" {
		return
	}
	if time.Since(c.orderTime) < c.cfg.OrderTimeout {
		return
	}

	if err := c.exec.CancelOrder(ctx, c.lastOrderID); err != nil {
		c.logger.Warn("stale order cancel failed",
			slog.String("order_id", c.lastOrderID),
			slog.String("error", err.Error()),
		)
		return
	}
	c.ledger.CancelOrder(c.lastOrderID)

	c.logger.Info("stale order cancelled",
		slog.String("order_id", c.lastOrderID),
		slog.String("state", string(c.state)),
	)

	c.lastOrderID = ""
	if c.state == StateBuySubmitted {
		c.state = StateToBuy
	} else {
		c.state = StateToSell
	}
}

// OnOrderUpdate handles an asynchronous fill/cancel/reject notification.
// Events for any order other than the controller's outstanding one are
// stale or foreign and are ignored.
func (c *Controller) OnOrderUpdate(update domain.OrderUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	order := update.Order
	if order.ID == "" || order.ID != c.lastOrderID {
		return
	}

	switch update.Event {
	case domain.OrderEventFill:
		c.ledger.FillOrder(order.ID, order.FilledPrice, order.FilledQuantity)
		if order.Side == domain.OrderSideBuy {
			c.entryPrice = order.FilledPrice
			c.quantity = order.FilledQuantity
			c.state = StateToSell
			c.lastOrderID = ""
			c.logger.Info("buy filled",
				slog.Float64("entry_price", order.FilledPrice),
				slog.Float64("quantity", order.FilledQuantity),
			)
		} else {
			pnl := (order.FilledPrice - c.entryPrice) * order.FilledQuantity
			c.totalPnL += pnl
			if pnl > 0 {
				c.tradesWon++
			} else if pnl < 0 {
				c.tradesLost++
			}
			c.logger.Info("sell filled",
				slog.Float64("exit_price", order.FilledPrice),
				slog.Float64("pnl", pnl),
			)
			c.resetLocked()
		}

	case domain.OrderEventCancelled, domain.OrderEventRejected:
		c.ledger.CancelOrder(order.ID)
		c.lastOrderID = ""
		if c.state == StateBuySubmitted {
			c.state = StateToBuy
		} else if c.state == StateSellSubmitted {
			c.state = StateToSell
		}
		c.logger.Info("order resolved without fill",
			slog.String("order_id", order.ID),
			slog.String("event", string(update.Event)),
		)
	}
}

// resetLocked returns the machine to a flat ToBuy state after a completed
// round trip. Caller must hold c.mu.
func (c *Controller) resetLocked() {
	c.state = StateToBuy
	c.lastOrderID = ""
	c.entryPrice = 0
	c.quantity = 0
	c.buyTime = time.Time{}
	c.orderTime = time.Time{}
}

// Status returns a point-in-time snapshot for the reporting surface.
// Unrealized P&L is computed live from the last price; it is zero when no
// position is held.
func (c *Controller) Status() domain.ControllerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.ControllerStatus{
		Symbol:      c.symbol,
		State:       string(c.state),
		Quantity:    c.quantity,
		EntryPrice:  c.entryPrice,
		LastPrice:   c.lastPrice,
		TotalPnL:    c.totalPnL,
		TradesWon:   c.tradesWon,
		TradesLost:  c.tradesLost,
		LastOrderID: c.lastOrderID,
	}
	if c.entryPrice > 0 && c.quantity > 0 {
		status.UnrealizedPnL = (c.lastPrice - c.entryPrice) * c.quantity
	}
	if total := c.tradesWon + c.tradesLost; total > 0 {
		status.WinRate = float64(c.tradesWon) / float64(total) * 100
	}
	return status
}
