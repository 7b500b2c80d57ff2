// Package paper implements the execution boundary against an in-memory
// simulated broker. Orders rest until a price tick crosses them, at which
// point a fill event is delivered to the registered handler. It backs the
// out-of-the-box paper trading mode and the controller integration tests;
// a live brokerage adapter plugs into the same domain.ExecutionClient seam.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantdash/scalpbot/internal/domain"
)

// Engine is a simulated broker. Fill events are emitted from OnTick only,
// never synchronously from SubmitOrder or CancelOrder, mirroring the
// asynchronous delivery of a real order-event feed.
type Engine struct {
	mu       sync.Mutex
	logger   *slog.Logger
	orders   map[string]*domain.Order
	resting  []string // pending order ids in submission order
	holdings map[string]*domain.Position
	handler  domain.OrderUpdateHandler
}

// New creates an empty paper broker.
func New(logger *slog.Logger) *Engine {
	return &Engine{
		logger:   logger.With(slog.String("component", "paper_broker")),
		orders:   make(map[string]*domain.Order),
		holdings: make(map[string]*domain.Position),
	}
}

// SetUpdateHandler registers the callback that receives fill events. Must be
// called before ticks start flowing.
func (e *Engine) SetUpdateHandler(h domain.OrderUpdateHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// ListPositions returns the currently held simulated positions.
func (e *Engine) ListPositions(_ context.Context) ([]domain.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Position, 0, len(e.holdings))
	for _, pos := range e.holdings {
		out = append(out, *pos)
	}
	return out, nil
}

// ListOrders returns orders with the given status.
func (e *Engine) ListOrders(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Order
	for _, o := range e.orders {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

// SubmitOrder accepts a new resting order. The caller's id is honored when
// set so later events reconcile against it.
func (e *Engine) SubmitOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if req.Symbol == "" || req.Quantity <= 0 {
		return nil, domain.ErrInvalidOrder
	}
	if req.Type == domain.OrderTypeLimit && req.LimitPrice <= 0 {
		return nil, fmt.Errorf("paper: limit order without price: %w", domain.ErrInvalidOrder)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := e.orders[id]; exists {
		return nil, fmt.Errorf("paper: order id %s already used: %w", id, domain.ErrInvalidOrder)
	}

	order := &domain.Order{
		ID:         id,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Type:       req.Type,
		LimitPrice: req.LimitPrice,
		Status:     domain.OrderStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	e.orders[id] = order
	e.resting = append(e.resting, id)

	e.logger.Debug("order accepted",
		slog.String("order_id", id),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
	)

	cp := *order
	return &cp, nil
}

// CancelOrder removes a resting order. Cancelling an unknown or resolved
// order returns domain.ErrNotFound. No event is emitted; the synchronous
// return is the confirmation.
func (e *Engine) CancelOrder(_ context.Context, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok || order.Status != domain.OrderStatusPending {
		return domain.ErrNotFound
	}
	order.Status = domain.OrderStatusCancelled
	e.removeRestingLocked(orderID)
	return nil
}

// GetOrder returns the current state of one order.
func (e *Engine) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

// SeedPosition installs a pre-existing holding, used to simulate restart
// recovery scenarios.
func (e *Engine) SeedPosition(pos domain.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := pos
	e.holdings[pos.Symbol] = &cp
}

// OnTick advances the simulation with a new price. Resting orders whose
// limit the tick crosses are filled at the tick price and the fill events
// delivered to the handler after the engine lock is released, preserving
// submission order.
func (e *Engine) OnTick(tick domain.PriceTick) {
	e.mu.Lock()

	var fills []domain.OrderUpdate
	remaining := e.resting[:0]
	for _, id := range e.resting {
		order := e.orders[id]
		if order.Symbol != tick.Symbol || !crosses(order, tick.Price) {
			remaining = append(remaining, id)
			continue
		}

		now := tick.Timestamp
		if now.IsZero() {
			now = time.Now().UTC()
		}
		order.Status = domain.OrderStatusFilled
		order.FilledPrice = tick.Price
		order.FilledQuantity = order.Quantity
		order.FilledAt = &now
		e.applyFillLocked(order, now)
		fills = append(fills, domain.OrderUpdate{Event: domain.OrderEventFill, Order: *order})
	}
	e.resting = remaining
	handler := e.handler
	e.mu.Unlock()

	if handler == nil {
		return
	}
	for _, fill := range fills {
		e.logger.Debug("order filled",
			slog.String("order_id", fill.Order.ID),
			slog.Float64("price", fill.Order.FilledPrice),
		)
		handler(fill)
	}
}

// crosses reports whether a tick at price executes the order. Market orders
// execute on the next tick; a limit buy needs the market at or below its
// limit, a limit sell at or above.
func crosses(order *domain.Order, price float64) bool {
	if order.Type == domain.OrderTypeMarket {
		return true
	}
	if order.Side == domain.OrderSideBuy {
		return price <= order.LimitPrice
	}
	return price >= order.LimitPrice
}

// applyFillLocked updates the simulated holdings for a fill. The caller must
// hold e.mu.
func (e *Engine) applyFillLocked(order *domain.Order, now time.Time) {
	if order.Side == domain.OrderSideBuy {
		if pos, ok := e.holdings[order.Symbol]; ok {
			// Average into the existing lot.
			total := pos.Quantity + order.FilledQuantity
			pos.EntryPrice = (pos.EntryPrice*pos.Quantity + order.FilledPrice*order.FilledQuantity) / total
			pos.Quantity = total
			return
		}
		e.holdings[order.Symbol] = &domain.Position{
			Symbol:       order.Symbol,
			EntryPrice:   order.FilledPrice,
			Quantity:     order.FilledQuantity,
			EntryTime:    now,
			EntryOrderID: order.ID,
			State:        domain.PositionStateOpen,
		}
		return
	}

	pos, ok := e.holdings[order.Symbol]
	if !ok {
		e.logger.Warn("sell fill with no holding", slog.String("symbol", order.Symbol))
		return
	}
	pos.Quantity -= order.FilledQuantity
	if pos.Quantity <= 1e-12 {
		delete(e.holdings, order.Symbol)
	}
}

// removeRestingLocked drops an id from the resting list. The caller must
// hold e.mu.
func (e *Engine) removeRestingLocked(orderID string) {
	for i, id := range e.resting {
		if id == orderID {
			e.resting = append(e.resting[:i], e.resting[i+1:]...)
			return
		}
	}
}

// Compile-time interface check.
var _ domain.ExecutionClient = (*Engine)(nil)
