package paper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdash/scalpbot/internal/domain"
)

func testEngine() *Engine {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func tick(symbol string, price float64) domain.PriceTick {
	return domain.PriceTick{Symbol: symbol, Price: price, Timestamp: time.Now().UTC()}
}

func TestSubmitOrder_Validation(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	_, err := e.SubmitOrder(ctx, domain.OrderRequest{Symbol: "", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)

	_, err = e.SubmitOrder(ctx, domain.OrderRequest{
		Symbol: "X", Side: domain.OrderSideBuy, Quantity: 1, Type: domain.OrderTypeLimit,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestLimitBuy_FillsWhenPriceCrosses(t *testing.T) {
	e := testEngine()
	var updates []domain.OrderUpdate
	e.SetUpdateHandler(func(u domain.OrderUpdate) { updates = append(updates, u) })

	order, err := e.SubmitOrder(context.Background(), domain.OrderRequest{
		ID: "buy-1", Symbol: "X", Side: domain.OrderSideBuy,
		Quantity: 2, Type: domain.OrderTypeLimit, LimitPrice: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "buy-1", order.ID)

	// Above the limit: no fill.
	e.OnTick(tick("X", 101))
	assert.Empty(t, updates)

	// At the limit: fill at tick price.
	e.OnTick(tick("X", 100))
	require.Len(t, updates, 1)
	assert.Equal(t, domain.OrderEventFill, updates[0].Event)
	assert.Equal(t, 100.0, updates[0].Order.FilledPrice)
	assert.Equal(t, 2.0, updates[0].Order.FilledQuantity)

	// The fill created a holding.
	positions, err := e.ListPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 2.0, positions[0].Quantity)
}

func TestLimitSell_FillsAndFlattens(t *testing.T) {
	e := testEngine()
	var updates []domain.OrderUpdate
	e.SetUpdateHandler(func(u domain.OrderUpdate) { updates = append(updates, u) })
	e.SeedPosition(domain.Position{
		Symbol: "X", EntryPrice: 100, Quantity: 2,
		EntryTime: time.Now(), State: domain.PositionStateOpen,
	})

	_, err := e.SubmitOrder(context.Background(), domain.OrderRequest{
		ID: "sell-1", Symbol: "X", Side: domain.OrderSideSell,
		Quantity: 2, Type: domain.OrderTypeLimit, LimitPrice: 105,
	})
	require.NoError(t, err)

	e.OnTick(tick("X", 104)) // below limit, rests
	e.OnTick(tick("X", 106)) // crosses
	require.Len(t, updates, 1)
	assert.Equal(t, 106.0, updates[0].Order.FilledPrice)

	positions, err := e.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestMarketOrder_FillsOnNextTick(t *testing.T) {
	e := testEngine()
	var updates []domain.OrderUpdate
	e.SetUpdateHandler(func(u domain.OrderUpdate) { updates = append(updates, u) })

	_, err := e.SubmitOrder(context.Background(), domain.OrderRequest{
		ID: "mkt-1", Symbol: "X", Side: domain.OrderSideBuy,
		Quantity: 1, Type: domain.OrderTypeMarket,
	})
	require.NoError(t, err)

	e.OnTick(tick("X", 99.5))
	require.Len(t, updates, 1)
	assert.Equal(t, 99.5, updates[0].Order.FilledPrice)
}

func TestCancelOrder(t *testing.T) {
	e := testEngine()

	_, err := e.SubmitOrder(context.Background(), domain.OrderRequest{
		ID: "buy-1", Symbol: "X", Side: domain.OrderSideBuy,
		Quantity: 1, Type: domain.OrderTypeLimit, LimitPrice: 100,
	})
	require.NoError(t, err)

	require.NoError(t, e.CancelOrder(context.Background(), "buy-1"))

	// Cancelled orders never fill.
	e.OnTick(tick("X", 90))
	order, err := e.GetOrder(context.Background(), "buy-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	// Cancelling a resolved or unknown order reports not found.
	assert.ErrorIs(t, e.CancelOrder(context.Background(), "buy-1"), domain.ErrNotFound)
	assert.ErrorIs(t, e.CancelOrder(context.Background(), "nope"), domain.ErrNotFound)
}

func TestTicksForOtherSymbolsDoNotFill(t *testing.T) {
	e := testEngine()
	var updates []domain.OrderUpdate
	e.SetUpdateHandler(func(u domain.OrderUpdate) { updates = append(updates, u) })

	_, err := e.SubmitOrder(context.Background(), domain.OrderRequest{
		ID: "buy-1", Symbol: "X", Side: domain.OrderSideBuy,
		Quantity: 1, Type: domain.OrderTypeLimit, LimitPrice: 100,
	})
	require.NoError(t, err)

	e.OnTick(tick("Y", 50))
	assert.Empty(t, updates)

	pending, err := e.ListOrders(context.Background(), domain.OrderStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
