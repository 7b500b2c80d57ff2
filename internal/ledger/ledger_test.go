package ledger

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantdash/scalpbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(feeRate float64) *Ledger {
	return New(Config{FeeRate: feeRate}, testLogger())
}

func TestOpenPosition_SingleOpenPerSymbol(t *testing.T) {
	l := newTestLedger(0)

	assert.True(t, l.CanOpenPosition("BTC/USD"))

	pos := l.OpenPosition("BTC/USD", 100, 1, "ord-1")
	require.NotNil(t, pos)
	assert.Equal(t, domain.PositionStateOpen, pos.State)
	assert.True(t, l.HasOpenPosition("BTC/USD"))
	assert.False(t, l.CanOpenPosition("BTC/USD"))

	// A second open for the same symbol is rejected defensively.
	dup := l.OpenPosition("BTC/USD", 101, 1, "ord-2")
	assert.Nil(t, dup)

	// Other symbols are unaffected.
	assert.True(t, l.CanOpenPosition("ETH/USD"))
}

func TestClosePosition_PnLNoFees(t *testing.T) {
	l := newTestLedger(0)

	require.NotNil(t, l.OpenPosition("X", 100, 10, "buy-1"))
	pos := l.ClosePosition("X", 110, "sell-1")
	require.NotNil(t, pos)

	assert.Equal(t, domain.PositionStateClosed, pos.State)
	assert.InDelta(t, 100.0, pos.RealizedPnL, 1e-9)
	assert.InDelta(t, 10.0, pos.RealizedPnLPct, 1e-9)
	assert.Zero(t, pos.Fees)
	require.NotNil(t, pos.ExitPrice)
	assert.Equal(t, 110.0, *pos.ExitPrice)
	assert.Equal(t, "sell-1", pos.ExitOrderID)
	assert.False(t, l.HasOpenPosition("X"))
}

func TestClosePosition_PnLWithFees(t *testing.T) {
	l := newTestLedger(0.001)

	require.NotNil(t, l.OpenPosition("X", 100, 10, "buy-1"))
	pos := l.ClosePosition("X", 110, "sell-1")
	require.NotNil(t, pos)

	// fees = 0.001 * 10 * (100 + 110) = 2.1
	assert.InDelta(t, 2.1, pos.Fees, 1e-9)
	assert.InDelta(t, 97.9, pos.RealizedPnL, 1e-9)
}

func TestClosePosition_NoOpenPosition(t *testing.T) {
	l := newTestLedger(0)

	assert.Nil(t, l.ClosePosition("X", 110, "sell-1"))
}

func TestClosePosition_FIFOOverReopens(t *testing.T) {
	l := newTestLedger(0)

	require.NotNil(t, l.OpenPosition("X", 100, 1, "buy-1"))
	first := l.ClosePosition("X", 101, "sell-1")
	require.NotNil(t, first)
	require.NotNil(t, l.OpenPosition("X", 200, 1, "buy-2"))
	second := l.ClosePosition("X", 201, "sell-2")
	require.NotNil(t, second)

	closed := l.ClosedPositions()
	require.Len(t, closed, 2)
	assert.Equal(t, "buy-1", closed[0].EntryOrderID)
	assert.Equal(t, "buy-2", closed[1].EntryOrderID)
}

func TestSubmitOrder_DeduplicatesPerSymbolSide(t *testing.T) {
	l := newTestLedger(0)

	first := l.SubmitOrder("X", domain.OrderSideBuy, 1, domain.OrderTypeLimit, 100)
	require.NotNil(t, first)
	assert.Equal(t, domain.OrderStatusPending, first.Status)

	// Same symbol+side while pending: rejected.
	assert.Nil(t, l.SubmitOrder("X", domain.OrderSideBuy, 2, domain.OrderTypeLimit, 99))

	// Opposite side and other symbols are fine.
	assert.NotNil(t, l.SubmitOrder("X", domain.OrderSideSell, 1, domain.OrderTypeLimit, 105))
	assert.NotNil(t, l.SubmitOrder("Y", domain.OrderSideBuy, 1, domain.OrderTypeMarket, 0))

	// Once resolved, a new order for the same symbol+side is accepted.
	l.CancelOrder(first.ID)
	assert.NotNil(t, l.SubmitOrder("X", domain.OrderSideBuy, 1, domain.OrderTypeLimit, 98))
}

func TestFillOrder_BuyOpensSellCloses(t *testing.T) {
	l := newTestLedger(0)

	buy := l.SubmitOrder("X", domain.OrderSideBuy, 10, domain.OrderTypeLimit, 100)
	require.NotNil(t, buy)
	filled := l.FillOrder(buy.ID, 100, 0)
	require.NotNil(t, filled)
	assert.Equal(t, domain.OrderStatusFilled, filled.Status)
	assert.Equal(t, 10.0, filled.FilledQuantity) // defaults to order quantity
	require.True(t, l.HasOpenPosition("X"))
	assert.Equal(t, 100.0, l.GetOpenPosition("X").EntryPrice)

	sell := l.SubmitOrder("X", domain.OrderSideSell, 10, domain.OrderTypeLimit, 110)
	require.NotNil(t, sell)
	require.NotNil(t, l.FillOrder(sell.ID, 110, 10))
	assert.False(t, l.HasOpenPosition("X"))

	stats := l.Statistics()
	assert.Equal(t, 1, stats.TotalTrades)
	assert.InDelta(t, 100.0, stats.TotalPnL, 1e-9)
}

func TestFillOrder_UnknownIDIsNonFatal(t *testing.T) {
	l := newTestLedger(0)

	assert.Nil(t, l.FillOrder("bogus", 100, 1))
}

func TestCancelOrder_Idempotent(t *testing.T) {
	l := newTestLedger(0)

	order := l.SubmitOrder("X", domain.OrderSideBuy, 1, domain.OrderTypeLimit, 100)
	require.NotNil(t, order)

	l.CancelOrder(order.ID)
	assert.Nil(t, l.PendingOrder(order.ID))

	// Cancelling again, or cancelling an unknown id, must not panic.
	l.CancelOrder(order.ID)
	l.CancelOrder("does-not-exist")
}

func TestStatistics(t *testing.T) {
	l := newTestLedger(0)

	trades := []struct {
		entry, exit float64
	}{
		{100, 105}, // +50
		{100, 98},  // -20
		{100, 103}, // +30
	}
	for i, tr := range trades {
		require.NotNil(t, l.OpenPosition("X", tr.entry, 10, "buy"))
		require.NotNil(t, l.ClosePosition("X", tr.exit, "sell"), "trade %d", i)
	}

	stats := l.Statistics()
	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 66.67, stats.WinRate, 0.01)
	assert.InDelta(t, 60.0, stats.TotalPnL, 1e-9)
	assert.InDelta(t, 40.0, stats.AverageWin, 1e-9)
	assert.InDelta(t, -20.0, stats.AverageLoss, 1e-9)
	assert.InDelta(t, 2.0, stats.ProfitFactor, 1e-9)
}

func TestStatistics_DailyPnLResetsOnNewDayWithoutTrades(t *testing.T) {
	l := newTestLedger(0)

	require.NotNil(t, l.OpenPosition("X", 100, 10, "buy"))
	require.NotNil(t, l.ClosePosition("X", 105, "sell"))
	require.InDelta(t, 50.0, l.Statistics().DailyPnL, 1e-9)

	// Pretend the counter belongs to yesterday; a snapshot after midnight
	// must report a fresh daily figure even though no trade has landed yet.
	l.mu.Lock()
	l.day = l.day.AddDate(0, 0, -1)
	l.mu.Unlock()

	stats := l.Statistics()
	assert.Zero(t, stats.DailyPnL)
	assert.InDelta(t, 50.0, stats.TotalPnL, 1e-9)
}

func TestStatistics_Empty(t *testing.T) {
	l := newTestLedger(0)

	stats := l.Statistics()
	assert.Zero(t, stats.WinRate)
	assert.Zero(t, stats.AverageWin)
	assert.Zero(t, stats.AverageLoss)
	assert.Zero(t, stats.ProfitFactor)
}

func TestOpenPositionsSummary(t *testing.T) {
	l := newTestLedger(0)

	require.NotNil(t, l.OpenPosition("BTC/USD", 50000, 0.01, "b1"))
	require.NotNil(t, l.OpenPosition("ETH/USD", 3000, 0.5, "b2"))

	summaries := l.OpenPositionsSummary()
	require.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.GreaterOrEqual(t, s.AgeSeconds, 0.0)
		assert.NotZero(t, s.EntryPrice)
	}
}

func TestCleanupOldPositions(t *testing.T) {
	l := newTestLedger(0)

	require.NotNil(t, l.OpenPosition("X", 100, 1, "b1"))
	require.NotNil(t, l.ClosePosition("X", 101, "s1"))

	// Recent close survives a 24h retention window.
	assert.Zero(t, l.CleanupOldPositions(24*time.Hour))
	assert.Len(t, l.ClosedPositions(), 1)

	// Backdate the exit and prune again.
	l.mu.Lock()
	old := time.Now().UTC().Add(-48 * time.Hour)
	l.closed[0].ExitTime = &old
	l.mu.Unlock()

	assert.Equal(t, 1, l.CleanupOldPositions(24*time.Hour))
	assert.Empty(t, l.ClosedPositions())
}

func TestRestorePendingOrder(t *testing.T) {
	l := newTestLedger(0)

	l.RestorePendingOrder(domain.Order{
		ID:       "broker-1",
		Symbol:   "X",
		Side:     domain.OrderSideBuy,
		Quantity: 2,
		Type:     domain.OrderTypeLimit,
	})
	require.NotNil(t, l.PendingOrder("broker-1"))

	// A later fill resolves against the restored order.
	require.NotNil(t, l.FillOrder("broker-1", 100, 2))
	assert.True(t, l.HasOpenPosition("X"))
}
