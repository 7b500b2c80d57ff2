// Package ledger is the single source of truth for what positions and orders
// exist. It is pure in-memory bookkeeping: no I/O, no networking, fully
// deterministic. Every scalp controller shares one Ledger, so all mutating
// operations are guarded by a mutex.
//
// Lookup misses and policy violations (unknown order id, nothing to close,
// duplicate pending order) are recoverable conditions: they return nil/false
// and log at warn level. The ledger never panics and never returns errors
// for "nothing to do".
package ledger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantdash/scalpbot/internal/domain"
)

// Config holds ledger-wide accounting parameters.
type Config struct {
	// FeeRate is the per-side fee as a fraction of notional. Applied as
	// fees = rate * qty * (entry + exit) at close time.
	FeeRate float64
}

// Ledger tracks open and historical positions, pending and filled orders,
// and running session counters for a set of symbols.
type Ledger struct {
	mu sync.Mutex

	feeRate float64
	logger  *slog.Logger

	open    map[string][]*domain.Position // per symbol, in entry order
	closed  []*domain.Position
	pending map[string]*domain.Order
	filled  map[string]*domain.Order

	totalTrades   int
	winningTrades int
	losingTrades  int
	totalPnL      float64
	dailyPnL      float64
	winSum        float64
	lossSum       float64
	day           time.Time // UTC day the dailyPnL counter belongs to

	sessionStart time.Time
}

// New creates an empty Ledger. The session clock starts now.
func New(cfg Config, logger *slog.Logger) *Ledger {
	now := time.Now().UTC()
	return &Ledger{
		feeRate:      cfg.FeeRate,
		logger:       logger.With(slog.String("component", "ledger")),
		open:         make(map[string][]*domain.Position),
		pending:      make(map[string]*domain.Order),
		filled:       make(map[string]*domain.Order),
		day:          now.Truncate(24 * time.Hour),
		sessionStart: now,
	}
}

// CanOpenPosition reports whether no position for symbol is currently open.
func (l *Ledger) CanOpenPosition(symbol string) bool {
	return !l.HasOpenPosition(symbol)
}

// HasOpenPosition reports whether at least one open position exists for
// symbol.
func (l *Ledger) HasOpenPosition(symbol string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open[symbol]) > 0
}

// GetOpenPosition returns a copy of the oldest open position for symbol, or
// nil if none exists.
func (l *Ledger) GetOpenPosition(symbol string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions := l.open[symbol]
	if len(positions) == 0 {
		return nil
	}
	cp := *positions[0]
	return &cp
}

// OpenPosition records a new open position from a buy fill. Callers are
// expected to have checked CanOpenPosition first; a duplicate open is
// rejected defensively with a warn log rather than trusted.
func (l *Ledger) OpenPosition(symbol string, entryPrice, quantity float64, orderID string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openPositionLocked(symbol, entryPrice, quantity, orderID)
}

// openPositionLocked is OpenPosition without locking. The caller must hold
// l.mu.
func (l *Ledger) openPositionLocked(symbol string, entryPrice, quantity float64, orderID string) *domain.Position {
	if len(l.open[symbol]) > 0 {
		l.logger.Warn("rejecting duplicate open",
			slog.String("symbol", symbol),
			slog.String("order_id", orderID),
		)
		return nil
	}

	pos := &domain.Position{
		Symbol:       symbol,
		EntryPrice:   entryPrice,
		Quantity:     quantity,
		EntryTime:    time.Now().UTC(),
		EntryOrderID: orderID,
		State:        domain.PositionStateOpen,
	}
	l.open[symbol] = append(l.open[symbol], pos)

	l.logger.Info("position opened",
		slog.String("symbol", symbol),
		slog.Float64("entry_price", entryPrice),
		slog.Float64("quantity", quantity),
		slog.String("order_id", orderID),
	)

	cp := *pos
	return &cp
}

// ClosePosition closes the oldest open position for symbol (FIFO over
// opens), computes realized P&L, updates the session counters, and archives
// the position. Returns nil with a warn log when no open position exists.
func (l *Ledger) ClosePosition(symbol string, exitPrice float64, orderID string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closePositionLocked(symbol, exitPrice, orderID)
}

// closePositionLocked is ClosePosition without locking. The caller must hold
// l.mu.
func (l *Ledger) closePositionLocked(symbol string, exitPrice float64, orderID string) *domain.Position {
	positions := l.open[symbol]
	if len(positions) == 0 {
		l.logger.Warn("no open position to close",
			slog.String("symbol", symbol),
			slog.String("order_id", orderID),
		)
		return nil
	}

	// Oldest entry closes first.
	pos := positions[0]
	l.open[symbol] = positions[1:]

	now := time.Now().UTC()
	gross := (exitPrice - pos.EntryPrice) * pos.Quantity
	fees := l.feeRate * pos.Quantity * (pos.EntryPrice + exitPrice)
	net := gross - fees

	pos.State = domain.PositionStateClosed
	pos.ExitPrice = &exitPrice
	pos.ExitTime = &now
	pos.ExitOrderID = orderID
	pos.RealizedPnL = net
	pos.Fees = fees
	if pos.EntryPrice > 0 && pos.Quantity > 0 {
		pos.RealizedPnLPct = net / (pos.EntryPrice * pos.Quantity) * 100
	}

	l.closed = append(l.closed, pos)
	l.recordTradeLocked(net, now)

	l.logger.Info("position closed",
		slog.String("symbol", symbol),
		slog.Float64("entry_price", pos.EntryPrice),
		slog.Float64("exit_price", exitPrice),
		slog.Float64("pnl", net),
		slog.Float64("pnl_pct", pos.RealizedPnLPct),
		slog.Float64("fees", fees),
	)

	cp := *pos
	return &cp
}

// rollDayLocked zeroes the daily P&L counter when now falls on a new UTC
// day. The caller must hold l.mu.
func (l *Ledger) rollDayLocked(now time.Time) {
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(l.day) {
		l.day = day
		l.dailyPnL = 0
	}
}

// recordTradeLocked updates the win/loss counters and P&L sums for a closed
// trade. The caller must hold l.mu.
func (l *Ledger) recordTradeLocked(pnl float64, now time.Time) {
	l.rollDayLocked(now)

	l.totalTrades++
	l.totalPnL += pnl
	l.dailyPnL += pnl
	switch {
	case pnl > 0:
		l.winningTrades++
		l.winSum += pnl
	case pnl < 0:
		l.losingTrades++
		l.lossSum += pnl
	}
}

// SubmitOrder registers a new pending order and returns it. At most one
// pending order may exist per (symbol, side); a second submission is
// rejected with a warn log and returns nil.
func (l *Ledger) SubmitOrder(symbol string, side domain.OrderSide, quantity float64, orderType domain.OrderType, limitPrice float64) *domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range l.pending {
		if o.Symbol == symbol && o.Side == side {
			l.logger.Warn("duplicate pending order rejected",
				slog.String("symbol", symbol),
				slog.String("side", string(side)),
				slog.String("existing_order_id", o.ID),
			)
			return nil
		}
	}

	order := &domain.Order{
		ID:         fmt.Sprintf("%s_%s_%s", symbol, side, uuid.NewString()[:8]),
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Type:       orderType,
		LimitPrice: limitPrice,
		Status:     domain.OrderStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	l.pending[order.ID] = order

	l.logger.Info("order submitted",
		slog.String("order_id", order.ID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("quantity", quantity),
		slog.Float64("limit_price", limitPrice),
	)

	cp := *order
	return &cp
}

// RestorePendingOrder re-registers a pending order discovered at the
// execution boundary during startup reconciliation, so that a later fill or
// cancel notification resolves against it. Duplicate ids are ignored.
func (l *Ledger) RestorePendingOrder(order domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.pending[order.ID]; ok {
		return
	}
	order.Status = domain.OrderStatusPending
	cp := order
	l.pending[order.ID] = &cp

	l.logger.Info("pending order restored",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
	)
}

// FillOrder resolves a pending order against a fill notification. As a side
// effect it opens a position for buy fills and closes one for sell fills.
// Unknown order ids are stale or foreign notifications: logged and ignored.
// A filledQuantity of 0 means the full order quantity filled.
func (l *Ledger) FillOrder(orderID string, filledPrice, filledQuantity float64) *domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.pending[orderID]
	if !ok {
		l.logger.Warn("fill for unknown order", slog.String("order_id", orderID))
		return nil
	}

	if filledQuantity <= 0 {
		filledQuantity = order.Quantity
	}
	now := time.Now().UTC()
	order.Status = domain.OrderStatusFilled
	order.FilledPrice = filledPrice
	order.FilledQuantity = filledQuantity
	order.FilledAt = &now
	delete(l.pending, orderID)
	l.filled[orderID] = order

	l.logger.Info("order filled",
		slog.String("order_id", orderID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Float64("filled_price", filledPrice),
		slog.Float64("filled_quantity", filledQuantity),
	)

	switch order.Side {
	case domain.OrderSideBuy:
		l.openPositionLocked(order.Symbol, filledPrice, filledQuantity, orderID)
	case domain.OrderSideSell:
		l.closePositionLocked(order.Symbol, filledPrice, orderID)
	}

	cp := *order
	return &cp
}

// CancelOrder marks a pending order cancelled and removes it from the
// pending set. Cancelling an unknown or already-resolved order is a no-op.
func (l *Ledger) CancelOrder(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.pending[orderID]
	if !ok {
		return
	}
	order.Status = domain.OrderStatusCancelled
	delete(l.pending, orderID)

	l.logger.Info("order cancelled",
		slog.String("order_id", orderID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
	)
}

// PendingOrder returns a copy of the pending order with the given id, or nil.
func (l *Ledger) PendingOrder(orderID string) *domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.pending[orderID]
	if !ok {
		return nil
	}
	cp := *order
	return &cp
}

// Statistics returns the aggregate session statistics.
func (l *Ledger) Statistics() domain.LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A quiet day still resets the daily counter at the UTC boundary.
	l.rollDayLocked(time.Now().UTC())

	stats := domain.LedgerStats{
		TotalTrades:   l.totalTrades,
		WinningTrades: l.winningTrades,
		LosingTrades:  l.losingTrades,
		TotalPnL:      l.totalPnL,
		DailyPnL:      l.dailyPnL,
		PendingOrders: len(l.pending),
	}
	for _, positions := range l.open {
		stats.OpenPositions += len(positions)
	}
	if l.totalTrades > 0 {
		stats.WinRate = float64(l.winningTrades) / float64(l.totalTrades) * 100
	}
	if l.winningTrades > 0 {
		stats.AverageWin = l.winSum / float64(l.winningTrades)
	}
	if l.losingTrades > 0 {
		stats.AverageLoss = l.lossSum / float64(l.losingTrades)
	}
	if stats.AverageLoss != 0 {
		stats.ProfitFactor = abs(stats.AverageWin / stats.AverageLoss)
	}
	stats.SessionDuration = time.Since(l.sessionStart).Round(time.Second).String()
	return stats
}

// OpenPositionsSummary returns one entry per open position across all
// symbols.
func (l *Ledger) OpenPositionsSummary() []domain.PositionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	summaries := make([]domain.PositionSummary, 0)
	for _, positions := range l.open {
		for _, pos := range positions {
			summaries = append(summaries, domain.PositionSummary{
				Symbol:     pos.Symbol,
				Quantity:   pos.Quantity,
				EntryPrice: pos.EntryPrice,
				EntryTime:  pos.EntryTime,
				AgeSeconds: now.Sub(pos.EntryTime).Seconds(),
			})
		}
	}
	return summaries
}

// CleanupOldPositions drops closed positions whose exit time is older than
// maxAge and returns how many were pruned. This is a memory-retention
// policy, not a correctness requirement; counters are unaffected.
func (l *Ledger) CleanupOldPositions(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	kept := l.closed[:0]
	pruned := 0
	for _, pos := range l.closed {
		if pos.ExitTime != nil && pos.ExitTime.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, pos)
	}
	l.closed = kept

	if pruned > 0 {
		l.logger.Debug("pruned closed positions", slog.Int("count", pruned))
	}
	return pruned
}

// ClosedPositions returns copies of the archived closed positions, newest
// last.
func (l *Ledger) ClosedPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Position, len(l.closed))
	for i, pos := range l.closed {
		out[i] = *pos
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
