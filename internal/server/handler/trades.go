package handler

import (
	"net/http"

	"github.com/quantdash/scalpbot/internal/domain"
)

// TradeSource exposes the archive of closed positions.
type TradeSource interface {
	ClosedPositions() []domain.Position
}

// TradeHandler serves the closed-trade history.
type TradeHandler struct {
	trades TradeSource
}

// NewTradeHandler creates a TradeHandler with the given source.
func NewTradeHandler(trades TradeSource) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// listTradesResponse wraps the list trades response.
type listTradesResponse struct {
	Trades []domain.Position `json:"trades"`
	Total  int               `json:"total"`
}

// ListTrades returns the most recent closed trades, newest first.
// GET /api/trades?limit=50
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)

	closed := h.trades.ClosedPositions()
	total := len(closed)

	// Newest first.
	out := make([]domain.Position, 0, limit)
	for i := len(closed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, closed[i])
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: out, Total: total})
}
