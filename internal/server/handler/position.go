package handler

import (
	"log/slog"
	"net/http"

	"github.com/quantdash/scalpbot/internal/domain"
)

// PositionBook defines the methods that the position handler requires.
type PositionBook interface {
	OpenPositionsSummary() []domain.PositionSummary
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	book   PositionBook
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given book and logger.
func NewPositionHandler(book PositionBook, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		book:   book,
		logger: logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.PositionSummary `json:"positions"`
}

// ListPositions returns a summary of all open positions.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.book.OpenPositionsSummary()
	if positions == nil {
		positions = []domain.PositionSummary{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}
