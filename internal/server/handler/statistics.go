package handler

import (
	"net/http"

	"github.com/quantdash/scalpbot/internal/domain"
)

// StatsSource exposes the session statistics snapshot.
type StatsSource interface {
	Statistics() domain.LedgerStats
}

// StatisticsHandler serves the session trading statistics.
type StatisticsHandler struct {
	stats StatsSource
}

// NewStatisticsHandler creates a StatisticsHandler with the given source.
func NewStatisticsHandler(stats StatsSource) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// GetStatistics responds with the aggregate session statistics.
// GET /api/statistics
func (h *StatisticsHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Statistics())
}
