package handler

import (
	"net/http"
	"time"

	"github.com/quantdash/scalpbot/internal/domain"
)

// ControllerSource exposes a point-in-time snapshot of one symbol's
// controller.
type ControllerSource interface {
	Status() domain.ControllerStatus
}

// StatusHandler serves the aggregate bot status for the dashboard.
type StatusHandler struct {
	mode        string
	startedAt   time.Time
	controllers []ControllerSource
}

// NewStatusHandler creates a StatusHandler over the given controllers.
func NewStatusHandler(mode string, startedAt time.Time, controllers []ControllerSource) *StatusHandler {
	return &StatusHandler{
		mode:        mode,
		startedAt:   startedAt,
		controllers: controllers,
	}
}

// statusResponse wraps the status response.
type statusResponse struct {
	Mode          string                    `json:"mode"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	Controllers   []domain.ControllerStatus `json:"controllers"`
}

// GetStatus responds with the run mode, uptime, and one snapshot per managed
// symbol.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	statuses := make([]domain.ControllerStatus, 0, len(h.controllers))
	for _, c := range h.controllers {
		statuses = append(statuses, c.Status())
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Mode:          h.mode,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Controllers:   statuses,
	})
}
