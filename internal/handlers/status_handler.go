package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/services/status"
)

// StatusHandler serves the aggregate editor status document
type StatusHandler struct {
	status *status.Service
	logger arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(statusService *status.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		status: statusService,
		logger: logger,
	}
}

// GetStatusHandler handles GET /api/status: entry counts, open sessions,
// and the live idle/editing/saving state. Polled by dashboards, so the
// response is marked uncacheable.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, h.status.GetStatus())
}
