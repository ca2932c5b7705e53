package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// PublishHandler exposes manual publish runs alongside the cron schedule
type PublishHandler struct {
	publish interfaces.PublishService
	logger  arbor.ILogger
}

// NewPublishHandler creates a new publish handler
func NewPublishHandler(publish interfaces.PublishService, logger arbor.ILogger) *PublishHandler {
	return &PublishHandler{
		publish: publish,
		logger:  logger,
	}
}

// RunHandler triggers one export pass immediately
func (h *PublishHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.publish.PublishNow(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual publish run failed")
		WriteError(w, http.StatusInternalServerError, "Publish failed")
		return
	}

	h.logger.Info().
		Int("exported", result.Exported).
		Int("skipped", result.Skipped).
		Msg("Manual publish run complete")

	WriteJSON(w, http.StatusOK, result)
}
