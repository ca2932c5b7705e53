// -----------------------------------------------------------------------
// Last Modified: Friday, 14th November 2025 3:40:52 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// ImageHandler handles HTTP requests for the image catalog
type ImageHandler struct {
	catalog  interfaces.CatalogService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(catalog interfaces.CatalogService, logger arbor.ILogger) *ImageHandler {
	return &ImageHandler{
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger,
	}
}

// AddImageRequest is the body for POST /api/images. The UUID is minted by
// the catalog when omitted.
type AddImageRequest struct {
	UUID    string `json:"uuid"`
	URL     string `json:"url" validate:"required"`
	Caption string `json:"caption"`
}

// ListHandler handles GET /api/images
func (h *ImageHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	cards, err := h.catalog.ListImages()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list images")
		WriteError(w, http.StatusInternalServerError, "Failed to list images")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"images": cards,
		"count":  len(cards),
	})
}

// GetHandler handles GET /api/images/{uuid}
func (h *ImageHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	uuid := PathID(r.URL.Path, "/api/images/")
	if uuid == "" {
		WriteError(w, http.StatusBadRequest, "Image UUID is required")
		return
	}

	card, err := h.catalog.GetImage(uuid)
	if err != nil {
		if errors.Is(err, interfaces.ErrImageNotFound) {
			WriteError(w, http.StatusNotFound, "Image not found")
			return
		}
		h.logger.Error().Err(err).Str("uuid", uuid).Msg("Failed to get image")
		WriteError(w, http.StatusInternalServerError, "Failed to get image")
		return
	}

	WriteJSON(w, http.StatusOK, card)
}

// AddHandler handles POST /api/images
func (h *ImageHandler) AddHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req AddImageRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
		return
	}

	card := &models.ImageCard{
		UUID:    strings.TrimSpace(req.UUID),
		URL:     strings.TrimSpace(req.URL),
		Caption: strings.TrimSpace(req.Caption),
	}
	if err := h.catalog.AddImage(card); err != nil {
		h.logger.Error().Err(err).Msg("Failed to add image")
		WriteError(w, http.StatusInternalServerError, "Failed to add image")
		return
	}

	h.logger.Info().Str("uuid", card.UUID).Msg("Image added")
	WriteJSON(w, http.StatusCreated, card)
}

// DeleteHandler handles DELETE /api/images/{uuid}
func (h *ImageHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	uuid := PathID(r.URL.Path, "/api/images/")
	if uuid == "" {
		WriteError(w, http.StatusBadRequest, "Image UUID is required")
		return
	}

	if err := h.catalog.RemoveImage(uuid); err != nil {
		if errors.Is(err, interfaces.ErrImageNotFound) {
			WriteError(w, http.StatusNotFound, "Image not found")
			return
		}
		h.logger.Error().Err(err).Str("uuid", uuid).Msg("Failed to delete image")
		WriteError(w, http.StatusInternalServerError, "Failed to delete image")
		return
	}

	h.logger.Info().Str("uuid", uuid).Msg("Image deleted")
	WriteSuccess(w, "Image deleted")
}

// InspectHandler handles GET /api/images/{uuid}/inspect, redirecting to the
// image source so picker cards can link a detail view
func (h *ImageHandler) InspectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	uuid := PathID(r.URL.Path, "/api/images/")
	if uuid == "" {
		WriteError(w, http.StatusBadRequest, "Image UUID is required")
		return
	}

	card, err := h.catalog.GetImage(uuid)
	if err != nil {
		if errors.Is(err, interfaces.ErrImageNotFound) {
			WriteError(w, http.StatusNotFound, "Image not found")
			return
		}
		h.logger.Error().Err(err).Str("uuid", uuid).Msg("Failed to inspect image")
		WriteError(w, http.StatusInternalServerError, "Failed to inspect image")
		return
	}

	http.Redirect(w, r, card.URL, http.StatusFound)
}
