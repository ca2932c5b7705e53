// -----------------------------------------------------------------------
// Last Modified: Friday, 14th November 2025 3:22:18 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type EntryHandler struct {
	entries  interfaces.EntryStorage
	saver    interfaces.EntrySaver
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewEntryHandler(entries interfaces.EntryStorage, saver interfaces.EntrySaver, logger arbor.ILogger) *EntryHandler {
	return &EntryHandler{
		entries:  entries,
		saver:    saver,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateEntryRequest is the POST /api/entries payload
type CreateEntryRequest struct {
	Title            string `json:"title"`
	EntryDate        string `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Timezone         string `json:"timezone" validate:"omitempty,timezone"`
	HTML             string `json:"html"`
	IncludeInPublish bool   `json:"include_in_publish"`
}

// ListHandler returns entries, newest first
func (h *EntryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	opts := &interfaces.ListOptions{
		Limit:         limit,
		Offset:        offset,
		PublishedOnly: query.Get("published") == "true",
	}

	entries, err := h.entries.ListEntries(opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list entries")
		WriteError(w, http.StatusInternalServerError, "Failed to list entries")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetHandler returns one entry by ID
func (h *EntryHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathID(r.URL.Path, "/api/entries/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Entry ID required")
		return
	}

	entry, err := h.entries.GetEntry(id)
	if err != nil {
		if errors.Is(err, interfaces.ErrEntryNotFound) {
			WriteError(w, http.StatusNotFound, "Entry not found")
			return
		}
		h.logger.Error().Err(err).Str("entry_id", id).Msg("Failed to get entry")
		WriteError(w, http.StatusInternalServerError, "Failed to get entry")
		return
	}

	WriteJSON(w, http.StatusOK, entry)
}

// CreateHandler creates a new entry, defaulting the date to today
func (h *EntryHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req CreateEntryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid entry: %v", err))
		return
	}

	if req.EntryDate == "" {
		req.EntryDate = time.Now().Format("2006-01-02")
	}

	entry := &models.Entry{
		Title:            req.Title,
		EntryDate:        req.EntryDate,
		Timezone:         req.Timezone,
		HTML:             req.HTML,
		IncludeInPublish: req.IncludeInPublish,
	}

	saved, err := h.entries.SaveEntry(entry)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create entry")
		WriteError(w, http.StatusInternalServerError, "Failed to create entry")
		return
	}

	h.logger.Info().Str("entry_id", saved.ID).Str("date", saved.EntryDate).Msg("Entry created")
	WriteJSON(w, http.StatusCreated, saved)
}

// DeleteHandler removes an entry
func (h *EntryHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}

	id := PathID(r.URL.Path, "/api/entries/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Entry ID required")
		return
	}

	if err := h.entries.DeleteEntry(id); err != nil {
		h.logger.Error().Err(err).Str("entry_id", id).Msg("Failed to delete entry")
		WriteError(w, http.StatusInternalServerError, "Failed to delete entry")
		return
	}

	WriteSuccess(w, "Entry deleted")
}

// StatsHandler returns entry statistics
func (h *EntryHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.entries.GetStats()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get entry stats")
		WriteError(w, http.StatusInternalServerError, "Failed to get statistics")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// SaveHandler is the autosave endpoint: optimistic-version saves returning
// the new version, 409 when the client's version is stale
func (h *EntryHandler) SaveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.SaveRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid save request: %v", err))
		return
	}

	result, err := h.saver.Save(r.Context(), &req)
	if err != nil {
		if interfaces.ClassifySaveError(err) == interfaces.SaveFailureConflict {
			h.logger.Debug().Str("entry_id", req.EntryID).Int("version", req.Version).Msg("Save rejected on stale version")
			WriteError(w, http.StatusConflict, "Entry version conflict")
			return
		}
		h.logger.Error().Err(err).Str("entry_id", req.EntryID).Msg("Save failed")
		WriteError(w, http.StatusInternalServerError, "Save failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
