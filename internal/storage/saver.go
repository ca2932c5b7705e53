package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// LocalSaver persists autosave snapshots straight into entry storage. The
// storage layer's optimistic versioning supplies the conflict signal the
// autosave coordinator routes to conflict handling.
type LocalSaver struct {
	entries interfaces.EntryStorage
	logger  arbor.ILogger
}

// NewLocalSaver creates an EntrySaver backed by local entry storage
func NewLocalSaver(entries interfaces.EntryStorage, logger arbor.ILogger) interfaces.EntrySaver {
	return &LocalSaver{
		entries: entries,
		logger:  logger,
	}
}

// Save applies the snapshot to the stored entry at the version the client
// holds. Entries deleted out from under a session are recreated.
func (s *LocalSaver) Save(ctx context.Context, req *models.SaveRequest) (*models.SaveResult, error) {
	if req == nil || req.EntryID == "" {
		return nil, &interfaces.SaveError{
			Kind: interfaces.SaveFailurePermanent,
			Err:  fmt.Errorf("entry ID is required"),
		}
	}

	entry := &models.Entry{
		ID:                 req.EntryID,
		HTML:               req.Text,
		Title:              req.NewTitle,
		EntryDate:          req.NewDate,
		Timezone:           req.NewTimezone,
		ReferenceImageUUID: req.ReferenceImageUUID,
		IncludeInPublish:   req.IncludeInPublish,
		Version:            req.Version,
	}

	saved, err := s.entries.SaveEntry(entry)
	if err != nil {
		if errors.Is(err, interfaces.ErrVersionConflict) {
			return nil, &interfaces.SaveError{
				Kind: interfaces.SaveFailureConflict,
				Err:  err,
			}
		}
		return nil, fmt.Errorf("failed to save entry %s: %w", req.EntryID, err)
	}

	return &models.SaveResult{
		EntryID: saved.ID,
		Version: saved.Version,
		SavedAt: saved.UpdatedAt,
	}, nil
}
