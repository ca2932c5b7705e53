package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// EntryStorage implements the EntryStorage interface for Badger
type EntryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEntryStorage creates a new EntryStorage instance
func NewEntryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EntryStorage {
	return &EntryStorage{
		db:     db,
		logger: logger,
	}
}

// SaveEntry persists an entry under optimistic concurrency. The incoming
// version must match the stored one; the saved copy carries version+1.
// Entries without an ID are created at version 1.
func (s *EntryStorage) SaveEntry(entry *models.Entry) (*models.Entry, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is required")
	}

	now := time.Now()
	saved := *entry

	if saved.ID == "" {
		saved.ID = common.NewEntryID()
	}

	var stored models.Entry
	err := s.db.Store().Get(saved.ID, &stored)
	switch {
	case err == badgerhold.ErrNotFound:
		saved.Version = 1
		if saved.CreatedAt.IsZero() {
			saved.CreatedAt = now
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read entry %s: %w", saved.ID, err)
	default:
		if saved.Version != stored.Version {
			return nil, fmt.Errorf("entry %s at version %d, got %d: %w",
				saved.ID, stored.Version, saved.Version, interfaces.ErrVersionConflict)
		}
		saved.Version = stored.Version + 1
		saved.CreatedAt = stored.CreatedAt
	}
	saved.UpdatedAt = now

	if err := s.db.Store().Upsert(saved.ID, &saved); err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	s.logger.Debug().
		Str("entry_id", saved.ID).
		Int("version", saved.Version).
		Msg("Entry saved")

	return &saved, nil
}

// GetEntry retrieves an entry by ID
func (s *EntryStorage) GetEntry(id string) (*models.Entry, error) {
	var entry models.Entry
	if err := s.db.Store().Get(id, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("entry %s: %w", id, interfaces.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &entry, nil
}

// DeleteEntry removes an entry. Deleting a missing entry is not an error.
func (s *EntryStorage) DeleteEntry(id string) error {
	if err := s.db.Store().Delete(id, &models.Entry{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// ListEntries returns entries newest first (entry date, then creation time)
func (s *EntryStorage) ListEntries(opts *interfaces.ListOptions) ([]*models.Entry, error) {
	query := badgerhold.Where("ID").Ne("") // Select all

	if opts != nil {
		if opts.PublishedOnly {
			query = query.And("IncludeInPublish").Eq(true)
		}
	}

	query = query.SortBy("EntryDate", "CreatedAt").Reverse()

	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var entries []models.Entry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	result := make([]*models.Entry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// GetPublishableEntries returns all entries flagged for publishing
func (s *EntryStorage) GetPublishableEntries() ([]*models.Entry, error) {
	var entries []models.Entry
	query := badgerhold.Where("IncludeInPublish").Eq(true).SortBy("EntryDate").Reverse()
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to get publishable entries: %w", err)
	}

	result := make([]*models.Entry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// CountEntries returns the total number of entries
func (s *EntryStorage) CountEntries() (int, error) {
	count, err := s.db.Store().Count(&models.Entry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(count), nil
}

// GetStats returns entry statistics
func (s *EntryStorage) GetStats() (*models.EntryStats, error) {
	total, err := s.CountEntries()
	if err != nil {
		return nil, err
	}

	published, err := s.db.Store().Count(&models.Entry{}, badgerhold.Where("IncludeInPublish").Eq(true))
	if err != nil {
		return nil, fmt.Errorf("failed to count published entries: %w", err)
	}

	stats := &models.EntryStats{
		TotalEntries:     total,
		PublishedEntries: int(published),
	}

	var latest []models.Entry
	query := badgerhold.Where("ID").Ne("").SortBy("UpdatedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&latest, query); err == nil && len(latest) > 0 {
		stats.LastUpdated = latest[0].UpdatedAt
	}

	return stats, nil
}

// ClearAll removes all entries
func (s *EntryStorage) ClearAll() error {
	return s.db.Store().DeleteMatching(&models.Entry{}, nil)
}
