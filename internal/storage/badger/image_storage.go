package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ImageStorage implements the ImageStorage interface for Badger
type ImageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewImageStorage creates a new ImageStorage instance
func NewImageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ImageStorage {
	return &ImageStorage{
		db:     db,
		logger: logger,
	}
}

// SaveImage inserts or updates a catalog card keyed by its UUID
func (s *ImageStorage) SaveImage(card *models.ImageCard) error {
	if card == nil || card.UUID == "" {
		return fmt.Errorf("image UUID is required")
	}

	now := time.Now()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	if err := s.db.Store().Upsert(card.UUID, card); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// GetImage retrieves a catalog card by UUID
func (s *ImageStorage) GetImage(uuid string) (*models.ImageCard, error) {
	var card models.ImageCard
	if err := s.db.Store().Get(uuid, &card); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("image %s: %w", uuid, interfaces.ErrImageNotFound)
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &card, nil
}

// DeleteImage removes a catalog card. Deleting a missing card is not an error.
func (s *ImageStorage) DeleteImage(uuid string) error {
	if err := s.db.Store().Delete(uuid, &models.ImageCard{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// ListImages returns all catalog cards newest first
func (s *ImageStorage) ListImages() ([]*models.ImageCard, error) {
	var cards []models.ImageCard
	query := badgerhold.Where("UUID").Ne("").SortBy("CreatedAt", "UUID").Reverse()
	if err := s.db.Store().Find(&cards, query); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	result := make([]*models.ImageCard, len(cards))
	for i := range cards {
		result[i] = &cards[i]
	}
	return result, nil
}

// CountImages returns the total number of catalog cards
func (s *ImageStorage) CountImages() (int, error) {
	count, err := s.db.Store().Count(&models.ImageCard{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return int(count), nil
}

// ClearAll removes all catalog cards
func (s *ImageStorage) ClearAll() error {
	return s.db.Store().DeleteMatching(&models.ImageCard{}, nil)
}
