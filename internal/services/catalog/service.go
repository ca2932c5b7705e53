// -----------------------------------------------------------------------
// Catalog - image cards resolved for the editor and picker
// -----------------------------------------------------------------------

package catalog

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// Service provides catalog lookups over image storage. The editor and
// picker resolve UUIDs through this service and never touch storage.
type Service struct {
	storage interfaces.ImageStorage
	baseURL string
	logger  arbor.ILogger
}

// NewService creates a new catalog service. baseURL anchors the image and
// inspect links handed to picker cards.
func NewService(storage interfaces.ImageStorage, baseURL string, logger arbor.ILogger) interfaces.CatalogService {
	return &Service{
		storage: storage,
		baseURL: baseURL,
		logger:  logger,
	}
}

// GetImage returns the catalog card for a UUID
func (s *Service) GetImage(uuid string) (*models.ImageCard, error) {
	card, err := s.storage.GetImage(uuid)
	if err != nil {
		return nil, err
	}
	return card, nil
}

// ListImages returns all catalog cards for the picker grid
func (s *Service) ListImages() ([]*models.ImageCard, error) {
	cards, err := s.storage.ListImages()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list catalog images")
		return nil, err
	}
	return cards, nil
}

// AddImage registers an uploaded image. Cards without a UUID get one
// minted; cards without a URL get the canonical image link.
func (s *Service) AddImage(card *models.ImageCard) error {
	if card == nil {
		return fmt.Errorf("image card is required")
	}
	if card.UUID == "" {
		card.UUID = common.NewImageUUID()
	}
	if card.URL == "" {
		card.URL = common.BuildImageURL(s.baseURL, card.UUID)
	}

	if err := s.storage.SaveImage(card); err != nil {
		return fmt.Errorf("failed to add image %s: %w", card.UUID, err)
	}

	s.logger.Debug().Str("uuid", card.UUID).Msg("Image added to catalog")
	return nil
}

// RemoveImage deletes a card from the catalog
func (s *Service) RemoveImage(uuid string) error {
	if err := s.storage.DeleteImage(uuid); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", uuid, err)
	}
	s.logger.Debug().Str("uuid", uuid).Msg("Image removed from catalog")
	return nil
}

// InspectURL builds the image inspection link used by picker cards
func (s *Service) InspectURL(uuid string) string {
	return common.BuildImageInspectURL(s.baseURL, uuid)
}
