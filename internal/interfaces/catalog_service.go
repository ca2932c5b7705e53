package interfaces

import (
	"github.com/ternarybob/scribo/internal/models"
)

// CatalogService resolves image UUIDs for the editor and picker. Backed by
// ImageStorage; the editor never touches storage directly.
type CatalogService interface {
	// GetImage returns the catalog card for a UUID, ErrImageNotFound if absent
	GetImage(uuid string) (*models.ImageCard, error)

	// ListImages returns all catalog cards for the picker grid
	ListImages() ([]*models.ImageCard, error)

	// AddImage registers an uploaded image in the catalog
	AddImage(card *models.ImageCard) error

	// RemoveImage deletes a card from the catalog
	RemoveImage(uuid string) error

	// InspectURL builds the image inspection link used by picker cards
	InspectURL(uuid string) string
}
