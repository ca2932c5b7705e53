// -----------------------------------------------------------------------
// Last Modified: Wednesday, 8th October 2025 12:10:32 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"errors"

	"github.com/ternarybob/scribo/internal/models"
)

// ErrEntryNotFound is returned when an entry does not exist in storage
var ErrEntryNotFound = errors.New("entry not found")

// ErrImageNotFound is returned when an image card does not exist in the catalog
var ErrImageNotFound = errors.New("image not found")

// ErrVersionConflict is returned when a save carries a stale entry version;
// the caller must reconcile, never retry blindly
var ErrVersionConflict = errors.New("entry version conflict")

// ListOptions controls entry listing
type ListOptions struct {
	Limit         int
	Offset        int
	PublishedOnly bool
}

// EntryStorage - interface for journal entry persistence
type EntryStorage interface {
	// CRUD operations
	SaveEntry(entry *models.Entry) (*models.Entry, error) // rejects stale versions with ErrVersionConflict
	GetEntry(id string) (*models.Entry, error)
	DeleteEntry(id string) error

	// List operations
	ListEntries(opts *ListOptions) ([]*models.Entry, error)
	GetPublishableEntries() ([]*models.Entry, error)

	// Stats operations
	CountEntries() (int, error)
	GetStats() (*models.EntryStats, error)

	// Bulk operations
	ClearAll() error
}

// ImageStorage - interface for image catalog persistence
type ImageStorage interface {
	// CRUD operations
	SaveImage(card *models.ImageCard) error
	GetImage(uuid string) (*models.ImageCard, error)
	DeleteImage(uuid string) error

	// List operations
	ListImages() ([]*models.ImageCard, error)

	// Stats operations
	CountImages() (int, error)

	// Bulk operations
	ClearAll() error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	EntryStorage() EntryStorage
	ImageStorage() ImageStorage
	DB() interface{}
	Close() error
}
