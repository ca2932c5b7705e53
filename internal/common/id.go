package common

import (
	"github.com/google/uuid"
)

// NewEntryID generates a unique entry ID with the "entry_" prefix
// Format: entry_<uuid>
func NewEntryID() string {
	return "entry_" + uuid.New().String()
}

// NewImageUUID generates a bare UUID for image wrappers and catalog cards.
// The document references images by this value alone.
func NewImageUUID() string {
	return uuid.New().String()
}
