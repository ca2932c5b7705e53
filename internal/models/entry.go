package models

import (
	"time"
)

// Entry represents a single journal entry.
// PRIMARY CONTENT FORMAT: canonical HTML (HTML field), the normalized
// block structure the editor engine maintains.
type Entry struct {
	// Identity
	ID string `json:"id"` // entry_{uuid}

	// Content (canonical HTML)
	HTML  string `json:"html"`
	Title string `json:"title"`

	// Entry metadata edited alongside the body
	EntryDate          string `json:"entry_date"`           // YYYY-MM-DD in the entry's timezone
	Timezone           string `json:"timezone"`             // IANA name, e.g. Australia/Sydney
	ReferenceImageUUID string `json:"reference_image_uuid"` // header image, empty when unset
	IncludeInPublish   bool   `json:"include_in_publish"`

	// Concurrency control: incremented on every successful save; a save
	// carrying a stale version is rejected as a conflict.
	Version int `json:"version"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveRequest is the persistence payload the autosave coordinator submits.
type SaveRequest struct {
	EntryID            string `json:"entry_id" validate:"required"`
	Text               string `json:"text"` // canonical HTML body
	Version            int    `json:"version" validate:"gte=0"`
	NewTitle           string `json:"new_title"`
	NewDate            string `json:"new_date" validate:"omitempty,datetime=2006-01-02"`
	NewTimezone        string `json:"new_timezone"`
	ReferenceImageUUID string `json:"reference_image_uuid"`
	IncludeInPublish   bool   `json:"include_in_publish"`
}

// SaveResult reports the outcome of a successful save.
type SaveResult struct {
	EntryID string    `json:"entry_id"`
	Version int       `json:"version"` // version after the save
	SavedAt time.Time `json:"saved_at"`
}

// EntryStats represents statistics about stored entries.
type EntryStats struct {
	TotalEntries     int       `json:"total_entries"`
	PublishedEntries int       `json:"published_entries"`
	LastUpdated      time.Time `json:"last_updated"`
}
