package models

import (
	"time"
)

// ImageCard is a catalog record for an uploaded image. The document references
// images by UUID only; URL and caption are resolved through the catalog.
type ImageCard struct {
	UUID    string `json:"uuid"`
	URL     string `json:"url"`
	Caption string `json:"caption"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageData is the resolved view the editor consumes when materializing a
// wrapper element: caption is never empty (placeholder substituted).
type ImageData struct {
	UUID    string `json:"uuid"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}
