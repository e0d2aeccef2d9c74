package domain

import (
	"strings"
	"time"
)

// DefaultGalleryTitle is stored when a saved image has no title.
const DefaultGalleryTitle = "Generated Ghibli Image"

// GalleryImage is one saved generation belonging to a single owner. Rows are
// never updated in place.
type GalleryImage struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	OwnerID   string    `json:"clerk_user_id"`
}

// GalleryTitle trims title and falls back to DefaultGalleryTitle.
func GalleryTitle(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return DefaultGalleryTitle
}

// RequireOwner rejects a blank owner identifier.
func RequireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return ErrOwnerRequired
	}
	return nil
}
