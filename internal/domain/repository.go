package domain

import "context"

// GalleryRepository persists gallery rows scoped by owner.
type GalleryRepository interface {
	// Save inserts a new row and returns it with server-assigned fields.
	Save(ctx context.Context, url, title, ownerID string) (*GalleryImage, error)
	// Get returns one of the owner's rows. A missing or foreign row yields
	// ErrUnauthorized.
	Get(ctx context.Context, id, ownerID string) (*GalleryImage, error)
	// List returns the owner's rows, newest first.
	List(ctx context.Context, ownerID string) ([]GalleryImage, error)
	// Remove deletes the row only when it belongs to ownerID. A missing or
	// foreign row yields ErrUnauthorized and nothing is deleted.
	Remove(ctx context.Context, id, ownerID string) error
}
