package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ghiblyze/internal/domain"
)

// PreviewSize is how many images are shown before "view all".
const PreviewSize = 4

// Source is the part of the gallery repository a View reads and deletes through.
type Source interface {
	List(ctx context.Context, ownerID string) ([]domain.GalleryImage, error)
	Remove(ctx context.Context, id, ownerID string) error
}

// View keeps one owner's gallery in memory. Reloads are versioned: a reload
// only replaces the list if nothing newer was applied since it started.
type View struct {
	source   Source
	notifier *Notifier
	ownerID  string
	logger   zerolog.Logger

	mu      sync.Mutex
	images  []domain.GalleryImage
	issued  uint64
	applied uint64
}

func NewView(source Source, notifier *Notifier, ownerID string, logger zerolog.Logger) (*View, error) {
	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &View{
		source:   source,
		notifier: notifier,
		ownerID:  ownerID,
		logger:   logger.With().Str("owner", ownerID).Logger(),
	}, nil
}

// Load fetches the owner's gallery. On failure the previous list is kept.
func (v *View) Load(ctx context.Context) ([]domain.GalleryImage, error) {
	v.mu.Lock()
	v.issued++
	version := v.issued
	v.mu.Unlock()

	images, err := v.source.List(ctx, v.ownerID)
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if version > v.applied {
		v.applied = version
		v.images = images
	} else {
		v.logger.Debug().Uint64("version", version).Uint64("applied", v.applied).Msg("gallery: stale reload discarded")
	}
	return v.copyLocked(), nil
}

// Watch loads once and then reloads on every change published for the owner
// until ctx is done. onUpdate, if set, receives the list after each reload.
func (v *View) Watch(ctx context.Context, onUpdate func([]domain.GalleryImage)) error {
	changes, cancel := v.notifier.Subscribe(v.ownerID)
	defer cancel()

	reload := func() {
		images, err := v.Load(ctx)
		if err != nil {
			if ctx.Err() == nil {
				v.logger.Warn().Err(err).Msg("gallery: reload failed")
			}
			return
		}
		if onUpdate != nil {
			onUpdate(images)
		}
	}

	reload()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			reload()
		}
	}
}

// Delete removes id for the owner and drops it from the local list. Reloads
// that started before the delete are treated as stale.
func (v *View) Delete(ctx context.Context, id string) error {
	if err := v.source.Remove(ctx, id, v.ownerID); err != nil {
		return err
	}

	v.mu.Lock()
	v.issued++
	v.applied = v.issued
	kept := v.images[:0:0]
	for _, img := range v.images {
		if img.ID != id {
			kept = append(kept, img)
		}
	}
	v.images = kept
	v.mu.Unlock()

	v.notifier.Publish(v.ownerID)
	return nil
}

// Preview returns at most PreviewSize of the newest images.
func (v *View) Preview() []domain.GalleryImage {
	v.mu.Lock()
	defer v.mu.Unlock()
	images := v.copyLocked()
	if len(images) > PreviewSize {
		images = images[:PreviewSize]
	}
	return images
}

func (v *View) All() []domain.GalleryImage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.copyLocked()
}

func (v *View) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.images) > PreviewSize
}

func (v *View) copyLocked() []domain.GalleryImage {
	out := make([]domain.GalleryImage, len(v.images))
	copy(out, v.images)
	return out
}
