package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/infra"
	"ghiblyze/internal/sqlinline"
)

// GalleryRepositoryPG implements domain.GalleryRepository on PostgreSQL.
type GalleryRepositoryPG struct {
	sql     infra.SQLExecutor
	metrics *infra.Metrics
}

// NewGalleryRepository constructs a gallery repository over a marked SQL executor.
func NewGalleryRepository(sql infra.SQLExecutor, metrics *infra.Metrics) *GalleryRepositoryPG {
	return &GalleryRepositoryPG{sql: sql, metrics: metrics}
}

// Save inserts a new gallery row for ownerID.
func (r *GalleryRepositoryPG) Save(ctx context.Context, url, title, ownerID string) (img *domain.GalleryImage, err error) {
	defer func() { r.metrics.ObserveGallery("save", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &domain.ValidationError{Field: "url", Message: "Image URL is required"}
	}

	var out domain.GalleryImage
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGalleryImage, url, domain.GalleryTitle(title), ownerID)
	if err := row.Scan(&out.ID, &out.URL, &out.Title, &out.CreatedAt, &out.OwnerID); err != nil {
		return nil, fmt.Errorf("save gallery image: %w", err)
	}
	return &out, nil
}

// Get returns id when it belongs to ownerID. A malformed, missing or foreign
// id yields domain.ErrUnauthorized.
func (r *GalleryRepositoryPG) Get(ctx context.Context, id, ownerID string) (img *domain.GalleryImage, err error) {
	defer func() { r.metrics.ObserveGallery("get", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	var out domain.GalleryImage
	row := r.sql.QueryRow(ctx, sqlinline.QGetGalleryImageForOwner, parsed.String(), ownerID)
	if err := row.Scan(&out.ID, &out.URL, &out.Title, &out.CreatedAt, &out.OwnerID); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("get gallery image: %w", err)
	}
	return &out, nil
}

// List returns the owner's images, newest first.
func (r *GalleryRepositoryPG) List(ctx context.Context, ownerID string) (images []domain.GalleryImage, err error) {
	defer func() { r.metrics.ObserveGallery("list", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListGalleryByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	defer rows.Close()

	images = []domain.GalleryImage{}
	for rows.Next() {
		var img domain.GalleryImage
		if err := rows.Scan(&img.ID, &img.URL, &img.Title, &img.CreatedAt, &img.OwnerID); err != nil {
			return nil, fmt.Errorf("scan gallery row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	return images, nil
}

// Remove deletes id when it belongs to ownerID. A malformed, missing or
// foreign id yields domain.ErrUnauthorized.
func (r *GalleryRepositoryPG) Remove(ctx context.Context, id, ownerID string) (err error) {
	defer func() { r.metrics.ObserveGallery("remove", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return err
	}
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrUnauthorized
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteGalleryImageForOwner, parsed.String(), ownerID)
	if err != nil {
		return fmt.Errorf("delete gallery image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnauthorized
	}
	return nil
}

var _ domain.GalleryRepository = (*GalleryRepositoryPG)(nil)
