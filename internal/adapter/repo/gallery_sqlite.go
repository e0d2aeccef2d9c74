package repo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/infra"
)

type galleryRow struct {
	ID          string    `gorm:"primaryKey;type:text"`
	URL         string    `gorm:"not null"`
	Title       string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index:gallery_owner_created_idx,priority:2"`
	ClerkUserID string    `gorm:"column:clerk_user_id;not null;index:gallery_owner_created_idx,priority:1"`
}

func (galleryRow) TableName() string { return "gallery" }

func (r galleryRow) toDomain() domain.GalleryImage {
	return domain.GalleryImage{
		ID:        r.ID,
		URL:       r.URL,
		Title:     r.Title,
		CreatedAt: r.CreatedAt,
		OwnerID:   r.ClerkUserID,
	}
}

// OpenGallerySQLite opens a SQLite database at path and migrates the gallery table.
func OpenGallerySQLite(path string, l zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)

	gormLogger := logger.New(
		log.New(l, "", 0),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&galleryRow{}); err != nil {
		return nil, fmt.Errorf("migrate gallery: %w", err)
	}
	return db, nil
}

// GallerySQLite implements domain.GalleryRepository on gorm/SQLite for local
// runs without PostgreSQL.
type GallerySQLite struct {
	db      *gorm.DB
	metrics *infra.Metrics
	now     func() time.Time
}

// NewGallerySQLite wraps an opened gorm database.
func NewGallerySQLite(db *gorm.DB, metrics *infra.Metrics) *GallerySQLite {
	return &GallerySQLite{db: db, metrics: metrics, now: func() time.Time { return time.Now().UTC() }}
}

func (r *GallerySQLite) Save(ctx context.Context, url, title, ownerID string) (img *domain.GalleryImage, err error) {
	defer func() { r.metrics.ObserveGallery("save", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &domain.ValidationError{Field: "url", Message: "Image URL is required"}
	}
	row := galleryRow{
		ID:          uuid.NewString(),
		URL:         url,
		Title:       domain.GalleryTitle(title),
		CreatedAt:   r.now(),
		ClerkUserID: ownerID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("save gallery image: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

func (r *GallerySQLite) Get(ctx context.Context, id, ownerID string) (img *domain.GalleryImage, err error) {
	defer func() { r.metrics.ObserveGallery("get", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	var row galleryRow
	err = r.db.WithContext(ctx).
		Where("id = ? AND clerk_user_id = ?", strings.TrimSpace(id), ownerID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("get gallery image: %w", err)
	}
	out := row.toDomain()
	return &out, nil
}

func (r *GallerySQLite) List(ctx context.Context, ownerID string) (images []domain.GalleryImage, err error) {
	defer func() { r.metrics.ObserveGallery("list", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	var rows []galleryRow
	if err := r.db.WithContext(ctx).
		Where("clerk_user_id = ?", ownerID).
		Order("created_at desc").
		Order("id desc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list gallery: %w", err)
	}
	images = make([]domain.GalleryImage, 0, len(rows))
	for _, row := range rows {
		images = append(images, row.toDomain())
	}
	return images, nil
}

func (r *GallerySQLite) Remove(ctx context.Context, id, ownerID string) (err error) {
	defer func() { r.metrics.ObserveGallery("remove", err) }()

	if err := domain.RequireOwner(ownerID); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Where("id = ? AND clerk_user_id = ?", strings.TrimSpace(id), ownerID).
		Delete(&galleryRow{})
	if res.Error != nil {
		return fmt.Errorf("delete gallery image: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUnauthorized
	}
	return nil
}

var _ domain.GalleryRepository = (*GallerySQLite)(nil)
