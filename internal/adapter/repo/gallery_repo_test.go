package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ghiblyze/internal/domain"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type sliceRows struct {
	items []domain.GalleryImage
	idx   int
}

func (r *sliceRows) Close()                                       {}
func (r *sliceRows) Err() error                                   { return nil }
func (r *sliceRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *sliceRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *sliceRows) RawValues() [][]byte                          { return nil }
func (r *sliceRows) Conn() *pgx.Conn                              { return nil }
func (r *sliceRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (r *sliceRows) Next() bool {
	if r.idx >= len(r.items) {
		return false
	}
	r.idx++
	return true
}

func (r *sliceRows) Scan(dest ...any) error {
	img := r.items[r.idx-1]
	*dest[0].(*string) = img.ID
	*dest[1].(*string) = img.URL
	*dest[2].(*string) = img.Title
	*dest[3].(*time.Time) = img.CreatedAt
	*dest[4].(*string) = img.OwnerID
	return nil
}

// stubGalleryDB emulates the gallery table for the marked statements.
type stubGalleryDB struct {
	mu    sync.Mutex
	rows  []domain.GalleryImage
	clock time.Time
	execs int
}

func newStubGalleryDB() *stubGalleryDB {
	return &stubGalleryDB{clock: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *stubGalleryDB) seed(ownerID, title string) domain.GalleryImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Second)
	img := domain.GalleryImage{
		ID:        uuid.NewString(),
		URL:       "https://cdn.example.com/" + title + ".png",
		Title:     title,
		CreatedAt: s.clock,
		OwnerID:   ownerID,
	}
	s.rows = append(s.rows, img)
	return img
}

func (s *stubGalleryDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if !strings.Contains(query, "delete from gallery") {
		return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %s", query)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs++
	id, owner := args[0].(string), args[1].(string)
	kept := s.rows[:0]
	deleted := 0
	for _, row := range s.rows {
		if row.ID == id && row.OwnerID == owner {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	s.rows = kept
	return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", deleted)), nil
}

func (s *stubGalleryDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if strings.Contains(query, "from gallery") && strings.Contains(query, "where id") {
		return s.lookup(args[0].(string), args[1].(string))
	}
	if !strings.Contains(query, "insert into gallery") {
		return stubRow{scan: func(dest ...any) error { return fmt.Errorf("unsupported query: %s", query) }}
	}
	img := s.seed(args[2].(string), args[1].(string))
	s.mu.Lock()
	s.rows[len(s.rows)-1].URL = args[0].(string)
	img.URL = args[0].(string)
	s.mu.Unlock()
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*string) = img.ID
		*dest[1].(*string) = img.URL
		*dest[2].(*string) = img.Title
		*dest[3].(*time.Time) = img.CreatedAt
		*dest[4].(*string) = img.OwnerID
		return nil
	}}
}

func (s *stubGalleryDB) lookup(id, owner string) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs++
	for _, row := range s.rows {
		if row.ID == id && row.OwnerID == owner {
			img := row
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*string) = img.ID
				*dest[1].(*string) = img.URL
				*dest[2].(*string) = img.Title
				*dest[3].(*time.Time) = img.CreatedAt
				*dest[4].(*string) = img.OwnerID
				return nil
			}}
		}
	}
	return stubRow{}
}

func (s *stubGalleryDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if !strings.Contains(query, "from gallery") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	owner := args[0].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GalleryImage
	for _, row := range s.rows {
		if row.OwnerID == owner {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return &sliceRows{items: out}, nil
}

func TestGalleryRepositorySaveDefaultsTitle(t *testing.T) {
	db := newStubGalleryDB()
	repo := NewGalleryRepository(db, nil)

	img, err := repo.Save(context.Background(), "https://cdn.example.com/a.png", "  ", "user_1")
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if img.Title != domain.DefaultGalleryTitle {
		t.Fatalf("title = %q, want default", img.Title)
	}
	if img.OwnerID != "user_1" || img.ID == "" || img.CreatedAt.IsZero() {
		t.Fatalf("unexpected row: %+v", img)
	}
}

func TestGalleryRepositoryRequiresOwner(t *testing.T) {
	repo := NewGalleryRepository(newStubGalleryDB(), nil)
	ctx := context.Background()

	if _, err := repo.Save(ctx, "https://cdn.example.com/a.png", "t", ""); !errors.Is(err, domain.ErrOwnerRequired) {
		t.Fatalf("Save without owner = %v", err)
	}
	if _, err := repo.List(ctx, " "); !errors.Is(err, domain.ErrOwnerRequired) {
		t.Fatalf("List without owner = %v", err)
	}
	if err := repo.Remove(ctx, uuid.NewString(), ""); !errors.Is(err, domain.ErrOwnerRequired) {
		t.Fatalf("Remove without owner = %v", err)
	}
}

func TestGalleryRepositoryListIsOwnerScopedAndNewestFirst(t *testing.T) {
	db := newStubGalleryDB()
	owners := []string{"user_a", "user_b", "user_c"}
	for i := 0; i < 30; i++ {
		db.seed(owners[(i*7)%len(owners)], fmt.Sprintf("img-%02d", i))
	}
	repo := NewGalleryRepository(db, nil)

	for _, owner := range owners {
		images, err := repo.List(context.Background(), owner)
		if err != nil {
			t.Fatalf("List(%s) error: %v", owner, err)
		}
		if len(images) == 0 {
			t.Fatalf("List(%s) returned nothing", owner)
		}
		for i, img := range images {
			if img.OwnerID != owner {
				t.Fatalf("List(%s) returned row owned by %s", owner, img.OwnerID)
			}
			if i > 0 && img.CreatedAt.After(images[i-1].CreatedAt) {
				t.Fatalf("List(%s) not newest first at %d", owner, i)
			}
		}
	}
}

func TestGalleryRepositoryRemove(t *testing.T) {
	tests := []struct {
		name      string
		id        func(own, foreign domain.GalleryImage) string
		wantErr   error
		wantRows  int
		wantExecs int
	}{
		{name: "own row", id: func(own, _ domain.GalleryImage) string { return own.ID }, wantRows: 1, wantExecs: 1},
		{name: "foreign row", id: func(_, foreign domain.GalleryImage) string { return foreign.ID }, wantErr: domain.ErrUnauthorized, wantRows: 2, wantExecs: 1},
		{name: "missing row", id: func(_, _ domain.GalleryImage) string { return uuid.NewString() }, wantErr: domain.ErrUnauthorized, wantRows: 2, wantExecs: 1},
		{name: "malformed id", id: func(_, _ domain.GalleryImage) string { return "42" }, wantErr: domain.ErrUnauthorized, wantRows: 2, wantExecs: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := newStubGalleryDB()
			own := db.seed("user_a", "mine")
			foreign := db.seed("user_b", "theirs")
			repo := NewGalleryRepository(db, nil)

			err := repo.Remove(context.Background(), tc.id(own, foreign), "user_a")
			if tc.wantErr == nil && err != nil {
				t.Fatalf("Remove error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("Remove error = %v, want %v", err, tc.wantErr)
			}
			if len(db.rows) != tc.wantRows {
				t.Fatalf("rows = %d, want %d", len(db.rows), tc.wantRows)
			}
			if db.execs != tc.wantExecs {
				t.Fatalf("exec calls = %d, want %d", db.execs, tc.wantExecs)
			}
		})
	}
}

func TestGalleryRepositoryGet(t *testing.T) {
	tests := []struct {
		name      string
		id        func(own, foreign domain.GalleryImage) string
		wantErr   error
		wantLooks int
	}{
		{name: "own row", id: func(own, _ domain.GalleryImage) string { return own.ID }, wantLooks: 1},
		{name: "foreign row", id: func(_, foreign domain.GalleryImage) string { return foreign.ID }, wantErr: domain.ErrUnauthorized, wantLooks: 1},
		{name: "missing row", id: func(_, _ domain.GalleryImage) string { return uuid.NewString() }, wantErr: domain.ErrUnauthorized, wantLooks: 1},
		{name: "malformed id", id: func(_, _ domain.GalleryImage) string { return "../etc" }, wantErr: domain.ErrUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := newStubGalleryDB()
			own := db.seed("user_a", "mine")
			foreign := db.seed("user_b", "theirs")
			repo := NewGalleryRepository(db, nil)

			img, err := repo.Get(context.Background(), tc.id(own, foreign), "user_a")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) || img != nil {
					t.Fatalf("Get = %+v, %v; want %v", img, err, tc.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("Get error: %v", err)
				}
				if img.ID != own.ID || img.URL != own.URL || img.OwnerID != "user_a" {
					t.Fatalf("unexpected row: %+v", img)
				}
			}
			if db.execs != tc.wantLooks {
				t.Fatalf("lookups = %d, want %d", db.execs, tc.wantLooks)
			}
		})
	}
}
