package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SupabaseOptions struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// SupabaseStore talks to the Supabase Storage REST API.
type SupabaseStore struct {
	httpClient *http.Client
	baseURL    string
	key        string
	bucket     string
}

func NewSupabaseStore(opts SupabaseOptions) (*SupabaseStore, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("supabase: base url is required")
	}
	bucket := strings.Trim(strings.TrimSpace(opts.Bucket), "/")
	if bucket == "" {
		return nil, errors.New("supabase: bucket is required")
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &SupabaseStore{
		httpClient: client,
		baseURL:    base,
		key:        strings.TrimSpace(opts.ServiceKey),
		bucket:     bucket,
	}, nil
}

type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// Upload stores data at path inside the bucket. Uploads never overwrite.
func (s *SupabaseStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if s.key == "" {
		return errors.New("supabase: service key is missing")
	}
	key, err := sanitizeKey(path)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapePath(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var out supabaseError
		if json.Unmarshal(body, &out) == nil && out.Message != "" {
			return fmt.Errorf("supabase: upload: %s (%d)", out.Message, resp.StatusCode)
		}
		return fmt.Errorf("supabase: upload: http %d", resp.StatusCode)
	}
	return nil
}

// PublicURL resolves the public object URL for path.
func (s *SupabaseStore) PublicURL(path string) string {
	key, err := sanitizeKey(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), escapePath(key))
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ ObjectStore = (*SupabaseStore)(nil)
