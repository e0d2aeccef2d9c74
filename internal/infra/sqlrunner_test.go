package infra

import (
	"context"
	"errors"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "--sql 0b9d3a52-5a0e-4b8c-9a55-3f3c8a1b2c4d\nselect 1;",
			wantMarker: "0b9d3a52-5a0e-4b8c-9a55-3f3c8a1b2c4d",
			wantBody:   "select 1;",
		},
		{
			name:       "leading whitespace",
			query:      "\n  --sql 0b9d3a52-5a0e-4b8c-9a55-3f3c8a1b2c4d\nselect 1\nfrom gallery;\n",
			wantMarker: "0b9d3a52-5a0e-4b8c-9a55-3f3c8a1b2c4d",
			wantBody:   "select 1\nfrom gallery;",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "malformed uuid", query: "--sql not-a-uuid\nselect 1;", wantErr: true},
		{name: "empty", query: "  ", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tc.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tc.wantMarker)
			}
			if body != tc.wantBody {
				t.Fatalf("body = %q, want %q", body, tc.wantBody)
			}
		})
	}
}

func TestErrorRowReturnsMarkerError(t *testing.T) {
	runner := &SQLRunner{}
	var n int
	err := runner.QueryRow(context.Background(), "select 1", 1).Scan(&n)
	if !errors.Is(err, ErrMissingMarker) {
		t.Fatalf("Scan error = %v, want ErrMissingMarker", err)
	}
}
