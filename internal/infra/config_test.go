package infra

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("HUGGINGFACE_API_KEY", "hf_test")
	t.Setenv("STORAGE_DRIVER", "filesystem")
	t.Setenv("GALLERY_DRIVER", "")
	t.Setenv("CLERK_ISSUER", "")
	t.Setenv("NOTIFIER_DRIVER", "")
	t.Setenv("REDIS_URL", "")
}

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if cfg.StorageBucket != "ghiblyze-images" {
		t.Fatalf("StorageBucket mismatch: got %q", cfg.StorageBucket)
	}
	if cfg.GalleryDriver != GalleryDriverPostgres {
		t.Fatalf("GalleryDriver mismatch: got %q", cfg.GalleryDriver)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigRequirements(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		valid bool
	}{
		{name: "defaults", env: map[string]string{}, valid: true},
		{name: "missing inference key", env: map[string]string{"HUGGINGFACE_API_KEY": ""}, valid: false},
		{name: "postgres without url", env: map[string]string{"DATABASE_URL": ""}, valid: false},
		{name: "sqlite without url", env: map[string]string{"DATABASE_URL": "", "GALLERY_DRIVER": "sqlite"}, valid: true},
		{name: "unknown gallery driver", env: map[string]string{"GALLERY_DRIVER": "mongo"}, valid: false},
		{name: "supabase without credentials", env: map[string]string{"STORAGE_DRIVER": "supabase"}, valid: false},
		{name: "no auth configured", env: map[string]string{"JWT_SECRET": ""}, valid: false},
		{name: "redis notifier without url", env: map[string]string{"NOTIFIER_DRIVER": "redis"}, valid: false},
		{name: "redis notifier", env: map[string]string{"NOTIFIER_DRIVER": "redis", "REDIS_URL": "redis://localhost:6379/0"}, valid: true},
		{name: "unknown notifier driver", env: map[string]string{"NOTIFIER_DRIVER": "kafka"}, valid: false},
		{name: "clerk only", env: map[string]string{"JWT_SECRET": "", "CLERK_ISSUER": "https://clerk.example.com/"}, valid: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			if tc.valid && err != nil {
				t.Fatalf("LoadConfig returned error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected error, got config %+v", cfg)
			}
		})
	}
}

func TestLoadConfigSplitsCORSOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://ghiblyze.app, ,http://localhost:5173 ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"https://ghiblyze.app", "http://localhost:5173"}
	if len(cfg.CORSOrigins) != len(expected) {
		t.Fatalf("CORSOrigins mismatch: got %#v want %#v", cfg.CORSOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSOrigins[i] != origin {
			t.Fatalf("CORSOrigins[%d] = %q, want %q", i, cfg.CORSOrigins[i], origin)
		}
	}
}
