package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	GalleryDriverPostgres = "postgres"
	GalleryDriverSQLite   = "sqlite"

	StorageDriverSupabase   = "supabase"
	StorageDriverFilesystem = "filesystem"

	NotifierDriverMemory = "memory"
	NotifierDriverRedis  = "redis"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	GalleryDriver      string
	SQLitePath         string
	ClerkIssuer        string
	ClerkAudience      string
	JWTSecret          string
	InferenceAPIKey    string
	InferenceURL       string
	InferenceTimeout   time.Duration
	StorageDriver      string
	SupabaseURL        string
	SupabaseServiceKey string
	StorageBucket      string
	StoragePath        string
	StorageBaseURL     string
	CORSOrigins        []string
	GeoIPDBPath        string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	SessionTTL         time.Duration
	SessionSweepSpec   string
	NotifierDriver     string
	RedisURL           string
}

// LoadConfig reads an optional .env file, then loads configuration from
// environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GalleryDriver:      strings.ToLower(getEnv("GALLERY_DRIVER", GalleryDriverPostgres)),
		SQLitePath:         getEnv("SQLITE_PATH", "ghiblyze.db"),
		ClerkIssuer:        strings.TrimRight(os.Getenv("CLERK_ISSUER"), "/"),
		ClerkAudience:      os.Getenv("CLERK_AUDIENCE"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		InferenceAPIKey:    os.Getenv("HUGGINGFACE_API_KEY"),
		InferenceURL:       getEnv("INFERENCE_URL", "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0"),
		InferenceTimeout:   time.Second * time.Duration(getEnvInt("INFERENCE_TIMEOUT_SECONDS", 120)),
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverSupabase)),
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		StorageBucket:      getEnv("STORAGE_BUCKET", "ghiblyze-images"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		CORSOrigins:        splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		SessionTTL:         time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)),
		SessionSweepSpec:   getEnv("SESSION_SWEEP_SPEC", "@every 5m"),
		NotifierDriver:     strings.ToLower(getEnv("NOTIFIER_DRIVER", NotifierDriverMemory)),
		RedisURL:           os.Getenv("REDIS_URL"),
	}

	switch cfg.GalleryDriver {
	case GalleryDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case GalleryDriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported GALLERY_DRIVER %q", cfg.GalleryDriver)
	}

	switch cfg.StorageDriver {
	case StorageDriverSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
		}
	case StorageDriverFilesystem:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.NotifierDriver {
	case NotifierDriverMemory:
	case NotifierDriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required")
		}
	default:
		return nil, fmt.Errorf("unsupported NOTIFIER_DRIVER %q", cfg.NotifierDriver)
	}

	if cfg.InferenceAPIKey == "" {
		return nil, fmt.Errorf("HUGGINGFACE_API_KEY is required")
	}

	if cfg.ClerkIssuer == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("CLERK_ISSUER or JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
