package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ghiblyze/internal/adapter/repo"
	"ghiblyze/internal/domain"
	"ghiblyze/internal/gallery"
	"ghiblyze/internal/http/handlers"
	httpapi "ghiblyze/internal/http/httpapi"
	"ghiblyze/internal/imagegen"
	"ghiblyze/internal/infra"
	"ghiblyze/internal/infra/clerk"
	"ghiblyze/internal/infra/geoip"
	"ghiblyze/internal/middleware"
	"ghiblyze/internal/processor"
	"ghiblyze/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	metrics := infra.NewMetrics()

	ctx := context.Background()

	galleryRepo, ready, closeGallery := openGallery(ctx, cfg, logger, metrics)
	defer closeGallery()

	store, staticDir := openStorage(cfg, logger)

	generator, err := imagegen.NewClient(imagegen.Options{
		Endpoint: cfg.InferenceURL,
		APIKey:   cfg.InferenceAPIKey,
		Timeout:  cfg.InferenceTimeout,
		Store:    store,
		Logger:   logger.With().Str("component", "imagegen").Logger(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build inference client")
	}

	notifier := gallery.NewNotifier()
	publisher, stopRelay := openPublisher(ctx, cfg, notifier, logger)
	defer stopRelay()

	fetcher := storage.NewFetcher(nil)
	sessions, err := processor.NewManager(processor.Deps{
		Generator: generator,
		Fetcher:   fetcher,
		Gallery:   galleryRepo,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logger.With().Str("component", "processor").Logger(),
	}, processor.ManagerOptions{TTL: cfg.SessionTTL, SweepSpec: cfg.SessionSweepSpec})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build session manager")
	}
	sessions.Start()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	var verifier middleware.TokenVerifier
	if cfg.ClerkIssuer != "" {
		verifier = clerk.NewJWKSVerifier(cfg.ClerkIssuer, cfg.ClerkAudience, nil)
	} else {
		logger.Warn().Msg("CLERK_ISSUER not set, accepting HS256 development tokens")
		verifier = clerk.NewHMACVerifier(cfg.JWTSecret)
	}

	app := &handlers.App{
		Logger:    logger,
		Gallery:   galleryRepo,
		Sessions:  sessions,
		Notifier:  notifier,
		Publisher: publisher,
		Fetcher:   fetcher,
		Metrics:   metrics,
		Ready:     ready,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Verifier:        verifier,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		CountryLookup:   resolver.Lookup(),
		StaticDir:       staticDir,
		Metrics:         metrics,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("gallery", cfg.GalleryDriver).Str("storage", cfg.StorageDriver).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := sessions.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to stop sessions")
	}
	logger.Info().Msg("server stopped")
}

func openGallery(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, metrics *infra.Metrics) (domain.GalleryRepository, func(context.Context) error, func()) {
	if cfg.GalleryDriver == infra.GalleryDriverSQLite {
		db, err := repo.OpenGallerySQLite(cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite gallery")
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite gallery")
		}
		return repo.NewGallerySQLite(db, metrics), sqlDB.PingContext, func() { _ = sqlDB.Close() }
	}

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	runner := infra.NewSQLRunner(dbpool, logger, metrics)
	return repo.NewGalleryRepository(runner, metrics), dbpool.Ping, dbpool.Close
}

// openPublisher returns the in-process notifier, or a Redis relay feeding it
// when NOTIFIER_DRIVER=redis. The returned func stops the relay.
func openPublisher(ctx context.Context, cfg *infra.Config, notifier *gallery.Notifier, logger zerolog.Logger) (processor.Publisher, func()) {
	if cfg.NotifierDriver != infra.NotifierDriverRedis {
		return notifier, func() {}
	}
	relay, err := gallery.NewRedisRelay(ctx, cfg.RedisURL, notifier, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis notifier")
	}
	relayCtx, cancel := context.WithCancel(ctx)
	go func() {
		if err := relay.Run(relayCtx); err != nil {
			logger.Error().Err(err).Msg("gallery relay stopped")
		}
	}()
	return relay, func() {
		cancel()
		_ = relay.Close()
	}
}

func openStorage(cfg *infra.Config, logger zerolog.Logger) (storage.ObjectStore, string) {
	if cfg.StorageDriver == infra.StorageDriverFilesystem {
		fs, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare storage directory")
		}
		return fs, fs.BasePath()
	}
	store, err := storage.NewSupabaseStore(storage.SupabaseOptions{
		BaseURL:    cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
		Bucket:     cfg.StorageBucket,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure supabase storage")
	}
	return store, ""
}
