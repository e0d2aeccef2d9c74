package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"ghiblyze/internal/http/handlers"
	"ghiblyze/internal/infra"
	"ghiblyze/internal/middleware"
)

type Options struct {
	Verifier        middleware.TokenVerifier
	CORSOrigins     []string
	RateLimitPerMin int
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	// StaticDir, when set, is served under /static for filesystem storage.
	StaticDir string
	Metrics   *infra.Metrics
	Logger    zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID(opts.Logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger, opts.Metrics),
		cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Locale", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition", "Content-Language"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth(opts.Verifier))
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Route("/generations", func(r chi.Router) {
			r.Post("/", app.CreateGeneration)
			r.Get("/current", app.CurrentGeneration)
			r.Post("/current/retry", app.RetryGeneration)
			r.Get("/current/download", app.DownloadGeneration)
			r.Post("/current/save", app.SaveGeneration)
		})

		r.Route("/gallery", func(r chi.Router) {
			r.Get("/", app.ListGallery)
			r.Post("/", app.SaveGallery)
			r.Get("/events", app.GalleryEvents)
			r.Delete("/{id}", app.DeleteGallery)
			r.Get("/{id}/download", app.DownloadGallery)
		})
	})

	return r
}
