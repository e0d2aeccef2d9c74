package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/gallery"
	"ghiblyze/internal/infra"
	"ghiblyze/internal/middleware"
	"ghiblyze/internal/processor"
)

// App carries the dependencies shared by every handler.
type App struct {
	Logger   zerolog.Logger
	Gallery  domain.GalleryRepository
	Sessions *processor.Manager
	// Notifier feeds local subscribers such as the SSE stream.
	Notifier *gallery.Notifier
	// Publisher announces gallery changes. Defaults to Notifier; a Redis
	// relay fans them out to every instance.
	Publisher processor.Publisher
	Fetcher   processor.Fetcher
	Metrics   *infra.Metrics
	// Ready reports whether backing stores are reachable. Optional.
	Ready func(ctx context.Context) error

	validateOnce sync.Once
	validate     *validator.Validate
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	middleware.WriteError(w, r, status, code, message)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

func (a *App) validator() *validator.Validate {
	a.validateOnce.Do(func() {
		a.validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return a.validate
}

// fail maps domain and processor errors onto the API error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		a.error(w, r, http.StatusUnprocessableEntity, "invalid_input", verr.Message)
	case errors.Is(err, domain.ErrOwnerRequired):
		a.error(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, r, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, r, http.StatusBadGateway, "provider_failure", err.Error())
	case errors.Is(err, processor.ErrSaveInProgress):
		a.error(w, r, http.StatusConflict, "save_in_progress", "A save is already in progress")
	case errors.Is(err, processor.ErrNotComplete):
		a.error(w, r, http.StatusConflict, "invalid_state", "No generated image is available")
	case errors.Is(err, domain.ErrInvalidState):
		a.error(w, r, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
	default:
		a.log(r).Error().Err(err).Msg("request failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "Internal server error")
	}
}

func (a *App) publish(ownerID string) {
	if a.Publisher != nil {
		a.Publisher.Publish(ownerID)
		return
	}
	if a.Notifier != nil {
		a.Notifier.Publish(ownerID)
	}
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// requireUser writes 401 and returns false when the request has no user.
func (a *App) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return "", false
	}
	return userID, true
}
