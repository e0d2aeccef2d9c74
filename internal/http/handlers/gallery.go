package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/gallery"
)

const sseHeartbeat = 25 * time.Second

type saveGalleryRequest struct {
	URL   string `json:"url" validate:"required,url"`
	Title string `json:"title" validate:"max=200"`
}

type galleryResponse struct {
	Images  []domain.GalleryImage `json:"images"`
	HasMore bool                  `json:"has_more"`
	Total   int                   `json:"total"`
}

func (a *App) view(r *http.Request, userID string) (*gallery.View, error) {
	return gallery.NewView(a.Gallery, a.Notifier, userID, *a.log(r))
}

// ListGallery returns the caller's images newest first. ?preview=true
// limits the list to the first few entries.
func (a *App) ListGallery(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	v, err := a.view(r, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	all, err := v.Load(r.Context())
	if err != nil {
		a.log(r).Error().Err(err).Msg("gallery: list failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to load gallery")
		return
	}
	resp := galleryResponse{Images: all, HasMore: v.HasMore(), Total: len(all)}
	if preview, _ := strconv.ParseBool(r.URL.Query().Get("preview")); preview {
		resp.Images = v.Preview()
	}
	a.json(w, http.StatusOK, resp)
}

// SaveGallery stores an already generated image URL in the caller's gallery.
func (a *App) SaveGallery(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var body saveGalleryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&body); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validator().Struct(body); err != nil {
		a.fail(w, r, validationMessage(err))
		return
	}
	img, err := a.Gallery.Save(r.Context(), body.URL, body.Title, userID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrOwnerRequired) {
			a.fail(w, r, err)
			return
		}
		a.log(r).Error().Err(err).Msg("gallery: save failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to save image to gallery")
		return
	}
	a.publish(userID)
	a.json(w, http.StatusCreated, img)
}

func validationMessage(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return &domain.ValidationError{Field: "body", Message: "invalid payload"}
	}
	fe := errs[0]
	switch fe.Field() {
	case "URL":
		if fe.Tag() == "required" {
			return &domain.ValidationError{Field: "url", Message: "Image URL is required"}
		}
		return &domain.ValidationError{Field: "url", Message: "Image URL is invalid"}
	case "Title":
		return &domain.ValidationError{Field: "title", Message: "Title must be at most 200 characters"}
	}
	return &domain.ValidationError{Field: fe.Field(), Message: fmt.Sprintf("%s is invalid", fe.Field())}
}

// DeleteGallery removes one of the caller's images. Missing and foreign ids
// both answer 403 and leave the table untouched. Open event streams hold
// their own views and reload on the published change.
func (a *App) DeleteGallery(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if err := a.Gallery.Remove(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.publish(userID)
	w.WriteHeader(http.StatusNoContent)
}

// DownloadGallery sends one of the caller's saved images as an attachment.
func (a *App) DownloadGallery(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	img, err := a.Gallery.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			err = domain.ErrDownloadUnauthorized
		}
		a.fail(w, r, err)
		return
	}
	if a.Fetcher == nil {
		a.error(w, r, http.StatusInternalServerError, "internal", "Failed to download image")
		return
	}
	data, contentType, err := a.Fetcher.Fetch(r.Context(), img.URL)
	if err != nil {
		a.log(r).Warn().Err(err).Str("image_id", img.ID).Msg("gallery: download failed")
		a.error(w, r, http.StatusBadGateway, "download_failed", "Failed to download image")
		return
	}
	writeAttachment(w, "ghibli-image-"+img.ID+".png", contentType, data)
}

// GalleryEvents streams a gallery-update event with the caller's current
// list each time it changes.
func (a *App) GalleryEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		a.error(w, r, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}
	v, err := a.view(r, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	// the server write timeout would cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var mu sync.Mutex
	var seq int
	send := func(images []domain.GalleryImage) {
		payload, err := json.Marshal(galleryResponse{Images: images, HasMore: len(images) > gallery.PreviewSize, Total: len(images)})
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		seq++
		fmt.Fprintf(w, "id: %d\nevent: gallery-update\ndata: %s\n\n", seq, payload)
		flusher.Flush()
	}

	ctx := r.Context()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				mu.Lock()
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
				mu.Unlock()
			}
		}
	}()

	err = v.Watch(ctx, send)
	close(stop)
	wg.Wait()
	if err != nil && ctx.Err() == nil {
		a.log(r).Warn().Err(err).Msg("gallery: event stream ended")
	}
}
