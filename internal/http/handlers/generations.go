package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/processor"
)

// multipartOverhead leaves room for form fields around the image part.
const multipartOverhead = 1 << 20

type generationRequest struct {
	Prompt    string `json:"prompt"`
	StyleHint string `json:"style_hint"`
}

type saveGenerationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// CreateGeneration accepts a JSON prompt or a multipart image upload and
// starts a run. With ?wait=true the response carries the settled state.
func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	req, err := a.decodeGeneration(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.Sessions.Session(userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := session.Submit(req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		snap, err = session.Wait(r.Context())
		if err != nil {
			a.fail(w, r, err)
			return
		}
	}
	status := http.StatusOK
	if snap.Status == processor.StatusProcessing {
		status = http.StatusAccepted
	}
	a.json(w, status, snap)
}

func (a *App) decodeGeneration(w http.ResponseWriter, r *http.Request) (domain.GenerationRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body generationRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&body); err != nil {
			return domain.GenerationRequest{}, &domain.ValidationError{Field: "prompt", Message: domain.MsgPromptRequired}
		}
		return domain.GenerationRequest{Prompt: body.Prompt, StyleHint: body.StyleHint}, nil
	}

	if r.ContentLength > domain.MaxSourceImageBytes+multipartOverhead {
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "image", Message: domain.MsgImageTooLarge}
	}
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxSourceImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(domain.MaxSourceImageBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.GenerationRequest{}, &domain.ValidationError{Field: "image", Message: domain.MsgImageTooLarge}
		}
		return domain.GenerationRequest{}, &domain.ValidationError{Field: "image", Message: domain.MsgImageRequired}
	}
	req := domain.GenerationRequest{
		Prompt:    r.FormValue("prompt"),
		StyleHint: r.FormValue("style_hint"),
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, &domain.ValidationError{Field: "image", Message: domain.MsgImageRequired}
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := domain.ValidateSourceImage(contentType, header.Size); err != nil {
		return req, err
	}
	data, err := io.ReadAll(io.LimitReader(file, domain.MaxSourceImageBytes+1))
	if err != nil {
		return req, fmt.Errorf("read upload: %w", err)
	}
	req.Image = &domain.SourceImage{Data: data, MIMEType: contentType, Filename: header.Filename}
	return req, nil
}

func (a *App) CurrentGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	session, err := a.Sessions.Session(userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, session.Snapshot())
}

func (a *App) RetryGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	session, err := a.Sessions.Session(userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	snap, err := session.Retry()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) DownloadGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	session, err := a.Sessions.Session(userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	dl, err := session.Download(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeAttachment(w, dl.Filename, dl.ContentType, dl.Data)
}

func (a *App) SaveGeneration(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var body saveGenerationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 16<<10)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}
	if err := a.validator().Struct(body); err != nil {
		a.fail(w, r, &domain.ValidationError{Field: "title", Message: "Title must be at most 200 characters"})
		return
	}
	session, err := a.Sessions.Session(userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	img, err := session.Save(r.Context(), strings.TrimSpace(body.Title))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, img)
}
