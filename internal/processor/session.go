package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/gallery"
	"ghiblyze/internal/infra"
)

// Status is the processor state shown to the user.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

const fallbackFailureMessage = "Failed to generate image"

var (
	ErrNotComplete    = fmt.Errorf("%w: no completed image", domain.ErrInvalidState)
	ErrSaveInProgress = fmt.Errorf("%w: save already in progress", domain.ErrInvalidState)
	ErrClosed         = fmt.Errorf("%w: session closed", domain.ErrInvalidState)
)

// Generator produces a stored image URL from a prompt or a source image.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Transform(ctx context.Context, image []byte, styleHint string) (string, error)
}

// Fetcher downloads a stored image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// GallerySaver persists a result into the owner's gallery.
type GallerySaver interface {
	Save(ctx context.Context, url, title, ownerID string) (*domain.GalleryImage, error)
}

// Publisher announces that an owner's gallery changed.
type Publisher interface {
	Publish(ownerID string) gallery.Change
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Generator Generator
	Fetcher   Fetcher
	Gallery   GallerySaver
	Publisher Publisher
	Metrics   *infra.Metrics
	Logger    zerolog.Logger
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	Status    Status           `json:"status"`
	InputKind domain.InputKind `json:"input_kind,omitempty"`
	Prompt    string           `json:"prompt,omitempty"`
	ImageName string           `json:"image_name,omitempty"`
	ResultURL string           `json:"result_url,omitempty"`
	Error     string           `json:"error,omitempty"`
	Saving    bool             `json:"saving"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Download is a completed result ready to be sent to the browser.
type Download struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Session drives one owner's generations through idle, processing, complete
// and error. Every run gets its own context and token; a run whose token is
// no longer current when it settles is discarded.
type Session struct {
	ownerID string
	deps    Deps
	logger  zerolog.Logger
	now     func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu        sync.Mutex
	status    Status
	kind      domain.InputKind
	prompt    string
	image     *domain.SourceImage
	styleHint string
	resultURL string
	errMsg    string
	token     uint64
	cancel    context.CancelFunc
	done      chan struct{}
	saving    bool
	closed    bool
	updatedAt time.Time
}

func newSession(ownerID string, deps Deps, now func() time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ownerID:    ownerID,
		deps:       deps,
		logger:     deps.Logger.With().Str("owner", ownerID).Logger(),
		now:        now,
		baseCtx:    ctx,
		baseCancel: cancel,
		status:     StatusIdle,
		updatedAt:  now(),
	}
}

// Submit validates req and, if accepted, starts a run that supersedes any run
// in flight. A rejected request leaves the session untouched.
func (s *Session) Submit(req domain.GenerationRequest) (Snapshot, error) {
	if err := req.Validate(); err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snapshotLocked(), ErrClosed
	}
	s.stopLocked()

	s.kind = req.Kind()
	switch s.kind {
	case domain.InputPrompt:
		s.prompt = strings.TrimSpace(req.Prompt)
		s.image = nil
		s.styleHint = ""
	case domain.InputImage:
		s.prompt = ""
		s.image = req.Image
		s.styleHint = strings.TrimSpace(req.StyleHint)
	}
	s.status = StatusProcessing
	s.resultURL = ""
	s.errMsg = ""
	s.touchLocked()

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.token, s.kind, s.prompt, s.image, s.styleHint, s.done)

	s.logger.Info().Str("kind", string(s.kind)).Uint64("token", s.token).Msg("processor: run started")
	return s.snapshotLocked(), nil
}

func (s *Session) run(ctx context.Context, token uint64, kind domain.InputKind, prompt string, image *domain.SourceImage, styleHint string, done chan struct{}) {
	start := s.now()
	var (
		url string
		err error
	)
	switch kind {
	case domain.InputPrompt:
		url, err = s.deps.Generator.Generate(ctx, prompt)
	case domain.InputImage:
		url, err = s.deps.Generator.Transform(ctx, image.Data, styleHint)
	default:
		err = &domain.ValidationError{Field: "input", Message: domain.MsgInputMissing}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)

	if token != s.token {
		s.logger.Debug().Uint64("token", token).Msg("processor: discarded superseded result")
		return
	}
	s.deps.Metrics.ObserveGeneration(string(kind), err)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if err != nil {
		s.status = StatusError
		s.errMsg = failureMessage(err)
		s.logger.Warn().Err(err).Str("kind", string(kind)).Dur("took", s.now().Sub(start)).Msg("processor: run failed")
	} else {
		s.status = StatusComplete
		s.resultURL = url
		s.logger.Info().Str("kind", string(kind)).Dur("took", s.now().Sub(start)).Msg("processor: run complete")
	}
	s.touchLocked()
}

func failureMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" || errors.Is(err, context.DeadlineExceeded) {
		return fallbackFailureMessage
	}
	return msg
}

// Wait blocks until the current run settles or ctx is done.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		}
	}
	return s.Snapshot(), nil
}

// Retry abandons a failed or in-flight run and returns to idle with no
// residual result.
func (s *Session) Retry() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.status {
	case StatusIdle:
		return s.snapshotLocked(), nil
	case StatusComplete:
		return s.snapshotLocked(), fmt.Errorf("%w: nothing to retry", domain.ErrInvalidState)
	}
	s.stopLocked()
	s.status = StatusIdle
	s.kind = domain.InputNone
	s.prompt = ""
	s.image = nil
	s.styleHint = ""
	s.resultURL = ""
	s.errMsg = ""
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// Download fetches the completed result.
func (s *Session) Download(ctx context.Context) (*Download, error) {
	s.mu.Lock()
	if s.status != StatusComplete {
		s.mu.Unlock()
		return nil, ErrNotComplete
	}
	url := s.resultURL
	s.touchLocked()
	s.mu.Unlock()

	data, contentType, err := s.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download result: %w", err)
	}
	return &Download{
		Data:        data,
		Filename:    fmt.Sprintf("ghibli-image-%d.png", s.now().UnixMilli()),
		ContentType: contentType,
	}, nil
}

// Save stores the completed result in the owner's gallery and publishes a
// change. Only one save per session may be in flight.
func (s *Session) Save(ctx context.Context, title string) (*domain.GalleryImage, error) {
	s.mu.Lock()
	if s.status != StatusComplete {
		s.mu.Unlock()
		return nil, ErrNotComplete
	}
	if s.saving {
		s.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	s.saving = true
	url := s.resultURL
	if strings.TrimSpace(title) == "" {
		title = s.prompt
	}
	s.touchLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	img, err := s.deps.Gallery.Save(ctx, url, domain.GalleryTitle(title), s.ownerID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("processor: save to gallery failed")
		return nil, err
	}
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(s.ownerID)
	}
	s.logger.Info().Str("image_id", img.ID).Msg("processor: saved to gallery")
	return img, nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels any run in flight. A closed session rejects new input.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopLocked()
	s.baseCancel()
}

// idleSince reports when the session was last used, and whether it is busy.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt, s.status == StatusProcessing || s.saving
}

// stopLocked invalidates the current run so its result is discarded.
func (s *Session) stopLocked() {
	s.token++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.done = nil
}

func (s *Session) touchLocked() {
	s.updatedAt = s.now()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:    s.status,
		InputKind: s.kind,
		Prompt:    s.prompt,
		ResultURL: s.resultURL,
		Error:     s.errMsg,
		Saving:    s.saving,
		UpdatedAt: s.updatedAt,
	}
	if s.image != nil {
		snap.ImageName = s.image.Filename
	}
	return snap
}
