package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ghiblyze/internal/domain"
	"ghiblyze/internal/storage"
)

const (
	defaultEndpoint = "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0"
	maxImageBytes   = 32 << 20

	msgGenerateFailed  = "Failed to generate image"
	msgTransformFailed = "Failed to transform image"
	msgRetry           = ". Please try again."
	msgStoreFailed     = "Failed to store the generated image"
)

// Error is the single user-facing failure returned by Generate and Transform.
// It matches domain.ErrProviderFailure and unwraps to the underlying cause.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == domain.ErrProviderFailure }

type Options struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Store      storage.ObjectStore
	Logger     zerolog.Logger
}

// Client calls the hosted diffusion endpoint and stores every result in the
// object store. There is no retry.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	store      storage.ObjectStore
	logger     zerolog.Logger

	maxBytes int64

	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	lastMS int64
}

func NewClient(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, errors.New("imagegen: object store is required")
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		endpoint:   endpoint,
		token:      strings.TrimSpace(opts.APIKey),
		store:      opts.Store,
		logger:     opts.Logger,
		maxBytes:   maxImageBytes,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}, nil
}

type inferenceParameters struct {
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

type textToImageRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type imageInputs struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type imageToImageRequest struct {
	Inputs     imageInputs         `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

func defaultParameters() inferenceParameters {
	return inferenceParameters{
		NegativePrompt:    negativePrompt,
		NumInferenceSteps: inferenceSteps,
		GuidanceScale:     guidanceScale,
	}
}

// Generate renders prompt in the Ghibli style and returns the stored image URL.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", &domain.ValidationError{Field: "prompt", Message: "Please provide a valid prompt"}
	}
	payload := textToImageRequest{Inputs: FormatPrompt(prompt), Parameters: defaultParameters()}
	return c.run(ctx, "generate", storage.PrefixGenerated+"generated-", msgGenerateFailed, payload)
}

// Transform restyles image. A blank styleHint picks one of StyleHints at random.
func (c *Client) Transform(ctx context.Context, image []byte, styleHint string) (string, error) {
	if len(image) == 0 {
		return "", &domain.ValidationError{Field: "image", Message: "Please provide a valid image file"}
	}
	styleHint = strings.TrimSpace(styleHint)
	if styleHint == "" {
		styleHint = c.randomStyleHint()
	}
	payload := imageToImageRequest{
		Inputs: imageInputs{
			Image:  base64.StdEncoding.EncodeToString(image),
			Prompt: styleHint,
		},
		Parameters: defaultParameters(),
	}
	return c.run(ctx, "transform", storage.PrefixTransformed+"transformed-", msgTransformFailed, payload)
}

func (c *Client) run(ctx context.Context, op, keyPrefix, failMsg string, payload any) (string, error) {
	data, contentType, err := c.infer(ctx, op, failMsg, payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("imagegen: inference failed")
		return "", err
	}

	key := fmt.Sprintf("%s%d%s", keyPrefix, c.uniqueMillis(), generatedFileExt)
	if err := c.store.Upload(ctx, key, data, contentType); err != nil {
		c.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("imagegen: upload failed")
		return "", &Error{Op: op, Message: msgStoreFailed, Err: err}
	}
	url := c.store.PublicURL(key)
	c.logger.Debug().Str("op", op).Str("key", key).Int("bytes", len(data)).Msg("imagegen: stored result")
	return url, nil
}

func (c *Client) infer(ctx context.Context, op, failMsg string, payload any) ([]byte, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", &Error{Op: op, Message: failMsg + msgRetry, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", &Error{Op: op, Message: failMsg + msgRetry, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &Error{Op: op, Message: failMsg + msgRetry, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &Error{Op: op, Message: failMsg, Err: fmt.Errorf("inference: http %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", &Error{Op: op, Message: failMsg + msgRetry, Err: err}
	}
	if int64(len(data)) > c.maxBytes {
		return nil, "", &Error{Op: op, Message: failMsg, Err: fmt.Errorf("inference: response exceeds %d bytes", c.maxBytes)}
	}
	if len(data) == 0 {
		return nil, "", &Error{Op: op, Message: failMsg, Err: errors.New("inference: empty response")}
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		contentType = generatedMIMEType
	}
	return data, contentType, nil
}

func (c *Client) randomStyleHint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StyleHints[c.rng.Intn(len(StyleHints))]
}

// uniqueMillis returns the current unix milliseconds, bumped when needed so
// that object names stay unique within this process.
func (c *Client) uniqueMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.lastMS {
		ms = c.lastMS + 1
	}
	c.lastMS = ms
	return ms
}
