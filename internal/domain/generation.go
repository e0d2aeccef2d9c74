package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// MinPromptLength is the shortest accepted prompt, counted in runes after trimming.
	MinPromptLength = 5
	// MaxSourceImageBytes caps uploaded source images at 10MB.
	MaxSourceImageBytes = 10 * 1024 * 1024
)

// User-facing validation messages.
const (
	MsgPromptRequired = "Please enter a prompt"
	MsgPromptTooShort = "Prompt is too short. Please be more descriptive."
	MsgImageRequired  = "Please provide a valid image file"
	MsgImageType      = "Please upload an image file (JPEG, PNG, etc.)"
	MsgImageTooLarge  = "Image size must be less than 10MB"
	MsgInputMissing   = "Provide a prompt or an image"
	MsgInputConflict  = "Provide either a prompt or an image, not both"
)

// InputKind names which of the two mutually exclusive inputs drove a run.
type InputKind string

const (
	InputNone   InputKind = ""
	InputPrompt InputKind = "prompt"
	InputImage  InputKind = "image"
)

// SourceImage is an uploaded image to be restyled.
type SourceImage struct {
	Data     []byte
	MIMEType string
	Filename string
}

// GenerationRequest carries exactly one of Prompt or Image.
type GenerationRequest struct {
	Prompt    string
	Image     *SourceImage
	StyleHint string
}

// Kind reports which input the request carries. Callers should Validate first.
func (r GenerationRequest) Kind() InputKind {
	switch {
	case r.Image != nil:
		return InputImage
	case strings.TrimSpace(r.Prompt) != "":
		return InputPrompt
	default:
		return InputNone
	}
}

// Validate applies the local checks that run before any network call.
func (r GenerationRequest) Validate() error {
	hasPrompt := strings.TrimSpace(r.Prompt) != ""
	switch {
	case hasPrompt && r.Image != nil:
		return invalid("input", MsgInputConflict)
	case r.Image != nil:
		return ValidateSourceImage(r.Image.MIMEType, int64(len(r.Image.Data)))
	case hasPrompt:
		return ValidatePrompt(r.Prompt)
	default:
		return invalid("input", MsgInputMissing)
	}
}

// ValidatePrompt rejects prompts shorter than MinPromptLength after trimming.
func ValidatePrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return invalid("prompt", MsgPromptRequired)
	}
	if utf8.RuneCountInString(trimmed) < MinPromptLength {
		return invalid("prompt", MsgPromptTooShort)
	}
	return nil
}

// ValidateSourceImage checks the declared MIME type and size of an upload.
// It can run on multipart headers before the body is read.
func ValidateSourceImage(mimeType string, size int64) error {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !strings.HasPrefix(mimeType, "image/") {
		return invalid("image", MsgImageType)
	}
	if size > MaxSourceImageBytes {
		return invalid("image", MsgImageTooLarge)
	}
	if size <= 0 {
		return invalid("image", MsgImageRequired)
	}
	return nil
}
