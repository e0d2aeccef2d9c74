package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("Unauthorized to delete this image")
	ErrOwnerRequired   = errors.New("User ID is required")
	ErrInvalidInput    = errors.New("invalid input")
	ErrProviderFailure = errors.New("provider failure")
	ErrInvalidState    = errors.New("invalid state")

	// ErrDownloadUnauthorized matches ErrUnauthorized.
	ErrDownloadUnauthorized error = &unauthorizedError{msg: "Unauthorized to download this image"}
)

type unauthorizedError struct {
	msg string
}

func (e *unauthorizedError) Error() string { return e.msg }

func (e *unauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// ValidationError is a user-facing rejection of input that never reached the
// network. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
