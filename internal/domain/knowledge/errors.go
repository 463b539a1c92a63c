package knowledge

import (
	"errors"
	"fmt"
)

// ErrIndexCorrupt marks persisted index state that could not be read back.
// It is fatal at startup: the index refuses to serve from a store it cannot
// fully load.
var ErrIndexCorrupt = errors.New("persisted index unreadable or corrupt")

// ErrDimensionMismatch is returned when a vector does not match the dimension
// fixed at index creation.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ValidationError reports malformed caller input (empty query, bad chunking
// parameters, a chat turn list that does not end with a user turn). It is
// always surfaced as a structured error, never softened into a response
// string.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// EmbeddingError wraps a failure from the injected embedding function.
// The index never retries; retry policy belongs to the caller.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return "embedding: " + e.Err.Error()
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
