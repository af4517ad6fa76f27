package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidInput     = errors.New("invalid input")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrConflict         = errors.New("conflict")
	ErrProviderFailure  = errors.New("provider failure")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ValidationError carries a caller-facing message for rejected input.
// It unwraps to ErrInvalidInput so handlers can map it with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalidf builds a ValidationError from a format string.
func Invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
