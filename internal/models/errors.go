package models

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable means the imagery provider cannot be reached or refused our credentials.
	ErrGatewayUnavailable = errors.New("earth observation gateway unavailable")
	// ErrUnsupportedIndex means the provider has no band formula for the requested index code.
	ErrUnsupportedIndex = errors.New("unsupported index for provider")
	// ErrComputation is a per-image failure while computing an index or its statistics.
	ErrComputation = errors.New("index computation failed")
	// ErrStorage wraps every persistence failure. A pipeline run aborts on it.
	ErrStorage = errors.New("storage unavailable")
	ErrNotFound = errors.New("not found")
)

// ValidationError is returned synchronously to callers for rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "badrequest: " + e.Reason
	}
	return fmt.Sprintf("badrequest: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err carries a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError tags err with ErrStorage while keeping the driver error in the chain.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
