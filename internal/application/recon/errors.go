package recon

import (
	"errors"

	"github.com/kitaverein/recon-backend/internal/infrastructure/storage"
)

// ValidationError marks a request that is malformed or semantically invalid.
// The API layer maps it to a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with the given message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidation reports whether the error is a request-side validation failure
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v) || errors.Is(err, storage.ErrInvalid)
}

// IsConflict reports whether the error is a state conflict, for example a
// lost concurrent allocation race or an operation on the wrong state
func IsConflict(err error) bool {
	return errors.Is(err, storage.ErrConflict)
}

// IsNotFound reports whether the error refers to a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
