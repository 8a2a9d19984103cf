package customerrors

import (
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("you do not have permission to perform this action")
	ErrInvalidToken       = errors.New("invalid or missing token")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrTooManyRequests    = errors.New("too many requests")

	// ErrNoTagsAffected is returned when a write statement touched no rows.
	ErrNoTagsAffected = errors.New("no rows affected")
)

// ValidationError describes a rejected request body or query parameter.
// Field is empty for whole-body errors.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
