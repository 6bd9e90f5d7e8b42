package services

import "errors"

// ErrInvalidCredentials is returned for any authentication failure.
// Unknown email and wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrBlobMissing is returned when an attachment row exists but its
// object is gone from the blob backend.
var ErrBlobMissing = errors.New("file not found in storage")

// ValidationError reports a rejected input with a field-level message.
// No state is mutated when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validation constructs a ValidationError.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
