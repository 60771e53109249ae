package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the issue tracker client
var (
	// Login errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUnknownLoginFailure = errors.New("login failed")
	ErrNotAuthenticated    = errors.New("not authenticated")

	// Session errors
	ErrAuthExpired = errors.New("authentication expired")

	// Transport errors
	ErrNetworkFailure = errors.New("network failure")
	ErrUnknownFailure = errors.New("unexpected response")

	// Request errors
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// ValidationError holds per-field messages, keyed by the wire (json) field name.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(fields map[string][]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, FormatFields(v.Fields))
}

func (v *ValidationError) Unwrap() error {
	return ErrValidation
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers only import this package
func New(text string) error {
	return errors.New(text)
}

// Join is errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
