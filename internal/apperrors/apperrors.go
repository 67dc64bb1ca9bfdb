// Package apperrors defines the error taxonomy shared across the complaint
// pipeline. Handlers map these to HTTP statuses; services use them to decide
// between degrading a result and aborting a submission.
package apperrors

import (
	"errors"
	"fmt"
)

// InvalidInputError indicates a missing or malformed required field.
// Never retried; surfaced immediately with the offending field name.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}

// NewInvalidInput creates an invalid-input error for a named field.
func NewInvalidInput(field, msg string) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: msg}
}

// UpstreamError indicates a network or HTTP failure from an external
// collaborator (geocoding, classification, mail transport).
type UpstreamError struct {
	Service string
	Status  int
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s unavailable: status %d", e.Service, e.Status)
}

// Unwrap returns the wrapped error for error chain inspection.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstream creates an upstream error for a named external service.
func NewUpstream(service string, status int, err error) *UpstreamError {
	return &UpstreamError{Service: service, Status: status, Err: err}
}

// AuthExpiredError indicates the mail credential could not be refreshed.
// The send is never attempted under a token known to be invalid.
type AuthExpiredError struct {
	Err error
}

func (e *AuthExpiredError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth expired: %v", e.Err)
	}
	return "auth expired"
}

func (e *AuthExpiredError) Unwrap() error {
	return e.Err
}

// Sentinel errors for the storage layer.
var (
	// ErrNotFound is returned when a complaint does not exist or is owned
	// by a different principal. Ownership misses are indistinguishable
	// from absence on purpose.
	ErrNotFound = errors.New("complaint not found")

	// ErrStorageConflict is returned when a complaint number collides with
	// an existing record after the single regeneration retry.
	ErrStorageConflict = errors.New("complaint number conflict")

	// ErrStorageUnavailable is returned when the record could not be
	// written at all. The one fatal condition in the pipeline.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// IsUpstream reports whether err is an upstream failure.
func IsUpstream(err error) bool {
	var e *UpstreamError
	return errors.As(err, &e)
}

// IsAuthExpired reports whether err is a credential refresh failure.
func IsAuthExpired(err error) bool {
	var e *AuthExpiredError
	return errors.As(err, &e)
}
