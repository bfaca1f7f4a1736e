// Package errors provides standardized domain errors that express business intent
// rather than infrastructure details. These errors should be used by use cases
// and mapped to appropriate transport status codes by handlers.
package errors

import (
	"errors"
	"fmt"
)

// Standard domain errors that can be used across all domain modules.
var (
	// ErrNotFound indicates the requested resource (or route) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conflict with existing data (e.g., duplicate key).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request lacks valid authentication credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller's policies do not grant the requested capability.
	ErrForbidden = errors.New("permission denied")

	// ErrInvalidState indicates the operation is not legal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrMalformedInput indicates a payload that could not be decoded at all.
	ErrMalformedInput = fmt.Errorf("malformed input: %w", ErrInvalidInput)

	// ErrInternal indicates a collaborator failure (persistence, crypto, engine callback).
	ErrInternal = errors.New("internal error")
)

// Stable error kinds reported to callers.
const (
	KindNotFound         = "not_found"
	KindConflict         = "conflict"
	KindInvalidInput     = "invalid_input"
	KindUnauthorized     = "unauthorized"
	KindPermissionDenied = "permission_denied"
	KindInvalidState     = "invalid_state"
	KindInternal         = "internal"
)

// KindOf returns the stable kind of err. Errors marked with Internal keep the
// internal kind even when the cause wraps another sentinel. Errors that do not
// wrap one of the standard sentinels are reported as internal.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInternal):
		return KindInternal
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrForbidden):
		return KindPermissionDenied
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New for consistency.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
// Use this to add context at each layer without losing the original error type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Internal marks err as a collaborator failure while keeping it inspectable.
func Internal(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", message, ErrInternal, err)
}

// Is reports whether any error in err's tree matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
