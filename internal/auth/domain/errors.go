package domain

import (
	"github.com/allisson/covert/internal/errors"
)

// Token and audit log errors.
var (
	// ErrTokenNotFound indicates no token matches the given identifier or hash.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrInvalidToken indicates a missing, unknown or expired token. The router reports
	// every authentication failure the same way to avoid leaking which case applied.
	ErrInvalidToken = errors.Wrap(errors.ErrForbidden, "permission denied")

	// ErrSignatureInvalid indicates an audit log whose signature does not match its content.
	ErrSignatureInvalid = errors.Wrap(errors.ErrInvalidInput, "audit log signature is invalid")
)
