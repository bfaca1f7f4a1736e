package domain

import (
	"github.com/allisson/covert/internal/errors"
)

// Lifecycle errors.
var (
	// ErrAlreadyInitialized indicates Init was called after a seal configuration exists.
	ErrAlreadyInitialized = errors.Wrap(errors.ErrInvalidState, "already initialized")

	// ErrNotInitialized indicates an operation that needs a seal configuration.
	ErrNotInitialized = errors.Wrap(errors.ErrInvalidState, "not initialized")

	// ErrNotSealed indicates Unseal was called while the service is not sealed.
	ErrNotSealed = errors.Wrap(errors.ErrInvalidState, "not sealed")

	// ErrSealed indicates an operation that needs the root key while the service is sealed.
	ErrSealed = errors.Wrap(errors.ErrInvalidState, "sealed")

	// ErrInvalidUnsealKey indicates the combined shares do not reconstruct the root key.
	ErrInvalidUnsealKey = errors.Wrap(errors.ErrInvalidInput, "unseal keys do not match the root key")

	// ErrMalformedKeyShare indicates a share that is not hex or base64 encoded.
	ErrMalformedKeyShare = errors.Wrap(errors.ErrInvalidInput, "malformed unseal key")

	// ErrSealConfigNotFound indicates no seal configuration is stored.
	ErrSealConfigNotFound = errors.Wrap(errors.ErrNotFound, "seal configuration not found")

	// ErrAutoUnsealUnavailable indicates no KMS-wrapped root key is available.
	ErrAutoUnsealUnavailable = errors.Wrap(errors.ErrInvalidState, "kms auto-unseal is not configured")
)
