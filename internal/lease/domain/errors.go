package domain

import (
	"github.com/allisson/covert/internal/errors"
)

// Lease errors.
var (
	// ErrLeaseNotFound indicates no lease exists with the given id.
	ErrLeaseNotFound = errors.Wrap(errors.ErrNotFound, "lease not found")

	// ErrLeaseNotRenewable indicates a renewal of a lease issued as non-renewable.
	ErrLeaseNotRenewable = errors.Wrap(errors.ErrInvalidInput, "lease is not renewable")

	// ErrLeaseExpired indicates a renewal of a lease past its expiry.
	ErrLeaseExpired = errors.Wrap(errors.ErrInvalidInput, "lease is expired")

	// ErrLeaseAlreadyExists indicates a duplicate lease id.
	ErrLeaseAlreadyExists = errors.Wrap(errors.ErrConflict, "lease already exists")

	// ErrMountNotFound indicates a lease was registered under a path with no enabled mount.
	ErrMountNotFound = errors.Wrap(errors.ErrNotFound, "lease mount not found")
)
