package domain

import (
	"github.com/allisson/covert/internal/errors"
)

// Policy errors.
var (
	// ErrPolicyNotFound indicates no policy exists with the given name.
	ErrPolicyNotFound = errors.Wrap(errors.ErrNotFound, "policy not found")

	// ErrRootPolicyImmutable indicates an attempt to write or delete the built-in root policy.
	ErrRootPolicyImmutable = errors.Wrap(errors.ErrInvalidInput, "the root policy cannot be modified")
)
