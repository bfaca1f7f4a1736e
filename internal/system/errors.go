package system

import (
	"github.com/allisson/covert/internal/errors"
)

// Router errors.
var (
	// ErrRouteNotFound indicates no route matches the request path.
	ErrRouteNotFound = errors.Wrap(errors.ErrNotFound, "route not found")

	// ErrUnsupportedOperation indicates the path matches a route that does not offer the operation.
	ErrUnsupportedOperation = errors.Wrap(errors.ErrNotFound, "unsupported operation")

	// ErrMalformedRequest indicates a request body that could not be decoded.
	ErrMalformedRequest = errors.Wrap(errors.ErrMalformedInput, "malformed request body")

	// ErrPermissionDenied indicates the caller's policies do not grant the route's capability.
	ErrPermissionDenied = errors.Wrap(errors.ErrForbidden, "permission denied")
)
