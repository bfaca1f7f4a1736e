package domain

import (
	"github.com/allisson/covert/internal/errors"
)

// Mount errors.
var (
	// ErrMountNotFound indicates no enabled mount exists at the path.
	ErrMountNotFound = errors.Wrap(errors.ErrNotFound, "mount not found")

	// ErrMountPathInUse indicates an enabled mount holds or overlaps the path.
	ErrMountPathInUse = errors.Wrap(errors.ErrConflict, "mount path is in use")
)
