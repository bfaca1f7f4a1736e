// Package usecase implements mount table administration.
package usecase

import (
	"context"

	mountDomain "github.com/allisson/covert/internal/mount/domain"
)

// MountRepository defines persistence operations for mounts.
type MountRepository interface {
	// Create stores a new mount. Returns ErrMountPathInUse if the path is taken.
	Create(ctx context.Context, mount *mountDomain.Mount) error

	// Update replaces a stored mount. Returns ErrMountNotFound if not found.
	Update(ctx context.Context, mount *mountDomain.Mount) error

	// GetByPath retrieves a mount, enabled or not. Returns ErrMountNotFound if not found.
	GetByPath(ctx context.Context, path string) (*mountDomain.Mount, error)

	// List returns every mount ordered by path.
	List(ctx context.Context) ([]*mountDomain.Mount, error)
}

// MountUseCase defines mount table administration.
type MountUseCase interface {
	// List returns every mount, including disabled ones.
	List(ctx context.Context) ([]*mountDomain.Mount, error)

	// Get returns the enabled mount at path.
	Get(ctx context.Context, path string) (*mountDomain.Mount, error)

	// Create registers a mount. Fails with ErrMountPathInUse when an enabled mount holds or
	// overlaps the path. A disabled mount at the same path is enabled again with the new
	// type and config.
	Create(ctx context.Context, input *mountDomain.CreateMountInput) (*mountDomain.Mount, error)

	// Tune changes the settings of an enabled mount in place.
	Tune(ctx context.Context, input *mountDomain.TuneMountInput) (*mountDomain.Mount, error)

	// Disable marks an enabled mount disabled. The caller is responsible for revoking
	// leases under the mount path afterwards.
	Disable(ctx context.Context, path string) (*mountDomain.Mount, error)
}
