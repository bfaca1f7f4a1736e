package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/vault/sdk/helper/locksutil"

	apperrors "github.com/allisson/covert/internal/errors"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
	"github.com/allisson/covert/internal/validation"
)

// mountUseCase serializes writes per path. Create additionally takes the table mutex
// because the overlap check spans every path.
type mountUseCase struct {
	mountRepo MountRepository
	tableMu   sync.Mutex
	locks     []*locksutil.LockEntry
}

func (m *mountUseCase) List(ctx context.Context) ([]*mountDomain.Mount, error) {
	mounts, err := m.mountRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list mounts")
	}
	return mounts, nil
}

func (m *mountUseCase) Get(ctx context.Context, path string) (*mountDomain.Mount, error) {
	mount, err := m.getEnabled(ctx, mountDomain.NormalizePath(path))
	if err != nil {
		return nil, err
	}
	return mount, nil
}

func (m *mountUseCase) Create(
	ctx context.Context,
	input *mountDomain.CreateMountInput,
) (*mountDomain.Mount, error) {
	params := *input
	params.Path = mountDomain.NormalizePath(params.Path)
	if err := params.Validate(); err != nil {
		return nil, validation.WrapValidationError(err)
	}

	m.tableMu.Lock()
	defer m.tableMu.Unlock()

	lock := locksutil.LockForKey(m.locks, params.Path)
	lock.Lock()
	defer lock.Unlock()

	mounts, err := m.mountRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list mounts")
	}

	var existing *mountDomain.Mount
	for _, mount := range mounts {
		if mount.Path == params.Path {
			existing = mount
		}
		if mount.Enabled && mount.Overlaps(params.Path) {
			return nil, apperrors.Wrapf(mountDomain.ErrMountPathInUse, "%q conflicts with %q", params.Path, mount.Path)
		}
	}

	now := time.Now().UTC()
	if existing != nil {
		existing.Type = params.Type
		existing.Description = params.Description
		existing.Config = params.Config
		existing.Enabled = true
		existing.UpdatedAt = now
		if err := m.mountRepo.Update(ctx, existing); err != nil {
			return nil, apperrors.Internal(err, "failed to enable mount")
		}
		return existing, nil
	}

	mount := &mountDomain.Mount{
		ID:          uuid.Must(uuid.NewV7()),
		Path:        params.Path,
		Type:        params.Type,
		Description: params.Description,
		Config:      params.Config,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.mountRepo.Create(ctx, mount); err != nil {
		if apperrors.Is(err, mountDomain.ErrMountPathInUse) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to create mount")
	}

	return mount, nil
}

func (m *mountUseCase) Tune(
	ctx context.Context,
	input *mountDomain.TuneMountInput,
) (*mountDomain.Mount, error) {
	path := mountDomain.NormalizePath(input.Path)

	lock := locksutil.LockForKey(m.locks, path)
	lock.Lock()
	defer lock.Unlock()

	mount, err := m.getEnabled(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := input.Apply(mount); err != nil {
		return nil, validation.WrapValidationError(err)
	}
	mount.UpdatedAt = time.Now().UTC()

	if err := m.mountRepo.Update(ctx, mount); err != nil {
		return nil, apperrors.Internal(err, "failed to tune mount")
	}

	return mount, nil
}

func (m *mountUseCase) Disable(ctx context.Context, path string) (*mountDomain.Mount, error) {
	path = mountDomain.NormalizePath(path)

	lock := locksutil.LockForKey(m.locks, path)
	lock.Lock()
	defer lock.Unlock()

	mount, err := m.getEnabled(ctx, path)
	if err != nil {
		return nil, err
	}

	mount.Enabled = false
	mount.UpdatedAt = time.Now().UTC()
	if err := m.mountRepo.Update(ctx, mount); err != nil {
		return nil, apperrors.Internal(err, "failed to disable mount")
	}

	return mount, nil
}

// getEnabled treats a disabled mount as absent.
func (m *mountUseCase) getEnabled(ctx context.Context, path string) (*mountDomain.Mount, error) {
	if path == "" {
		return nil, mountDomain.ErrMountNotFound
	}

	mount, err := m.mountRepo.GetByPath(ctx, path)
	if err != nil {
		if apperrors.Is(err, mountDomain.ErrMountNotFound) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to get mount")
	}
	if !mount.Enabled {
		return nil, mountDomain.ErrMountNotFound
	}

	return mount, nil
}

// NewMountUseCase creates a new MountUseCase.
func NewMountUseCase(mountRepo MountRepository) MountUseCase {
	return &mountUseCase{
		mountRepo: mountRepo,
		locks:     locksutil.CreateLocks(),
	}
}
