package repository

import (
	"context"
	"sort"
	"sync"

	mountDomain "github.com/allisson/covert/internal/mount/domain"
)

// MemoryMountRepository keeps mounts in process memory, keyed by path.
type MemoryMountRepository struct {
	mu     sync.RWMutex
	mounts map[string]*mountDomain.Mount
}

func (m *MemoryMountRepository) Create(ctx context.Context, mount *mountDomain.Mount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mounts[mount.Path]; ok {
		return mountDomain.ErrMountPathInUse
	}
	m.mounts[mount.Path] = mount.Clone()
	return nil
}

func (m *MemoryMountRepository) Update(ctx context.Context, mount *mountDomain.Mount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.mounts[mount.Path]
	if !ok || existing.ID != mount.ID {
		return mountDomain.ErrMountNotFound
	}
	m.mounts[mount.Path] = mount.Clone()
	return nil
}

func (m *MemoryMountRepository) GetByPath(ctx context.Context, path string) (*mountDomain.Mount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mount, ok := m.mounts[path]
	if !ok {
		return nil, mountDomain.ErrMountNotFound
	}
	return mount.Clone(), nil
}

func (m *MemoryMountRepository) List(ctx context.Context) ([]*mountDomain.Mount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mounts := make([]*mountDomain.Mount, 0, len(m.mounts))
	for _, mount := range m.mounts {
		mounts = append(mounts, mount.Clone())
	}
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].Path < mounts[j].Path })
	return mounts, nil
}

// NewMemoryMountRepository creates an empty in-memory Mount repository.
func NewMemoryMountRepository() *MemoryMountRepository {
	return &MemoryMountRepository{mounts: make(map[string]*mountDomain.Mount)}
}
