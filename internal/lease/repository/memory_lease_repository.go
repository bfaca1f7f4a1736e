package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	leaseDomain "github.com/allisson/covert/internal/lease/domain"
)

// MemoryLeaseRepository keeps leases in process memory.
type MemoryLeaseRepository struct {
	mu     sync.RWMutex
	leases map[string]*leaseDomain.Lease
}

func (m *MemoryLeaseRepository) Create(ctx context.Context, lease *leaseDomain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[lease.ID]; ok {
		return leaseDomain.ErrLeaseAlreadyExists
	}
	m.leases[lease.ID] = lease.Clone()
	return nil
}

func (m *MemoryLeaseRepository) Get(ctx context.Context, leaseID string) (*leaseDomain.Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lease, ok := m.leases[leaseID]
	if !ok {
		return nil, leaseDomain.ErrLeaseNotFound
	}
	return lease.Clone(), nil
}

func (m *MemoryLeaseRepository) Update(ctx context.Context, lease *leaseDomain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[lease.ID]; !ok {
		return leaseDomain.ErrLeaseNotFound
	}
	m.leases[lease.ID] = lease.Clone()
	return nil
}

func (m *MemoryLeaseRepository) Delete(ctx context.Context, leaseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[leaseID]; !ok {
		return leaseDomain.ErrLeaseNotFound
	}
	delete(m.leases, leaseID)
	return nil
}

func (m *MemoryLeaseRepository) ListByMountPrefix(
	ctx context.Context,
	prefix string,
) ([]*leaseDomain.Lease, error) {
	return m.filter(func(lease *leaseDomain.Lease) bool {
		return strings.HasPrefix(lease.MountPath, prefix)
	}), nil
}

func (m *MemoryLeaseRepository) ListByToken(
	ctx context.Context,
	tokenID uuid.UUID,
) ([]*leaseDomain.Lease, error) {
	return m.filter(func(lease *leaseDomain.Lease) bool {
		return lease.TokenID != nil && *lease.TokenID == tokenID
	}), nil
}

func (m *MemoryLeaseRepository) ListExpired(
	ctx context.Context,
	before time.Time,
	after *leaseDomain.ExpiryCursor,
	limit int,
) ([]*leaseDomain.Lease, error) {
	leases := m.filter(func(lease *leaseDomain.Lease) bool {
		return lease.IsExpired(before) && lease.IsAfter(after)
	})
	sort.SliceStable(leases, func(i, j int) bool {
		if !leases[i].ExpiresAt.Equal(leases[j].ExpiresAt) {
			return leases[i].ExpiresAt.Before(leases[j].ExpiresAt)
		}
		return leases[i].ID < leases[j].ID
	})
	if limit > 0 && len(leases) > limit {
		leases = leases[:limit]
	}
	return leases, nil
}

func (m *MemoryLeaseRepository) filter(match func(*leaseDomain.Lease) bool) []*leaseDomain.Lease {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leases := make([]*leaseDomain.Lease, 0)
	for _, lease := range m.leases {
		if match(lease) {
			leases = append(leases, lease.Clone())
		}
	}
	sort.Slice(leases, func(i, j int) bool { return leases[i].ID < leases[j].ID })
	return leases
}

// NewMemoryLeaseRepository creates an empty in-memory Lease repository.
func NewMemoryLeaseRepository() *MemoryLeaseRepository {
	return &MemoryLeaseRepository{leases: make(map[string]*leaseDomain.Lease)}
}
