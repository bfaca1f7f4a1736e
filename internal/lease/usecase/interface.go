// Package usecase implements the lease manager: registration, renewal, revocation with
// engine callbacks, cascading sweeps and passive expiration.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	leaseDomain "github.com/allisson/covert/internal/lease/domain"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
)

// MountLookup resolves enabled mounts. Disabled mounts are reported as not found.
type MountLookup interface {
	Get(ctx context.Context, path string) (*mountDomain.Mount, error)
}

// LeaseRepository defines persistence operations for leases.
type LeaseRepository interface {
	// Create stores a new lease. Returns ErrLeaseAlreadyExists on a duplicate id.
	Create(ctx context.Context, lease *leaseDomain.Lease) error

	// Get retrieves a lease by id. Returns ErrLeaseNotFound if not found.
	Get(ctx context.Context, leaseID string) (*leaseDomain.Lease, error)

	// Update stores the mutable fields of a lease. Returns ErrLeaseNotFound if not found.
	Update(ctx context.Context, lease *leaseDomain.Lease) error

	// Delete removes a lease. Returns ErrLeaseNotFound if not found.
	Delete(ctx context.Context, leaseID string) error

	// ListByMountPrefix returns the leases whose mount path starts with prefix, ordered by id.
	ListByMountPrefix(ctx context.Context, prefix string) ([]*leaseDomain.Lease, error)

	// ListByToken returns the leases owned by the token, ordered by id.
	ListByToken(ctx context.Context, tokenID uuid.UUID) ([]*leaseDomain.Lease, error)

	// ListExpired returns up to limit leases that expired at or before the given time and sort
	// after the cursor, ordered by expiry then id. A nil cursor starts from the beginning.
	ListExpired(
		ctx context.Context,
		before time.Time,
		after *leaseDomain.ExpiryCursor,
		limit int,
	) ([]*leaseDomain.Lease, error)
}

// LeaseUseCase defines the lease manager.
type LeaseUseCase interface {
	// Register records a lease issued by a secret engine. The mount path must name an enabled
	// mount, otherwise ErrMountNotFound.
	Register(ctx context.Context, input *leaseDomain.RegisterLeaseInput) (*leaseDomain.Lease, error)

	// Lookup returns a lease by id, including leases past expiry that were not yet revoked.
	Lookup(ctx context.Context, leaseID string) (*leaseDomain.Lease, error)

	// ListByMountPrefix returns every lease whose mount path starts with prefix.
	ListByMountPrefix(ctx context.Context, prefix string) ([]*leaseDomain.Lease, error)

	// Renew extends a renewable lease by increment, bounded by its max TTL. A zero increment
	// renews by the lease TTL.
	Renew(ctx context.Context, leaseID string, increment time.Duration) (*leaseDomain.Lease, error)

	// Revoke calls the engine revoker and removes the lease once it succeeds. On failure the
	// lease is kept with the attempt recorded.
	Revoke(ctx context.Context, leaseID string) error

	// RevokeByMountPrefix revokes every lease under prefix and returns how many were revoked.
	// Zero matches is a no-op.
	RevokeByMountPrefix(ctx context.Context, prefix string) (int, error)

	// RevokeByToken revokes every lease owned by the token and returns how many were revoked.
	RevokeByToken(ctx context.Context, tokenID uuid.UUID) (int, error)

	// ListExpired returns up to limit leases past expiry.
	ListExpired(ctx context.Context, limit int) ([]*leaseDomain.Lease, error)

	// RevokeExpired walks every lease expired at call time in batches of limit and revokes
	// each through Revoke. Leases that fail are stepped over, so the pass still reaches the
	// leases behind them; the failures are returned together.
	RevokeExpired(ctx context.Context, limit int) (int, error)
}
