package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	leaseDomain "github.com/allisson/covert/internal/lease/domain"
	"github.com/allisson/covert/internal/metrics"
)

// leaseUseCaseWithMetrics decorates LeaseUseCase with metrics instrumentation.
type leaseUseCaseWithMetrics struct {
	next    LeaseUseCase
	metrics metrics.BusinessMetrics
}

// NewLeaseUseCaseWithMetrics wraps a LeaseUseCase with metrics recording.
func NewLeaseUseCaseWithMetrics(useCase LeaseUseCase, m metrics.BusinessMetrics) LeaseUseCase {
	return &leaseUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (l *leaseUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	l.metrics.RecordOperation(ctx, "lease", operation, status)
	l.metrics.RecordDuration(ctx, "lease", operation, time.Since(start), status)
}

func (l *leaseUseCaseWithMetrics) Register(
	ctx context.Context,
	input *leaseDomain.RegisterLeaseInput,
) (*leaseDomain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Register(ctx, input)
	l.record(ctx, "lease_register", start, err)
	return lease, err
}

func (l *leaseUseCaseWithMetrics) Lookup(ctx context.Context, leaseID string) (*leaseDomain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Lookup(ctx, leaseID)
	l.record(ctx, "lease_lookup", start, err)
	return lease, err
}

func (l *leaseUseCaseWithMetrics) ListByMountPrefix(
	ctx context.Context,
	prefix string,
) ([]*leaseDomain.Lease, error) {
	start := time.Now()
	leases, err := l.next.ListByMountPrefix(ctx, prefix)
	l.record(ctx, "lease_list_by_mount", start, err)
	return leases, err
}

func (l *leaseUseCaseWithMetrics) Renew(
	ctx context.Context,
	leaseID string,
	increment time.Duration,
) (*leaseDomain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Renew(ctx, leaseID, increment)
	l.record(ctx, "lease_renew", start, err)
	return lease, err
}

func (l *leaseUseCaseWithMetrics) Revoke(ctx context.Context, leaseID string) error {
	start := time.Now()
	err := l.next.Revoke(ctx, leaseID)
	l.record(ctx, "lease_revoke", start, err)
	if err == nil {
		l.metrics.RecordLeasesRevoked(ctx, "lease", 1)
	}
	return err
}

func (l *leaseUseCaseWithMetrics) RevokeByMountPrefix(ctx context.Context, prefix string) (int, error) {
	start := time.Now()
	count, err := l.next.RevokeByMountPrefix(ctx, prefix)
	l.record(ctx, "lease_revoke_by_mount", start, err)
	l.metrics.RecordLeasesRevoked(ctx, "mount", count)
	return count, err
}

func (l *leaseUseCaseWithMetrics) RevokeByToken(ctx context.Context, tokenID uuid.UUID) (int, error) {
	start := time.Now()
	count, err := l.next.RevokeByToken(ctx, tokenID)
	l.record(ctx, "lease_revoke_by_token", start, err)
	l.metrics.RecordLeasesRevoked(ctx, "token", count)
	return count, err
}

func (l *leaseUseCaseWithMetrics) ListExpired(ctx context.Context, limit int) ([]*leaseDomain.Lease, error) {
	start := time.Now()
	leases, err := l.next.ListExpired(ctx, limit)
	l.record(ctx, "lease_list_expired", start, err)
	return leases, err
}

func (l *leaseUseCaseWithMetrics) RevokeExpired(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	count, err := l.next.RevokeExpired(ctx, limit)
	l.record(ctx, "lease_revoke_expired", start, err)
	l.metrics.RecordLeasesRevoked(ctx, "expiration", count)
	return count, err
}
