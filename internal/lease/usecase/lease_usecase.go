package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/vault/sdk/helper/locksutil"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/allisson/covert/internal/errors"
	leaseDomain "github.com/allisson/covert/internal/lease/domain"
	leaseService "github.com/allisson/covert/internal/lease/service"
	"github.com/allisson/covert/internal/validation"
)

// Config holds lease manager configuration.
type Config struct {
	DefaultTTL          time.Duration
	MaxTTL              time.Duration
	RevokeMaxRetries    int
	RevokeConcurrency   int
	RevokeRetryInterval time.Duration
}

const defaultRevokeRetryInterval = 100 * time.Millisecond

type leaseUseCase struct {
	config    Config
	leaseRepo LeaseRepository
	mounts    MountLookup
	revoker   leaseService.Revoker
	locks     []*locksutil.LockEntry
	logger    *slog.Logger
}

func (l *leaseUseCase) Register(
	ctx context.Context,
	input *leaseDomain.RegisterLeaseInput,
) (*leaseDomain.Lease, error) {
	if err := input.Validate(); err != nil {
		return nil, validation.WrapValidationError(err)
	}
	if err := l.checkMount(ctx, input.MountPath); err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = l.config.DefaultTTL
	}
	maxTTL := input.MaxTTL
	if maxTTL == 0 || (l.config.MaxTTL > 0 && maxTTL > l.config.MaxTTL) {
		maxTTL = l.config.MaxTTL
	}
	if maxTTL > 0 && ttl > maxTTL {
		ttl = maxTTL
	}

	now := time.Now().UTC()
	lease := &leaseDomain.Lease{
		ID:        leaseDomain.NewLeaseID(input.MountPath, input.SecretPath),
		MountPath: input.MountPath,
		TokenID:   input.TokenID,
		EntityID:  input.EntityID,
		TTL:       ttl,
		MaxTTL:    maxTTL,
		Renewable: input.Renewable,
		Metadata:  input.Metadata,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := l.leaseRepo.Create(ctx, lease); err != nil {
		if apperrors.Is(err, leaseDomain.ErrLeaseAlreadyExists) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to create lease")
	}

	// A disable that listed the mount's leases before this one was stored would miss it.
	if err := l.checkMount(ctx, input.MountPath); err != nil {
		if deleteErr := l.leaseRepo.Delete(ctx, lease.ID); deleteErr != nil &&
			!apperrors.Is(deleteErr, leaseDomain.ErrLeaseNotFound) {
			return nil, apperrors.Internal(deleteErr, "failed to discard lease")
		}
		return nil, err
	}

	return lease, nil
}

// checkMount requires mountPath to name an enabled mount.
func (l *leaseUseCase) checkMount(ctx context.Context, mountPath string) error {
	mount, err := l.mounts.Get(ctx, mountPath)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Wrapf(leaseDomain.ErrMountNotFound, "no mount at %q", mountPath)
		}
		return apperrors.Internal(err, "failed to get mount")
	}
	if mount.Path != mountPath {
		return apperrors.Wrapf(leaseDomain.ErrMountNotFound, "no mount at %q", mountPath)
	}
	return nil
}

func (l *leaseUseCase) Lookup(ctx context.Context, leaseID string) (*leaseDomain.Lease, error) {
	lease, err := l.leaseRepo.Get(ctx, leaseID)
	if err != nil {
		if apperrors.Is(err, leaseDomain.ErrLeaseNotFound) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to get lease")
	}
	return lease, nil
}

func (l *leaseUseCase) ListByMountPrefix(ctx context.Context, prefix string) ([]*leaseDomain.Lease, error) {
	leases, err := l.leaseRepo.ListByMountPrefix(ctx, prefix)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list leases")
	}
	return leases, nil
}

func (l *leaseUseCase) Renew(
	ctx context.Context,
	leaseID string,
	increment time.Duration,
) (*leaseDomain.Lease, error) {
	if increment < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "increment must not be negative")
	}

	lock := locksutil.LockForKey(l.locks, leaseID)
	lock.Lock()
	defer lock.Unlock()

	lease, err := l.Lookup(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !lease.Renewable {
		return nil, leaseDomain.ErrLeaseNotRenewable
	}
	if lease.IsExpired(now) {
		return nil, leaseDomain.ErrLeaseExpired
	}

	lease.Renew(now, increment)
	if err := l.leaseRepo.Update(ctx, lease); err != nil {
		if apperrors.Is(err, leaseDomain.ErrLeaseNotFound) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to renew lease")
	}

	return lease, nil
}

func (l *leaseUseCase) Revoke(ctx context.Context, leaseID string) error {
	lock := locksutil.LockForKey(l.locks, leaseID)
	lock.Lock()
	defer lock.Unlock()

	lease, err := l.Lookup(ctx, leaseID)
	if err != nil {
		return err
	}

	if revokeErr := l.revoker.Revoke(ctx, lease); revokeErr != nil {
		lease.RevokeAttempts++
		lease.LastRevokeError = revokeErr.Error()
		if err := l.leaseRepo.Update(ctx, lease); err != nil {
			l.logger.ErrorContext(ctx, "failed to record revoke attempt",
				slog.String("lease_id", leaseID),
				slog.Any("error", err),
			)
		}
		return apperrors.Internal(revokeErr, "failed to revoke lease")
	}

	if err := l.leaseRepo.Delete(ctx, leaseID); err != nil {
		if apperrors.Is(err, leaseDomain.ErrLeaseNotFound) {
			return nil
		}
		return apperrors.Internal(err, "failed to delete lease")
	}

	return nil
}

func (l *leaseUseCase) RevokeByMountPrefix(ctx context.Context, prefix string) (int, error) {
	leases, err := l.ListByMountPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return l.revokeAll(ctx, leases)
}

func (l *leaseUseCase) RevokeByToken(ctx context.Context, tokenID uuid.UUID) (int, error) {
	leases, err := l.leaseRepo.ListByToken(ctx, tokenID)
	if err != nil {
		return 0, apperrors.Internal(err, "failed to list token leases")
	}
	return l.revokeAll(ctx, leases)
}

func (l *leaseUseCase) ListExpired(ctx context.Context, limit int) ([]*leaseDomain.Lease, error) {
	leases, err := l.leaseRepo.ListExpired(ctx, time.Now().UTC(), nil, limit)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list expired leases")
	}
	return leases, nil
}

// RevokeExpired keeps a cursor on (expires_at, id) for the whole pass. Failed leases stay
// stored with their attempt recorded, and the cursor moves past them.
func (l *leaseUseCase) RevokeExpired(ctx context.Context, limit int) (int, error) {
	limit = max(limit, 1)
	now := time.Now().UTC()

	var (
		after    *leaseDomain.ExpiryCursor
		revoked  int
		failures []error
	)
	for {
		leases, err := l.leaseRepo.ListExpired(ctx, now, after, limit)
		if err != nil {
			failures = append(failures, apperrors.Internal(err, "failed to list expired leases"))
			break
		}

		count, err := l.revokeAll(ctx, leases)
		revoked += count
		if err != nil {
			failures = append(failures, err)
		}

		if len(leases) < limit || ctx.Err() != nil {
			break
		}
		after = leases[len(leases)-1].CursorAfter()
	}

	switch len(failures) {
	case 0:
		return revoked, nil
	case 1:
		return revoked, failures[0]
	default:
		return revoked, errors.Join(failures...)
	}
}

// revokeAll attempts every lease even when some fail. Each lease is retried with
// exponential backoff; a lease that is already gone counts as revoked.
func (l *leaseUseCase) revokeAll(ctx context.Context, leases []*leaseDomain.Lease) (int, error) {
	if len(leases) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		revoked  int
		failures []error
	)

	g := new(errgroup.Group)
	g.SetLimit(max(l.config.RevokeConcurrency, 1))

	for _, lease := range leases {
		g.Go(func() error {
			err := l.revokeWithRetry(ctx, lease.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", lease.ID, err))
				return nil
			}
			revoked++
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		l.logger.ErrorContext(ctx, "lease revocation sweep incomplete",
			slog.Int("revoked", revoked),
			slog.Int("failed", len(failures)),
		)
		return revoked, apperrors.Internal(
			errors.Join(failures...),
			fmt.Sprintf("failed to revoke %d of %d leases", len(failures), len(leases)),
		)
	}

	return revoked, nil
}

func (l *leaseUseCase) revokeWithRetry(ctx context.Context, leaseID string) error {
	interval := l.config.RevokeRetryInterval
	if interval <= 0 {
		interval = defaultRevokeRetryInterval
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = interval
	policy.MaxInterval = 20 * interval
	policy.MaxElapsedTime = 0

	retries := uint64(max(l.config.RevokeMaxRetries, 0))

	return backoff.Retry(func() error {
		err := l.Revoke(ctx, leaseID)
		if err == nil || apperrors.Is(err, leaseDomain.ErrLeaseNotFound) {
			return nil
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx))
}

// NewLeaseUseCase creates a new LeaseUseCase.
func NewLeaseUseCase(
	config Config,
	leaseRepo LeaseRepository,
	mounts MountLookup,
	revoker leaseService.Revoker,
	logger *slog.Logger,
) LeaseUseCase {
	return &leaseUseCase{
		config:    config,
		leaseRepo: leaseRepo,
		mounts:    mounts,
		revoker:   revoker,
		locks:     locksutil.CreateLocks(),
		logger:    logger,
	}
}
