package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	identityDomain "github.com/allisson/covert/internal/identity/domain"
	"github.com/allisson/covert/internal/metrics"
)

// identityUseCaseWithMetrics decorates IdentityUseCase with metrics instrumentation.
type identityUseCaseWithMetrics struct {
	next    IdentityUseCase
	metrics metrics.BusinessMetrics
}

// NewIdentityUseCaseWithMetrics wraps an IdentityUseCase with metrics recording.
func NewIdentityUseCaseWithMetrics(useCase IdentityUseCase, m metrics.BusinessMetrics) IdentityUseCase {
	return &identityUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (i *identityUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	i.metrics.RecordOperation(ctx, "identity", operation, status)
	i.metrics.RecordDuration(ctx, "identity", operation, time.Since(start), status)
}

// Create records metrics for entity creation.
func (i *identityUseCaseWithMetrics) Create(ctx context.Context, name string) (*identityDomain.Entity, error) {
	start := time.Now()
	entity, err := i.next.Create(ctx, name)
	i.record(ctx, "entity_create", start, err)
	return entity, err
}

// Get records metrics for entity retrieval.
func (i *identityUseCaseWithMetrics) Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error) {
	start := time.Now()
	entity, err := i.next.Get(ctx, entityID)
	i.record(ctx, "entity_get", start, err)
	return entity, err
}

// GetByName records metrics for entity retrieval by name.
func (i *identityUseCaseWithMetrics) GetByName(ctx context.Context, name string) (*identityDomain.Entity, error) {
	start := time.Now()
	entity, err := i.next.GetByName(ctx, name)
	i.record(ctx, "entity_get", start, err)
	return entity, err
}

func (i *identityUseCaseWithMetrics) AttachPolicies(
	ctx context.Context,
	name string,
	policyNames []string,
) ([]string, error) {
	start := time.Now()
	policies, err := i.next.AttachPolicies(ctx, name, policyNames)
	i.record(ctx, "entity_policy_attach", start, err)
	return policies, err
}

func (i *identityUseCaseWithMetrics) RemovePolicy(ctx context.Context, name string, policyName string) (string, error) {
	start := time.Now()
	removed, err := i.next.RemovePolicy(ctx, name, policyName)
	i.record(ctx, "entity_policy_remove", start, err)
	return removed, err
}

func (i *identityUseCaseWithMetrics) AttachAliases(
	ctx context.Context,
	name string,
	aliases []identityDomain.EntityAlias,
) ([]identityDomain.EntityAlias, error) {
	start := time.Now()
	result, err := i.next.AttachAliases(ctx, name, aliases)
	i.record(ctx, "entity_alias_attach", start, err)
	return result, err
}

func (i *identityUseCaseWithMetrics) RemoveAlias(
	ctx context.Context,
	name string,
	alias identityDomain.EntityAlias,
) (identityDomain.EntityAlias, error) {
	start := time.Now()
	removed, err := i.next.RemoveAlias(ctx, name, alias)
	i.record(ctx, "entity_alias_remove", start, err)
	return removed, err
}
