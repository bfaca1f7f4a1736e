package usecase

import (
	"context"
	"time"

	"github.com/allisson/covert/internal/metrics"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// policyUseCaseWithMetrics decorates PolicyUseCase with metrics instrumentation.
type policyUseCaseWithMetrics struct {
	next    PolicyUseCase
	metrics metrics.BusinessMetrics
}

// NewPolicyUseCaseWithMetrics wraps a PolicyUseCase with metrics recording.
func NewPolicyUseCaseWithMetrics(useCase PolicyUseCase, m metrics.BusinessMetrics) PolicyUseCase {
	return &policyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (p *policyUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	p.metrics.RecordOperation(ctx, "policy", operation, status)
	p.metrics.RecordDuration(ctx, "policy", operation, time.Since(start), status)
}

// Upsert records metrics for policy writes.
func (p *policyUseCaseWithMetrics) Upsert(
	ctx context.Context,
	input *policyDomain.UpsertPolicyInput,
) (*policyDomain.Policy, error) {
	start := time.Now()
	policy, err := p.next.Upsert(ctx, input)
	p.record(ctx, "policy_upsert", start, err)
	return policy, err
}

// Get records metrics for policy retrieval.
func (p *policyUseCaseWithMetrics) Get(ctx context.Context, name string) (*policyDomain.Policy, error) {
	start := time.Now()
	policy, err := p.next.Get(ctx, name)
	p.record(ctx, "policy_get", start, err)
	return policy, err
}

// List records metrics for policy listing.
func (p *policyUseCaseWithMetrics) List(ctx context.Context) ([]*policyDomain.Policy, error) {
	start := time.Now()
	policies, err := p.next.List(ctx)
	p.record(ctx, "policy_list", start, err)
	return policies, err
}

// Delete records metrics for policy deletion.
func (p *policyUseCaseWithMetrics) Delete(ctx context.Context, name string) error {
	start := time.Now()
	err := p.next.Delete(ctx, name)
	p.record(ctx, "policy_delete", start, err)
	return err
}

// IsAllowed records metrics for authorization checks.
func (p *policyUseCaseWithMetrics) IsAllowed(
	ctx context.Context,
	names []string,
	path string,
	capability policyDomain.Capability,
) (bool, error) {
	start := time.Now()
	allowed, err := p.next.IsAllowed(ctx, names, path, capability)
	p.record(ctx, "policy_check", start, err)
	return allowed, err
}
