// Package usecase implements business logic orchestration for policy operations.
package usecase

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/vault/sdk/helper/locksutil"

	apperrors "github.com/allisson/covert/internal/errors"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// policyUseCase implements PolicyUseCase with per-name serialization of writes.
type policyUseCase struct {
	policyRepo PolicyRepository
	locks      []*locksutil.LockEntry
}

// Upsert creates or replaces a policy. The creation timestamp of an existing policy is kept.
func (p *policyUseCase) Upsert(
	ctx context.Context,
	input *policyDomain.UpsertPolicyInput,
) (*policyDomain.Policy, error) {
	if input.Name == policyDomain.RootPolicyName {
		return nil, policyDomain.ErrRootPolicyImmutable
	}

	lock := locksutil.LockForKey(p.locks, input.Name)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	policy := &policyDomain.Policy{
		Name:      input.Name,
		Rules:     input.Rules,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := p.policyRepo.Get(ctx, input.Name)
	if err != nil && !apperrors.Is(err, policyDomain.ErrPolicyNotFound) {
		return nil, apperrors.Internal(err, "failed to get policy")
	}
	if existing != nil {
		policy.CreatedAt = existing.CreatedAt
	}

	if err := p.policyRepo.Upsert(ctx, policy); err != nil {
		return nil, apperrors.Internal(err, "failed to store policy")
	}

	return policy, nil
}

// Get retrieves a policy by name.
func (p *policyUseCase) Get(ctx context.Context, name string) (*policyDomain.Policy, error) {
	if name == policyDomain.RootPolicyName {
		return policyDomain.RootPolicy(), nil
	}

	policy, err := p.policyRepo.Get(ctx, name)
	if err != nil {
		if apperrors.Is(err, policyDomain.ErrPolicyNotFound) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to get policy")
	}

	return policy, nil
}

// List returns the root policy followed by all stored policies.
func (p *policyUseCase) List(ctx context.Context) ([]*policyDomain.Policy, error) {
	policies, err := p.policyRepo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list policies")
	}

	return append([]*policyDomain.Policy{policyDomain.RootPolicy()}, policies...), nil
}

// Delete removes a policy by name.
func (p *policyUseCase) Delete(ctx context.Context, name string) error {
	if name == policyDomain.RootPolicyName {
		return policyDomain.ErrRootPolicyImmutable
	}

	lock := locksutil.LockForKey(p.locks, name)
	lock.Lock()
	defer lock.Unlock()

	if err := p.policyRepo.Delete(ctx, name); err != nil {
		if apperrors.Is(err, policyDomain.ErrPolicyNotFound) {
			return err
		}
		return apperrors.Internal(err, "failed to delete policy")
	}

	return nil
}

// IsAllowed evaluates the named policies lazily and stops at the first grant.
func (p *policyUseCase) IsAllowed(
	ctx context.Context,
	names []string,
	path string,
	capability policyDomain.Capability,
) (bool, error) {
	seen := make([]string, 0, len(names))
	for _, name := range names {
		if slices.Contains(seen, name) {
			continue
		}
		seen = append(seen, name)

		policy, err := p.Get(ctx, name)
		if err != nil {
			if apperrors.Is(err, policyDomain.ErrPolicyNotFound) {
				continue
			}
			return false, err
		}

		if policy.Allows(path, capability) {
			return true, nil
		}
	}

	return false, nil
}

// NewPolicyUseCase creates a new PolicyUseCase with the provided dependencies.
func NewPolicyUseCase(policyRepo PolicyRepository) PolicyUseCase {
	return &policyUseCase{
		policyRepo: policyRepo,
		locks:      locksutil.CreateLocks(),
	}
}
