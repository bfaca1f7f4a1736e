// Package usecase defines business logic interfaces for policy administration and evaluation.
package usecase

import (
	"context"

	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// PolicyRepository defines persistence operations for policies.
type PolicyRepository interface {
	// Upsert stores the policy, replacing any policy with the same name.
	Upsert(ctx context.Context, policy *policyDomain.Policy) error

	// Get retrieves a policy by name. Returns ErrPolicyNotFound if not found.
	Get(ctx context.Context, name string) (*policyDomain.Policy, error)

	// List returns all stored policies ordered by name.
	List(ctx context.Context) ([]*policyDomain.Policy, error)

	// Delete removes a policy by name. Returns ErrPolicyNotFound if not found.
	Delete(ctx context.Context, name string) error
}

// PolicyUseCase defines policy administration and the authorization check used by the router.
type PolicyUseCase interface {
	// Upsert creates the policy or replaces the rules of an existing one.
	// Writing the built-in root policy fails with ErrRootPolicyImmutable.
	Upsert(ctx context.Context, input *policyDomain.UpsertPolicyInput) (*policyDomain.Policy, error)

	// Get retrieves a policy by name, including the built-in root policy.
	Get(ctx context.Context, name string) (*policyDomain.Policy, error)

	// List returns every policy, the built-in root policy first.
	List(ctx context.Context) ([]*policyDomain.Policy, error)

	// Delete removes a policy by name. References held by tokens and entities are left dangling.
	Delete(ctx context.Context, name string) error

	// IsAllowed resolves the named policies and reports whether any of them grants capability
	// on path. Names that do not resolve grant nothing.
	IsAllowed(ctx context.Context, names []string, path string, capability policyDomain.Capability) (bool, error)
}
