package repository

import (
	"context"
	"slices"
	"sort"
	"sync"

	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// MemoryPolicyRepository keeps policies in process memory. Used by the memory driver.
type MemoryPolicyRepository struct {
	mu       sync.RWMutex
	policies map[string]*policyDomain.Policy
}

// Upsert stores a copy of the policy.
func (m *MemoryPolicyRepository) Upsert(ctx context.Context, policy *policyDomain.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.policies[policy.Name] = clonePolicy(policy)
	return nil
}

// Get returns a copy of the named policy.
func (m *MemoryPolicyRepository) Get(ctx context.Context, name string) (*policyDomain.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policy, ok := m.policies[name]
	if !ok {
		return nil, policyDomain.ErrPolicyNotFound
	}
	return clonePolicy(policy), nil
}

// List returns copies of all policies ordered by name.
func (m *MemoryPolicyRepository) List(ctx context.Context) ([]*policyDomain.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	policies := make([]*policyDomain.Policy, 0, len(m.policies))
	for _, policy := range m.policies {
		policies = append(policies, clonePolicy(policy))
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	return policies, nil
}

// Delete removes the named policy.
func (m *MemoryPolicyRepository) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[name]; !ok {
		return policyDomain.ErrPolicyNotFound
	}
	delete(m.policies, name)
	return nil
}

// NewMemoryPolicyRepository creates an empty in-memory Policy repository.
func NewMemoryPolicyRepository() *MemoryPolicyRepository {
	return &MemoryPolicyRepository{policies: make(map[string]*policyDomain.Policy)}
}

func clonePolicy(policy *policyDomain.Policy) *policyDomain.Policy {
	cloned := *policy
	cloned.Rules = make([]policyDomain.PolicyRule, len(policy.Rules))
	for i, rule := range policy.Rules {
		cloned.Rules[i] = policyDomain.PolicyRule{
			Path:         rule.Path,
			Capabilities: slices.Clone(rule.Capabilities),
		}
	}
	return &cloned
}
