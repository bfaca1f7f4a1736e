package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func createTestPolicy(rules ...PolicyRule) *Policy {
	return &Policy{Name: "test-policy", Rules: rules}
}

func TestPolicy_Allows(t *testing.T) {
	tests := []struct {
		name       string
		policy     *Policy
		path       string
		capability Capability
		expected   bool
	}{
		{
			name:       "Success_WildcardMatchesAnyPath",
			policy:     createTestPolicy(PolicyRule{Path: "*", Capabilities: []Capability{ReadCapability}}),
			path:       "sys/mounts",
			capability: ReadCapability,
			expected:   true,
		},
		{
			name:       "Failure_WildcardWithWrongCapability",
			policy:     createTestPolicy(PolicyRule{Path: "*", Capabilities: []Capability{ReadCapability}}),
			path:       "sys/mounts",
			capability: UpdateCapability,
			expected:   false,
		},
		{
			name: "Success_PrefixMatchesNestedPath",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/mounts/*", Capabilities: []Capability{CreateCapability}},
			),
			path:       "sys/mounts/team/kv/",
			capability: CreateCapability,
			expected:   true,
		},
		{
			name: "Failure_PrefixDoesNotMatchBarePrefix",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/mounts/*", Capabilities: []Capability{ReadCapability}},
			),
			path:       "sys/mounts",
			capability: ReadCapability,
			expected:   false,
		},
		{
			name: "Success_ExactMatch",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/policies", Capabilities: []Capability{ReadCapability}},
			),
			path:       "sys/policies",
			capability: ReadCapability,
			expected:   true,
		},
		{
			name: "Failure_ExactMatchIsCaseSensitive",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/policies", Capabilities: []Capability{ReadCapability}},
			),
			path:       "sys/Policies",
			capability: ReadCapability,
			expected:   false,
		},
		{
			name: "Success_MidPathWildcard",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/leases/*/abc", Capabilities: []Capability{UpdateCapability}},
			),
			path:       "sys/leases/revoke/abc",
			capability: UpdateCapability,
			expected:   true,
		},
		{
			name: "Failure_MidPathWildcardSegmentCount",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/leases/*/abc", Capabilities: []Capability{UpdateCapability}},
			),
			path:       "sys/leases/revoke/kv/abc",
			capability: UpdateCapability,
			expected:   false,
		},
		{
			name: "Success_MidPathWildcardWithTrailingWildcard",
			policy: createTestPolicy(
				PolicyRule{Path: "sys/leases/*/kv/*", Capabilities: []Capability{ReadCapability}},
			),
			path:       "sys/leases/lookup/kv/abc",
			capability: ReadCapability,
			expected:   true,
		},
		{
			name: "Failure_EmptyPath",
			policy: createTestPolicy(
				PolicyRule{Path: "*", Capabilities: []Capability{ReadCapability}},
			),
			path:       "",
			capability: ReadCapability,
			expected:   false,
		},
		{
			name:       "Failure_NoRules",
			policy:     createTestPolicy(),
			path:       "sys/mounts",
			capability: ReadCapability,
			expected:   false,
		},
		{
			name:       "Success_RootPolicyGrantsEverything",
			policy:     RootPolicy(),
			path:       "sys/entity/alias/alice",
			capability: DeleteCapability,
			expected:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.Allows(tt.path, tt.capability))
		})
	}
}

func TestIsValidCapability(t *testing.T) {
	assert.True(t, IsValidCapability(CreateCapability))
	assert.True(t, IsValidCapability(ListCapability))
	assert.False(t, IsValidCapability(Capability("sudo")))
}
