// Package domain defines policy domain models and the path/capability evaluation rules.
//
// Policies are named sets of path rules. Each rule grants a list of capabilities on a path
// pattern. Evaluation is allow-only: a request is permitted when at least one rule of at least
// one resolved policy matches the path and lists the capability.
package domain

import (
	"slices"
	"strings"
	"time"
)

// Capability defines the types of operations that can be granted on a path.
type Capability string

const (
	// CreateCapability allows creating data at a path.
	CreateCapability Capability = "create"

	// ReadCapability allows reading data at a path.
	ReadCapability Capability = "read"

	// UpdateCapability allows modifying data at a path. Revocations require it.
	UpdateCapability Capability = "update"

	// DeleteCapability allows removing data at a path.
	DeleteCapability Capability = "delete"

	// ListCapability allows enumerating entries under a path.
	ListCapability Capability = "list"
)

// RootPolicyName is the built-in policy that grants every capability on every path.
const RootPolicyName = "root"

// ValidCapabilities lists the capabilities accepted in policy rules.
var ValidCapabilities = []Capability{
	CreateCapability,
	ReadCapability,
	UpdateCapability,
	DeleteCapability,
	ListCapability,
}

// PolicyRule grants capabilities on a path pattern.
type PolicyRule struct {
	Path         string       `json:"path"`         // Path pattern (supports "*", "prefix/*" and mid-path "*")
	Capabilities []Capability `json:"capabilities"` // Capabilities granted on matching paths
}

// Policy is a named set of path rules. Tokens and entities reference policies by name only.
type Policy struct {
	Name      string
	Rules     []PolicyRule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RootPolicy returns the built-in root policy document.
func RootPolicy() *Policy {
	return &Policy{
		Name: RootPolicyName,
		Rules: []PolicyRule{
			{Path: "*", Capabilities: slices.Clone(ValidCapabilities)},
		},
	}
}

// IsValidCapability reports whether c is one of the known capabilities.
func IsValidCapability(c Capability) bool {
	return slices.Contains(ValidCapabilities, c)
}

// matchPath checks if the request path matches the rule path pattern.
// Supports three types of wildcards:
//  1. Full wildcard: "*" matches any path
//  2. Trailing wildcard: "prefix/*" matches any path starting with "prefix/" (greedy)
//  3. Mid-path wildcard: "sys/mounts/*/config" matches paths with * as single segment
//
// Examples:
//   - "sys/mounts/*" matches "sys/mounts/kv/" and "sys/mounts/team/kv/"
//   - "sys/leases/*/kv/*" matches "sys/leases/lookup/kv/abc"
func matchPath(rulePath, requestPath string) bool {
	if rulePath == "*" {
		return true
	}

	if !strings.Contains(rulePath, "*") {
		return rulePath == requestPath
	}

	if strings.HasSuffix(rulePath, "/*") {
		prefix := strings.TrimSuffix(rulePath, "/*")
		if strings.Contains(prefix, "*") {
			return matchPrefixSegments(prefix, requestPath)
		}
		return strings.HasPrefix(requestPath, prefix+"/")
	}

	ruleParts := strings.Split(rulePath, "/")
	requestParts := strings.Split(requestPath, "/")

	if len(ruleParts) != len(requestParts) {
		return false
	}

	for i := range ruleParts {
		if ruleParts[i] == "*" {
			continue
		}
		if ruleParts[i] != requestParts[i] {
			return false
		}
	}

	return true
}

// matchPrefixSegments matches a prefix containing single-segment wildcards against the
// leading segments of requestPath, requiring at least one more segment after the prefix.
func matchPrefixSegments(prefix, requestPath string) bool {
	prefixParts := strings.Split(prefix, "/")
	requestParts := strings.Split(requestPath, "/")

	if len(requestParts) <= len(prefixParts) {
		return false
	}

	for i := range prefixParts {
		if prefixParts[i] == "*" {
			continue
		}
		if prefixParts[i] != requestParts[i] {
			return false
		}
	}

	return true
}

// Allows reports whether any rule of the policy grants capability on path.
// Matching is case-sensitive. An empty path or capability never matches.
func (p *Policy) Allows(path string, capability Capability) bool {
	if path == "" || capability == "" {
		return false
	}

	for _, rule := range p.Rules {
		if matchPath(rule.Path, path) && slices.Contains(rule.Capabilities, capability) {
			return true
		}
	}

	return false
}

// UpsertPolicyInput contains the parameters for creating or replacing a policy.
type UpsertPolicyInput struct {
	Name  string
	Rules []PolicyRule
}
