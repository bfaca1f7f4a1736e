// Package domain defines identity domain models: entities and the aliases that map
// external authentication identities onto them.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// EntityAlias maps an identity of an external authentication method onto an entity.
// The pair (MountPath, Name) is unique across the whole identity space.
type EntityAlias struct {
	Name      string `json:"name"`
	MountPath string `json:"mount_path"`
}

// Key returns the identity-space unique key of the alias.
func (a EntityAlias) Key() string {
	return a.MountPath + "\x00" + a.Name
}

// Entity is a logical identity that accumulates policies and aliases.
type Entity struct {
	ID        uuid.UUID
	Name      string
	Policies  []string
	Aliases   []EntityAlias
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddPolicies appends the names not yet attached and returns the resulting set.
func (e *Entity) AddPolicies(names ...string) []string {
	for _, name := range names {
		if !slices.Contains(e.Policies, name) {
			e.Policies = append(e.Policies, name)
		}
	}
	return e.Policies
}

// RemovePolicy removes name from the attached policies. Removing an absent name is a no-op.
func (e *Entity) RemovePolicy(name string) {
	e.Policies = slices.DeleteFunc(e.Policies, func(p string) bool { return p == name })
}

// HasAlias reports whether alias is attached to the entity.
func (e *Entity) HasAlias(alias EntityAlias) bool {
	return slices.Contains(e.Aliases, alias)
}

// AddAliases appends the aliases not yet attached and returns the resulting list.
func (e *Entity) AddAliases(aliases ...EntityAlias) []EntityAlias {
	for _, alias := range aliases {
		if !e.HasAlias(alias) {
			e.Aliases = append(e.Aliases, alias)
		}
	}
	return e.Aliases
}

// RemoveAlias removes alias from the entity. Removing an absent alias is a no-op.
func (e *Entity) RemoveAlias(alias EntityAlias) {
	e.Aliases = slices.DeleteFunc(e.Aliases, func(a EntityAlias) bool { return a == alias })
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	cloned := *e
	cloned.Policies = slices.Clone(e.Policies)
	cloned.Aliases = slices.Clone(e.Aliases)
	if cloned.Policies == nil {
		cloned.Policies = []string{}
	}
	if cloned.Aliases == nil {
		cloned.Aliases = []EntityAlias{}
	}
	return &cloned
}
