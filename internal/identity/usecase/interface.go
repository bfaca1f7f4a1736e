// Package usecase defines business logic interfaces for identity operations.
package usecase

import (
	"context"

	"github.com/google/uuid"

	identityDomain "github.com/allisson/covert/internal/identity/domain"
)

// EntityRepository defines persistence operations for entities and their aliases.
// Implementations must support transaction-aware operations via context propagation.
type EntityRepository interface {
	// Create stores a new entity. Returns ErrEntityAlreadyExists on a name collision.
	Create(ctx context.Context, entity *identityDomain.Entity) error

	// Update replaces the policies and aliases of an existing entity.
	// Returns ErrAliasAlreadyBound when an alias is held by another entity.
	Update(ctx context.Context, entity *identityDomain.Entity) error

	// Get retrieves an entity by ID. Returns ErrEntityNotFound if not found.
	Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error)

	// GetByName retrieves an entity by name. Returns ErrEntityNotFound if not found.
	GetByName(ctx context.Context, name string) (*identityDomain.Entity, error)

	// GetByAlias retrieves the entity an alias is bound to. Returns ErrEntityNotFound if unbound.
	GetByAlias(ctx context.Context, alias identityDomain.EntityAlias) (*identityDomain.Entity, error)
}

// IdentityUseCase defines entity administration. Entities are addressed by name.
type IdentityUseCase interface {
	// Create allocates a new entity. Fails with ErrEntityAlreadyExists on a name collision.
	Create(ctx context.Context, name string) (*identityDomain.Entity, error)

	// Get retrieves an entity by ID.
	Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error)

	// GetByName retrieves an entity by name.
	GetByName(ctx context.Context, name string) (*identityDomain.Entity, error)

	// AttachPolicies adds policy names to the entity without duplicates and returns the
	// resulting set. Unknown policy names are accepted.
	AttachPolicies(ctx context.Context, name string, policyNames []string) ([]string, error)

	// RemovePolicy removes a policy name from the entity and echoes it. Absent names are a no-op.
	RemovePolicy(ctx context.Context, name string, policyName string) (string, error)

	// AttachAliases binds aliases to the entity without duplicates and returns the resulting
	// list. An alias bound to a different entity fails with ErrAliasAlreadyBound and nothing
	// is attached.
	AttachAliases(
		ctx context.Context,
		name string,
		aliases []identityDomain.EntityAlias,
	) ([]identityDomain.EntityAlias, error)

	// RemoveAlias unbinds an alias from the entity and echoes it. Absent aliases are a no-op.
	RemoveAlias(
		ctx context.Context,
		name string,
		alias identityDomain.EntityAlias,
	) (identityDomain.EntityAlias, error)
}
