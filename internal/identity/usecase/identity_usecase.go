// Package usecase implements business logic orchestration for identity operations.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/vault/sdk/helper/locksutil"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	identityDomain "github.com/allisson/covert/internal/identity/domain"
)

// identityUseCase implements IdentityUseCase. Writes are serialized per entity name and,
// for alias attachment, per alias key.
type identityUseCase struct {
	txManager  database.TxManager
	entityRepo EntityRepository
	locks      []*locksutil.LockEntry
}

func entityLockKey(name string) string {
	return "entity/" + name
}

func aliasLockKey(alias identityDomain.EntityAlias) string {
	return "alias/" + alias.Key()
}

// lockKeys acquires the write locks for keys in the canonical order and returns the release func.
func (i *identityUseCase) lockKeys(keys ...string) func() {
	entries := locksutil.LocksForKeys(i.locks, keys)
	for _, entry := range entries {
		entry.Lock()
	}
	return func() {
		for j := len(entries) - 1; j >= 0; j-- {
			entries[j].Unlock()
		}
	}
}

// Create allocates a new entity with a UUIDv7 identifier.
func (i *identityUseCase) Create(ctx context.Context, name string) (*identityDomain.Entity, error) {
	unlock := i.lockKeys(entityLockKey(name))
	defer unlock()

	_, err := i.entityRepo.GetByName(ctx, name)
	if err == nil {
		return nil, identityDomain.ErrEntityAlreadyExists
	}
	if !apperrors.Is(err, identityDomain.ErrEntityNotFound) {
		return nil, apperrors.Internal(err, "failed to get entity")
	}

	now := time.Now().UTC()
	entity := &identityDomain.Entity{
		ID:        uuid.Must(uuid.NewV7()),
		Name:      name,
		Policies:  []string{},
		Aliases:   []identityDomain.EntityAlias{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := i.entityRepo.Create(ctx, entity); err != nil {
		if apperrors.Is(err, identityDomain.ErrEntityAlreadyExists) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to create entity")
	}

	return entity, nil
}

// Get retrieves an entity by ID.
func (i *identityUseCase) Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error) {
	entity, err := i.entityRepo.Get(ctx, entityID)
	if err != nil {
		return nil, i.wrapLookupError(err)
	}
	return entity, nil
}

// GetByName retrieves an entity by name.
func (i *identityUseCase) GetByName(ctx context.Context, name string) (*identityDomain.Entity, error) {
	entity, err := i.entityRepo.GetByName(ctx, name)
	if err != nil {
		return nil, i.wrapLookupError(err)
	}
	return entity, nil
}

// AttachPolicies adds policy names to the entity.
func (i *identityUseCase) AttachPolicies(
	ctx context.Context,
	name string,
	policyNames []string,
) ([]string, error) {
	unlock := i.lockKeys(entityLockKey(name))
	defer unlock()

	entity, err := i.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	before := len(entity.Policies)
	policies := entity.AddPolicies(policyNames...)
	if len(policies) == before {
		return policies, nil
	}

	if err := i.save(ctx, entity); err != nil {
		return nil, err
	}

	return policies, nil
}

// RemovePolicy removes a policy name from the entity.
func (i *identityUseCase) RemovePolicy(ctx context.Context, name string, policyName string) (string, error) {
	unlock := i.lockKeys(entityLockKey(name))
	defer unlock()

	entity, err := i.GetByName(ctx, name)
	if err != nil {
		return "", err
	}

	before := len(entity.Policies)
	entity.RemovePolicy(policyName)
	if len(entity.Policies) == before {
		return policyName, nil
	}

	if err := i.save(ctx, entity); err != nil {
		return "", err
	}

	return policyName, nil
}

// AttachAliases binds aliases to the entity. Every alias is checked before anything is written.
func (i *identityUseCase) AttachAliases(
	ctx context.Context,
	name string,
	aliases []identityDomain.EntityAlias,
) ([]identityDomain.EntityAlias, error) {
	keys := make([]string, 0, len(aliases)+1)
	keys = append(keys, entityLockKey(name))
	for _, alias := range aliases {
		keys = append(keys, aliasLockKey(alias))
	}
	unlock := i.lockKeys(keys...)
	defer unlock()

	entity, err := i.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	for _, alias := range aliases {
		owner, err := i.entityRepo.GetByAlias(ctx, alias)
		if err != nil {
			if apperrors.Is(err, identityDomain.ErrEntityNotFound) {
				continue
			}
			return nil, apperrors.Internal(err, "failed to get alias owner")
		}
		if owner.ID != entity.ID {
			return nil, identityDomain.ErrAliasAlreadyBound
		}
	}

	before := len(entity.Aliases)
	result := entity.AddAliases(aliases...)
	if len(result) == before {
		return result, nil
	}

	if err := i.save(ctx, entity); err != nil {
		return nil, err
	}

	return result, nil
}

// RemoveAlias unbinds an alias from the entity.
func (i *identityUseCase) RemoveAlias(
	ctx context.Context,
	name string,
	alias identityDomain.EntityAlias,
) (identityDomain.EntityAlias, error) {
	unlock := i.lockKeys(entityLockKey(name), aliasLockKey(alias))
	defer unlock()

	entity, err := i.GetByName(ctx, name)
	if err != nil {
		return identityDomain.EntityAlias{}, err
	}

	if !entity.HasAlias(alias) {
		return alias, nil
	}

	entity.RemoveAlias(alias)
	if err := i.save(ctx, entity); err != nil {
		return identityDomain.EntityAlias{}, err
	}

	return alias, nil
}

// save persists the entity inside a transaction so policies and aliases change together.
func (i *identityUseCase) save(ctx context.Context, entity *identityDomain.Entity) error {
	entity.UpdatedAt = time.Now().UTC()

	err := i.txManager.WithTx(ctx, func(ctx context.Context) error {
		return i.entityRepo.Update(ctx, entity)
	})
	if err != nil {
		if apperrors.Is(err, identityDomain.ErrAliasAlreadyBound) {
			return err
		}
		return apperrors.Internal(err, "failed to update entity")
	}

	return nil
}

func (i *identityUseCase) wrapLookupError(err error) error {
	if apperrors.Is(err, identityDomain.ErrEntityNotFound) {
		return err
	}
	return apperrors.Internal(err, "failed to get entity")
}

// NewIdentityUseCase creates a new IdentityUseCase with the provided dependencies.
func NewIdentityUseCase(txManager database.TxManager, entityRepo EntityRepository) IdentityUseCase {
	return &identityUseCase{
		txManager:  txManager,
		entityRepo: entityRepo,
		locks:      locksutil.CreateLocks(),
	}
}
