package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	identityDomain "github.com/allisson/covert/internal/identity/domain"
)

// MemoryEntityRepository keeps entities in process memory with name and alias indexes.
type MemoryEntityRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*identityDomain.Entity
	byName  map[string]uuid.UUID
	byAlias map[string]uuid.UUID
}

// Create stores a copy of a new entity.
func (m *MemoryEntityRepository) Create(ctx context.Context, entity *identityDomain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[entity.Name]; ok {
		return identityDomain.ErrEntityAlreadyExists
	}
	for _, alias := range entity.Aliases {
		if _, ok := m.byAlias[alias.Key()]; ok {
			return identityDomain.ErrAliasAlreadyBound
		}
	}

	m.byID[entity.ID] = entity.Clone()
	m.byName[entity.Name] = entity.ID
	for _, alias := range entity.Aliases {
		m.byAlias[alias.Key()] = entity.ID
	}
	return nil
}

// Update replaces the stored policies and aliases of the entity.
func (m *MemoryEntityRepository) Update(ctx context.Context, entity *identityDomain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[entity.ID]
	if !ok {
		return identityDomain.ErrEntityNotFound
	}

	for _, alias := range entity.Aliases {
		if owner, ok := m.byAlias[alias.Key()]; ok && owner != entity.ID {
			return identityDomain.ErrAliasAlreadyBound
		}
	}

	for _, alias := range current.Aliases {
		delete(m.byAlias, alias.Key())
	}
	for _, alias := range entity.Aliases {
		m.byAlias[alias.Key()] = entity.ID
	}

	m.byID[entity.ID] = entity.Clone()
	return nil
}

// Get returns a copy of the entity with the given ID.
func (m *MemoryEntityRepository) Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entity, ok := m.byID[entityID]
	if !ok {
		return nil, identityDomain.ErrEntityNotFound
	}
	return entity.Clone(), nil
}

// GetByName returns a copy of the entity with the given name.
func (m *MemoryEntityRepository) GetByName(ctx context.Context, name string) (*identityDomain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[name]
	if !ok {
		return nil, identityDomain.ErrEntityNotFound
	}
	return m.byID[id].Clone(), nil
}

// GetByAlias returns a copy of the entity the alias is bound to.
func (m *MemoryEntityRepository) GetByAlias(
	ctx context.Context,
	alias identityDomain.EntityAlias,
) (*identityDomain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAlias[alias.Key()]
	if !ok {
		return nil, identityDomain.ErrEntityNotFound
	}
	return m.byID[id].Clone(), nil
}

// NewMemoryEntityRepository creates an empty in-memory Entity repository.
func NewMemoryEntityRepository() *MemoryEntityRepository {
	return &MemoryEntityRepository{
		byID:    make(map[uuid.UUID]*identityDomain.Entity),
		byName:  make(map[string]uuid.UUID),
		byAlias: make(map[string]uuid.UUID),
	}
}
