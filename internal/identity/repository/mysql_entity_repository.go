package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	identityDomain "github.com/allisson/covert/internal/identity/domain"
)

// MySQLEntityRepository implements Entity persistence for MySQL.
// Uses BINARY(16) for UUIDs and a JSON column for policies.
type MySQLEntityRepository struct {
	db *sql.DB
}

// Create inserts a new entity and its aliases.
func (m *MySQLEntityRepository) Create(ctx context.Context, entity *identityDomain.Entity) error {
	querier := database.GetTx(ctx, m.db)

	id, err := entity.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal entity id")
	}

	policiesJSON, err := json.Marshal(entity.Policies)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal entity policies")
	}

	query := `INSERT INTO entities (id, name, policies, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, entity.Name, policiesJSON, entity.CreatedAt, entity.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return identityDomain.ErrEntityAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create entity")
	}

	return m.insertAliases(ctx, querier, id, entity.Aliases)
}

// Update replaces the policies and aliases of the entity. Should run inside a transaction.
func (m *MySQLEntityRepository) Update(ctx context.Context, entity *identityDomain.Entity) error {
	querier := database.GetTx(ctx, m.db)

	id, err := entity.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal entity id")
	}

	policiesJSON, err := json.Marshal(entity.Policies)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal entity policies")
	}

	_, err = querier.ExecContext(
		ctx,
		`UPDATE entities SET policies = ?, updated_at = ? WHERE id = ?`,
		policiesJSON,
		entity.UpdatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update entity")
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM entity_aliases WHERE entity_id = ?`, id); err != nil {
		return apperrors.Wrap(err, "failed to delete entity aliases")
	}

	return m.insertAliases(ctx, querier, id, entity.Aliases)
}

// Get retrieves an entity by ID.
func (m *MySQLEntityRepository) Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error) {
	id, err := entityID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal entity id")
	}

	return m.getOne(ctx, `SELECT id, name, policies, created_at, updated_at FROM entities WHERE id = ?`, id)
}

// GetByName retrieves an entity by name.
func (m *MySQLEntityRepository) GetByName(ctx context.Context, name string) (*identityDomain.Entity, error) {
	return m.getOne(ctx, `SELECT id, name, policies, created_at, updated_at FROM entities WHERE name = ?`, name)
}

// GetByAlias retrieves the entity the alias is bound to.
func (m *MySQLEntityRepository) GetByAlias(
	ctx context.Context,
	alias identityDomain.EntityAlias,
) (*identityDomain.Entity, error) {
	return m.getOne(
		ctx,
		`SELECT e.id, e.name, e.policies, e.created_at, e.updated_at
		 FROM entities e JOIN entity_aliases a ON a.entity_id = e.id
		 WHERE a.mount_path = ? AND a.name = ?`,
		alias.MountPath,
		alias.Name,
	)
}

func (m *MySQLEntityRepository) getOne(ctx context.Context, query string, args ...any) (*identityDomain.Entity, error) {
	querier := database.GetTx(ctx, m.db)

	var entity identityDomain.Entity
	var id []byte
	var policiesJSON []byte

	err := querier.QueryRowContext(ctx, query, args...).Scan(
		&id,
		&entity.Name,
		&policiesJSON,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identityDomain.ErrEntityNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get entity")
	}

	if entity.ID, err = uuid.FromBytes(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal entity id")
	}

	if err := json.Unmarshal(policiesJSON, &entity.Policies); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal entity policies")
	}

	rows, err := querier.QueryContext(
		ctx,
		`SELECT mount_path, name FROM entity_aliases WHERE entity_id = ? ORDER BY position ASC`,
		id,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list entity aliases")
	}
	defer func() {
		_ = rows.Close()
	}()

	entity.Aliases, err = scanAliases(rows)
	if err != nil {
		return nil, err
	}

	return normalizeEntity(&entity), nil
}

func (m *MySQLEntityRepository) insertAliases(
	ctx context.Context,
	querier database.Querier,
	entityID []byte,
	aliases []identityDomain.EntityAlias,
) error {
	query := `INSERT INTO entity_aliases (mount_path, name, entity_id, position) VALUES (?, ?, ?, ?)`

	for i, alias := range aliases {
		if _, err := querier.ExecContext(ctx, query, alias.MountPath, alias.Name, entityID, i); err != nil {
			if database.IsUniqueViolation(err) {
				return identityDomain.ErrAliasAlreadyBound
			}
			return apperrors.Wrap(err, "failed to create entity alias")
		}
	}

	return nil
}

// NewMySQLEntityRepository creates a new MySQL Entity repository.
func NewMySQLEntityRepository(db *sql.DB) *MySQLEntityRepository {
	return &MySQLEntityRepository{db: db}
}
