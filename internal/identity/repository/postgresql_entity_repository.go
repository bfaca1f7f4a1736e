// Package repository implements entity persistence for PostgreSQL, MySQL and process memory.
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

// PostgreSQLEntityRepository implements Entity persistence for PostgreSQL.
// Policies are stored as JSONB on the entity row, aliases in entity_aliases
// whose primary key (mount_path, name) enforces uniqueness across entities.
type PostgreSQLEntityRepository struct {
	db *sql.DB
}

// Create inserts a new entity and its aliases.
func (p *PostgreSQLEntityRepository) Create(ctx context.Context, entity *identityDomain.Entity) error {
	querier := database.GetTx(ctx, p.db)

	policiesJSON, err := json.Marshal(entity.Policies)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal entity policies")
	}

	query := `INSERT INTO entities (id, name, policies, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err = querier.ExecContext(ctx, query, entity.ID, entity.Name, policiesJSON, entity.CreatedAt, entity.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return identityDomain.ErrEntityAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create entity")
	}

	return p.insertAliases(ctx, querier, entity)
}

// Update replaces the policies and aliases of the entity. Should run inside a transaction.
func (p *PostgreSQLEntityRepository) Update(ctx context.Context, entity *identityDomain.Entity) error {
	querier := database.GetTx(ctx, p.db)

	policiesJSON, err := json.Marshal(entity.Policies)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal entity policies")
	}

	result, err := querier.ExecContext(
		ctx,
		`UPDATE entities SET policies = $1, updated_at = $2 WHERE id = $3`,
		policiesJSON,
		entity.UpdatedAt,
		entity.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update entity")
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return identityDomain.ErrEntityNotFound
	}

	if _, err := querier.ExecContext(ctx, `DELETE FROM entity_aliases WHERE entity_id = $1`, entity.ID); err != nil {
		return apperrors.Wrap(err, "failed to delete entity aliases")
	}

	return p.insertAliases(ctx, querier, entity)
}

// Get retrieves an entity by ID.
func (p *PostgreSQLEntityRepository) Get(ctx context.Context, entityID uuid.UUID) (*identityDomain.Entity, error) {
	return p.getOne(
		ctx,
		`SELECT id, name, policies, created_at, updated_at FROM entities WHERE id = $1`,
		entityID,
	)
}

// GetByName retrieves an entity by name.
func (p *PostgreSQLEntityRepository) GetByName(ctx context.Context, name string) (*identityDomain.Entity, error) {
	return p.getOne(
		ctx,
		`SELECT id, name, policies, created_at, updated_at FROM entities WHERE name = $1`,
		name,
	)
}

// GetByAlias retrieves the entity the alias is bound to.
func (p *PostgreSQLEntityRepository) GetByAlias(
	ctx context.Context,
	alias identityDomain.EntityAlias,
) (*identityDomain.Entity, error) {
	return p.getOne(
		ctx,
		`SELECT e.id, e.name, e.policies, e.created_at, e.updated_at
		 FROM entities e JOIN entity_aliases a ON a.entity_id = e.id
		 WHERE a.mount_path = $1 AND a.name = $2`,
		alias.MountPath,
		alias.Name,
	)
}

func (p *PostgreSQLEntityRepository) getOne(
	ctx context.Context,
	query string,
	args ...any,
) (*identityDomain.Entity, error) {
	querier := database.GetTx(ctx, p.db)

	var entity identityDomain.Entity
	var policiesJSON []byte

	err := querier.QueryRowContext(ctx, query, args...).Scan(
		&entity.ID,
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

	if err := json.Unmarshal(policiesJSON, &entity.Policies); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal entity policies")
	}

	rows, err := querier.QueryContext(
		ctx,
		`SELECT mount_path, name FROM entity_aliases WHERE entity_id = $1 ORDER BY position ASC`,
		entity.ID,
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

func (p *PostgreSQLEntityRepository) insertAliases(
	ctx context.Context,
	querier database.Querier,
	entity *identityDomain.Entity,
) error {
	query := `INSERT INTO entity_aliases (mount_path, name, entity_id, position) VALUES ($1, $2, $3, $4)`

	for i, alias := range entity.Aliases {
		if _, err := querier.ExecContext(ctx, query, alias.MountPath, alias.Name, entity.ID, i); err != nil {
			if database.IsUniqueViolation(err) {
				return identityDomain.ErrAliasAlreadyBound
			}
			return apperrors.Wrap(err, "failed to create entity alias")
		}
	}

	return nil
}

// NewPostgreSQLEntityRepository creates a new PostgreSQL Entity repository.
func NewPostgreSQLEntityRepository(db *sql.DB) *PostgreSQLEntityRepository {
	return &PostgreSQLEntityRepository{db: db}
}

func scanAliases(rows *sql.Rows) ([]identityDomain.EntityAlias, error) {
	aliases := make([]identityDomain.EntityAlias, 0)
	for rows.Next() {
		var alias identityDomain.EntityAlias
		if err := rows.Scan(&alias.MountPath, &alias.Name); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan entity alias")
		}
		aliases = append(aliases, alias)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate entity aliases")
	}

	return aliases, nil
}

func normalizeEntity(entity *identityDomain.Entity) *identityDomain.Entity {
	if entity.Policies == nil {
		entity.Policies = []string{}
	}
	if entity.Aliases == nil {
		entity.Aliases = []identityDomain.EntityAlias{}
	}
	return entity
}
