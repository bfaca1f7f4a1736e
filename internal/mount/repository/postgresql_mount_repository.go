// Package repository implements mount table persistence for PostgreSQL, MySQL and
// process memory.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
)

// PostgreSQLMountRepository implements Mount persistence for PostgreSQL.
// The mount config is stored as a JSONB document.
type PostgreSQLMountRepository struct {
	db *sql.DB
}

func (p *PostgreSQLMountRepository) Create(ctx context.Context, mount *mountDomain.Mount) error {
	querier := database.GetTx(ctx, p.db)

	configJSON, err := json.Marshal(mount.Config)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal mount config")
	}

	query := `INSERT INTO mounts (id, path, type, description, config, enabled, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = querier.ExecContext(
		ctx,
		query,
		mount.ID,
		mount.Path,
		mount.Type,
		mount.Description,
		configJSON,
		mount.Enabled,
		mount.CreatedAt,
		mount.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return mountDomain.ErrMountPathInUse
		}
		return apperrors.Wrap(err, "failed to create mount")
	}

	return nil
}

func (p *PostgreSQLMountRepository) Update(ctx context.Context, mount *mountDomain.Mount) error {
	querier := database.GetTx(ctx, p.db)

	configJSON, err := json.Marshal(mount.Config)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal mount config")
	}

	query := `UPDATE mounts SET type = $1, description = $2, config = $3, enabled = $4, updated_at = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(
		ctx,
		query,
		mount.Type,
		mount.Description,
		configJSON,
		mount.Enabled,
		mount.UpdatedAt,
		mount.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update mount")
	}

	return checkMountAffected(result)
}

func (p *PostgreSQLMountRepository) GetByPath(ctx context.Context, path string) (*mountDomain.Mount, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, path, type, description, config, enabled, created_at, updated_at
			  FROM mounts WHERE path = $1`

	var mount mountDomain.Mount
	var configJSON []byte

	err := querier.QueryRowContext(ctx, query, path).Scan(
		&mount.ID,
		&mount.Path,
		&mount.Type,
		&mount.Description,
		&configJSON,
		&mount.Enabled,
		&mount.CreatedAt,
		&mount.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mountDomain.ErrMountNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get mount")
	}

	if err := json.Unmarshal(configJSON, &mount.Config); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal mount config")
	}

	return &mount, nil
}

func (p *PostgreSQLMountRepository) List(ctx context.Context) ([]*mountDomain.Mount, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, path, type, description, config, enabled, created_at, updated_at
			  FROM mounts ORDER BY path ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list mounts")
	}
	defer func() {
		_ = rows.Close()
	}()

	mounts := make([]*mountDomain.Mount, 0)
	for rows.Next() {
		var mount mountDomain.Mount
		var configJSON []byte

		err := rows.Scan(
			&mount.ID,
			&mount.Path,
			&mount.Type,
			&mount.Description,
			&configJSON,
			&mount.Enabled,
			&mount.CreatedAt,
			&mount.UpdatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan mount")
		}
		if err := json.Unmarshal(configJSON, &mount.Config); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal mount config")
		}

		mounts = append(mounts, &mount)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate mounts")
	}

	return mounts, nil
}

// NewPostgreSQLMountRepository creates a new PostgreSQL Mount repository.
func NewPostgreSQLMountRepository(db *sql.DB) *PostgreSQLMountRepository {
	return &PostgreSQLMountRepository{db: db}
}

func checkMountAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return mountDomain.ErrMountNotFound
	}
	return nil
}
