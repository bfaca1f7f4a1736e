package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	mountDomain "github.com/allisson/covert/internal/mount/domain"
)

// MySQLMountRepository implements Mount persistence for MySQL.
// IDs are stored as BINARY(16) and the config as a JSON column.
type MySQLMountRepository struct {
	db *sql.DB
}

func (m *MySQLMountRepository) Create(ctx context.Context, mount *mountDomain.Mount) error {
	querier := database.GetTx(ctx, m.db)

	id, err := mount.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal mount id")
	}

	configJSON, err := json.Marshal(mount.Config)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal mount config")
	}

	query := `INSERT INTO mounts (id, path, type, description, config, enabled, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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

func (m *MySQLMountRepository) Update(ctx context.Context, mount *mountDomain.Mount) error {
	querier := database.GetTx(ctx, m.db)

	id, err := mount.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal mount id")
	}

	configJSON, err := json.Marshal(mount.Config)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal mount config")
	}

	query := `UPDATE mounts SET type = ?, description = ?, config = ?, enabled = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		mount.Type,
		mount.Description,
		configJSON,
		mount.Enabled,
		mount.UpdatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update mount")
	}

	return checkMountAffected(result)
}

func (m *MySQLMountRepository) GetByPath(ctx context.Context, path string) (*mountDomain.Mount, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, path, type, description, config, enabled, created_at, updated_at
			  FROM mounts WHERE path = ?`

	mount, err := scanMySQLMount(querier.QueryRowContext(ctx, query, path).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, mountDomain.ErrMountNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get mount")
	}

	return mount, nil
}

func (m *MySQLMountRepository) List(ctx context.Context) ([]*mountDomain.Mount, error) {
	querier := database.GetTx(ctx, m.db)

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
		mount, err := scanMySQLMount(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan mount")
		}
		mounts = append(mounts, mount)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate mounts")
	}

	return mounts, nil
}

// NewMySQLMountRepository creates a new MySQL Mount repository.
func NewMySQLMountRepository(db *sql.DB) *MySQLMountRepository {
	return &MySQLMountRepository{db: db}
}

func scanMySQLMount(scan func(dest ...any) error) (*mountDomain.Mount, error) {
	var mount mountDomain.Mount
	var id []byte
	var configJSON []byte

	err := scan(
		&id,
		&mount.Path,
		&mount.Type,
		&mount.Description,
		&configJSON,
		&mount.Enabled,
		&mount.CreatedAt,
		&mount.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mount.ID, err = uuid.FromBytes(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal mount id")
	}
	if err := json.Unmarshal(configJSON, &mount.Config); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal mount config")
	}

	return &mount, nil
}
