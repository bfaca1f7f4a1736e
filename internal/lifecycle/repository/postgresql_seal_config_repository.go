// Package repository implements seal configuration persistence for PostgreSQL, MySQL and
// process memory.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
)

// sealConfigID is the primary key of the single seal configuration row.
const sealConfigID = 1

// PostgreSQLSealConfigRepository implements SealConfig persistence for PostgreSQL.
type PostgreSQLSealConfigRepository struct {
	db *sql.DB
}

// Create inserts the seal configuration. A second insert hits the primary key and
// returns ErrAlreadyInitialized.
func (p *PostgreSQLSealConfigRepository) Create(ctx context.Context, sealConfig *lifecycleDomain.SealConfig) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO seal_config (id, secret_shares, secret_threshold, key_check, wrapped_root_key, kms_key_uri, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		sealConfigID,
		sealConfig.SecretShares,
		sealConfig.SecretThreshold,
		sealConfig.KeyCheck,
		sealConfig.WrappedRootKey,
		sealConfig.KMSKeyURI,
		sealConfig.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return lifecycleDomain.ErrAlreadyInitialized
		}
		return apperrors.Wrap(err, "failed to create seal config")
	}

	return nil
}

// Get retrieves the seal configuration. Returns ErrSealConfigNotFound before init.
func (p *PostgreSQLSealConfigRepository) Get(ctx context.Context) (*lifecycleDomain.SealConfig, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT secret_shares, secret_threshold, key_check, wrapped_root_key, kms_key_uri, created_at
			  FROM seal_config WHERE id = $1`

	return scanSealConfig(querier.QueryRowContext(ctx, query, sealConfigID))
}

// NewPostgreSQLSealConfigRepository creates a new PostgreSQL SealConfig repository.
func NewPostgreSQLSealConfigRepository(db *sql.DB) *PostgreSQLSealConfigRepository {
	return &PostgreSQLSealConfigRepository{db: db}
}

func scanSealConfig(row *sql.Row) (*lifecycleDomain.SealConfig, error) {
	var sealConfig lifecycleDomain.SealConfig

	err := row.Scan(
		&sealConfig.SecretShares,
		&sealConfig.SecretThreshold,
		&sealConfig.KeyCheck,
		&sealConfig.WrappedRootKey,
		&sealConfig.KMSKeyURI,
		&sealConfig.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lifecycleDomain.ErrSealConfigNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get seal config")
	}

	return &sealConfig, nil
}
