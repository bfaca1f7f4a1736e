package repository

import (
	"context"
	"database/sql"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
)

// MySQLSealConfigRepository implements SealConfig persistence for MySQL.
type MySQLSealConfigRepository struct {
	db *sql.DB
}

// Create inserts the seal configuration. Returns ErrAlreadyInitialized if one exists.
func (m *MySQLSealConfigRepository) Create(ctx context.Context, sealConfig *lifecycleDomain.SealConfig) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO seal_config (id, secret_shares, secret_threshold, key_check, wrapped_root_key, kms_key_uri, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

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
func (m *MySQLSealConfigRepository) Get(ctx context.Context) (*lifecycleDomain.SealConfig, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT secret_shares, secret_threshold, key_check, wrapped_root_key, kms_key_uri, created_at
			  FROM seal_config WHERE id = ?`

	return scanSealConfig(querier.QueryRowContext(ctx, query, sealConfigID))
}

// NewMySQLSealConfigRepository creates a new MySQL SealConfig repository.
func NewMySQLSealConfigRepository(db *sql.DB) *MySQLSealConfigRepository {
	return &MySQLSealConfigRepository{db: db}
}
