package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	leaseDomain "github.com/allisson/covert/internal/lease/domain"
)

// MySQLLeaseRepository implements Lease persistence for MySQL.
// Token and entity ids are stored as BINARY(16).
type MySQLLeaseRepository struct {
	db *sql.DB
}

func (m *MySQLLeaseRepository) Create(ctx context.Context, lease *leaseDomain.Lease) error {
	querier := database.GetTx(ctx, m.db)

	tokenID, err := marshalBinaryUUID(lease.TokenID)
	if err != nil {
		return err
	}
	entityID, err := marshalBinaryUUID(lease.EntityID)
	if err != nil {
		return err
	}
	metadataJSON, err := marshalLeaseMetadata(lease.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO leases (` + leaseColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		lease.ID,
		lease.MountPath,
		tokenID,
		entityID,
		int64(lease.TTL/time.Second),
		int64(lease.MaxTTL/time.Second),
		lease.Renewable,
		metadataJSON,
		lease.IssuedAt,
		lease.ExpiresAt,
		lease.LastRenewedAt,
		lease.RevokeAttempts,
		lease.LastRevokeError,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return leaseDomain.ErrLeaseAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create lease")
	}

	return nil
}

func (m *MySQLLeaseRepository) Get(ctx context.Context, leaseID string) (*leaseDomain.Lease, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = ?`

	lease, err := scanMySQLLease(querier.QueryRowContext(ctx, query, leaseID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, leaseDomain.ErrLeaseNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get lease")
	}

	return lease, nil
}

func (m *MySQLLeaseRepository) Update(ctx context.Context, lease *leaseDomain.Lease) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE leases SET expires_at = ?, last_renewed_at = ?, revoke_attempts = ?, last_revoke_error = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		lease.ExpiresAt,
		lease.LastRenewedAt,
		lease.RevokeAttempts,
		lease.LastRevokeError,
		lease.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update lease")
	}

	return checkLeaseAffected(result)
}

func (m *MySQLLeaseRepository) Delete(ctx context.Context, leaseID string) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM leases WHERE id = ?`, leaseID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete lease")
	}

	return checkLeaseAffected(result)
}

func (m *MySQLLeaseRepository) ListByMountPrefix(
	ctx context.Context,
	prefix string,
) ([]*leaseDomain.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE mount_path LIKE ? ESCAPE '!' ORDER BY id ASC`
	return m.list(ctx, query, escapeLike(prefix)+"%")
}

func (m *MySQLLeaseRepository) ListByToken(
	ctx context.Context,
	tokenID uuid.UUID,
) ([]*leaseDomain.Lease, error) {
	id, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal token id")
	}

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE token_id = ? ORDER BY id ASC`
	return m.list(ctx, query, id)
}

func (m *MySQLLeaseRepository) ListExpired(
	ctx context.Context,
	before time.Time,
	after *leaseDomain.ExpiryCursor,
	limit int,
) ([]*leaseDomain.Lease, error) {
	if after == nil {
		query := `SELECT ` + leaseColumns + ` FROM leases WHERE expires_at <= ?
				  ORDER BY expires_at ASC, id ASC LIMIT ?`
		return m.list(ctx, query, before, limit)
	}

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE expires_at <= ? AND (expires_at, id) > (?, ?)
			  ORDER BY expires_at ASC, id ASC LIMIT ?`
	return m.list(ctx, query, before, after.ExpiresAt, after.ID, limit)
}

func (m *MySQLLeaseRepository) list(ctx context.Context, query string, args ...any) ([]*leaseDomain.Lease, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list leases")
	}
	defer func() {
		_ = rows.Close()
	}()

	leases := make([]*leaseDomain.Lease, 0)
	for rows.Next() {
		lease, err := scanMySQLLease(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan lease")
		}
		leases = append(leases, lease)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate leases")
	}

	return leases, nil
}

// NewMySQLLeaseRepository creates a new MySQL Lease repository.
func NewMySQLLeaseRepository(db *sql.DB) *MySQLLeaseRepository {
	return &MySQLLeaseRepository{db: db}
}

func scanMySQLLease(scan func(dest ...any) error) (*leaseDomain.Lease, error) {
	var (
		lease         leaseDomain.Lease
		tokenID       []byte
		entityID      []byte
		ttlSeconds    int64
		maxTTLSeconds int64
		metadataJSON  []byte
		lastRenewedAt sql.NullTime
	)

	err := scan(
		&lease.ID,
		&lease.MountPath,
		&tokenID,
		&entityID,
		&ttlSeconds,
		&maxTTLSeconds,
		&lease.Renewable,
		&metadataJSON,
		&lease.IssuedAt,
		&lease.ExpiresAt,
		&lastRenewedAt,
		&lease.RevokeAttempts,
		&lease.LastRevokeError,
	)
	if err != nil {
		return nil, err
	}

	if lease.TokenID, err = unmarshalBinaryUUID(tokenID); err != nil {
		return nil, err
	}
	if lease.EntityID, err = unmarshalBinaryUUID(entityID); err != nil {
		return nil, err
	}
	if lastRenewedAt.Valid {
		lease.LastRenewedAt = &lastRenewedAt.Time
	}
	lease.TTL = time.Duration(ttlSeconds) * time.Second
	lease.MaxTTL = time.Duration(maxTTLSeconds) * time.Second

	if lease.Metadata, err = unmarshalLeaseMetadata(metadataJSON); err != nil {
		return nil, err
	}

	return &lease, nil
}

func marshalBinaryUUID(id *uuid.UUID) ([]byte, error) {
	if id == nil {
		return nil, nil
	}
	data, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal uuid")
	}
	return data, nil
}

func unmarshalBinaryUUID(data []byte) (*uuid.UUID, error) {
	if len(data) == 0 {
		return nil, nil
	}
	id, err := uuid.FromBytes(data)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal uuid")
	}
	return &id, nil
}
