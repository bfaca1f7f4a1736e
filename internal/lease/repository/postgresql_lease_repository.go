// Package repository implements lease persistence for PostgreSQL, MySQL and process memory.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	leaseDomain "github.com/allisson/covert/internal/lease/domain"
)

const leaseColumns = `id, mount_path, token_id, entity_id, ttl_seconds, max_ttl_seconds, renewable, metadata,
			  issued_at, expires_at, last_renewed_at, revoke_attempts, last_revoke_error`

// PostgreSQLLeaseRepository implements Lease persistence for PostgreSQL.
// TTLs are stored in whole seconds and metadata as JSONB.
type PostgreSQLLeaseRepository struct {
	db *sql.DB
}

func (p *PostgreSQLLeaseRepository) Create(ctx context.Context, lease *leaseDomain.Lease) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalLeaseMetadata(lease.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO leases (` + leaseColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = querier.ExecContext(
		ctx,
		query,
		lease.ID,
		lease.MountPath,
		nullUUID(lease.TokenID),
		nullUUID(lease.EntityID),
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

func (p *PostgreSQLLeaseRepository) Get(ctx context.Context, leaseID string) (*leaseDomain.Lease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE id = $1`

	lease, err := scanPostgreSQLLease(querier.QueryRowContext(ctx, query, leaseID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, leaseDomain.ErrLeaseNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get lease")
	}

	return lease, nil
}

// Update stores the fields renewal and revocation change.
func (p *PostgreSQLLeaseRepository) Update(ctx context.Context, lease *leaseDomain.Lease) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE leases SET expires_at = $1, last_renewed_at = $2, revoke_attempts = $3, last_revoke_error = $4
			  WHERE id = $5`

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

func (p *PostgreSQLLeaseRepository) Delete(ctx context.Context, leaseID string) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM leases WHERE id = $1`, leaseID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete lease")
	}

	return checkLeaseAffected(result)
}

func (p *PostgreSQLLeaseRepository) ListByMountPrefix(
	ctx context.Context,
	prefix string,
) ([]*leaseDomain.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE mount_path LIKE $1 ESCAPE '!' ORDER BY id ASC`
	return p.list(ctx, query, escapeLike(prefix)+"%")
}

func (p *PostgreSQLLeaseRepository) ListByToken(
	ctx context.Context,
	tokenID uuid.UUID,
) ([]*leaseDomain.Lease, error) {
	query := `SELECT ` + leaseColumns + ` FROM leases WHERE token_id = $1 ORDER BY id ASC`
	return p.list(ctx, query, tokenID)
}

func (p *PostgreSQLLeaseRepository) ListExpired(
	ctx context.Context,
	before time.Time,
	after *leaseDomain.ExpiryCursor,
	limit int,
) ([]*leaseDomain.Lease, error) {
	if after == nil {
		query := `SELECT ` + leaseColumns + ` FROM leases WHERE expires_at <= $1
				  ORDER BY expires_at ASC, id ASC LIMIT $2`
		return p.list(ctx, query, before, limit)
	}

	query := `SELECT ` + leaseColumns + ` FROM leases WHERE expires_at <= $1 AND (expires_at, id) > ($2, $3)
			  ORDER BY expires_at ASC, id ASC LIMIT $4`
	return p.list(ctx, query, before, after.ExpiresAt, after.ID, limit)
}

func (p *PostgreSQLLeaseRepository) list(ctx context.Context, query string, args ...any) ([]*leaseDomain.Lease, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list leases")
	}
	defer func() {
		_ = rows.Close()
	}()

	leases := make([]*leaseDomain.Lease, 0)
	for rows.Next() {
		lease, err := scanPostgreSQLLease(rows.Scan)
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

// NewPostgreSQLLeaseRepository creates a new PostgreSQL Lease repository.
func NewPostgreSQLLeaseRepository(db *sql.DB) *PostgreSQLLeaseRepository {
	return &PostgreSQLLeaseRepository{db: db}
}

func scanPostgreSQLLease(scan func(dest ...any) error) (*leaseDomain.Lease, error) {
	var (
		lease         leaseDomain.Lease
		tokenID       uuid.NullUUID
		entityID      uuid.NullUUID
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

	if tokenID.Valid {
		lease.TokenID = &tokenID.UUID
	}
	if entityID.Valid {
		lease.EntityID = &entityID.UUID
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

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func marshalLeaseMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal lease metadata")
	}
	return data, nil
}

func unmarshalLeaseMetadata(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal lease metadata")
	}
	return metadata, nil
}

// escapeLike escapes LIKE wildcards using '!' as the escape character.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func checkLeaseAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return leaseDomain.ErrLeaseNotFound
	}
	return nil
}
