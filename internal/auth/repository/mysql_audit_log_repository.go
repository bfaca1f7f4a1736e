package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
)

// MySQLAuditLogRepository implements AuditLog persistence for MySQL using BINARY(16) UUIDs.
type MySQLAuditLogRepository struct {
	db *sql.DB
}

// Create inserts a new audit log. Nil metadata is stored as NULL.
func (m *MySQLAuditLogRepository) Create(ctx context.Context, auditLog *authDomain.AuditLog) error {
	querier := database.GetTx(ctx, m.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	id, err := auditLog.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log id")
	}

	tokenID, err := auditLog.TokenID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log token_id")
	}

	entityID, err := marshalNullableUUID(auditLog.EntityID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log entity_id")
	}

	query := `INSERT INTO audit_logs (id, request_id, token_id, entity_id, operation, capability, path,
			  allowed, metadata, signature, is_signed, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		auditLog.RequestID,
		tokenID,
		entityID,
		auditLog.Operation,
		auditLog.Capability,
		auditLog.Path,
		auditLog.Allowed,
		metadataJSON,
		auditLog.Signature,
		auditLog.IsSigned,
		auditLog.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}

	return nil
}

// List retrieves audit logs newest first with pagination and optional inclusive time filters.
func (m *MySQLAuditLogRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*authDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	var conditions []string
	var args []any

	if createdAtFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *createdAtFrom)
	}
	if createdAtTo != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *createdAtTo)
	}

	query := `SELECT id, request_id, token_id, entity_id, operation, capability, path, allowed,
			  metadata, signature, is_signed, created_at
			  FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	auditLogs := make([]*authDomain.AuditLog, 0)
	for rows.Next() {
		var auditLog authDomain.AuditLog
		var id, tokenID, entityID, metadataJSON []byte

		err := rows.Scan(
			&id,
			&auditLog.RequestID,
			&tokenID,
			&entityID,
			&auditLog.Operation,
			&auditLog.Capability,
			&auditLog.Path,
			&auditLog.Allowed,
			&metadataJSON,
			&auditLog.Signature,
			&auditLog.IsSigned,
			&auditLog.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}

		if auditLog.ID, err = uuid.FromBytes(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log id")
		}
		if auditLog.TokenID, err = uuid.FromBytes(tokenID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log token_id")
		}
		if auditLog.EntityID, err = unmarshalNullableUUID(entityID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log entity_id")
		}
		if err := unmarshalMetadata(metadataJSON, &auditLog); err != nil {
			return nil, err
		}

		auditLogs = append(auditLogs, &auditLog)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}

	return auditLogs, nil
}

// DeleteOlderThan removes, or with dryRun counts, audit logs created before olderThan.
func (m *MySQLAuditLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE created_at < ?`, olderThan).
			Scan(&count)
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit logs")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows count")
	}
	return count, nil
}

// NewMySQLAuditLogRepository creates a new MySQL AuditLog repository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}
