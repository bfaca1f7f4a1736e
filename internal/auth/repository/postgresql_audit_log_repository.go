package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
)

// PostgreSQLAuditLogRepository implements AuditLog persistence for PostgreSQL.
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit log metadata")
	}
	return data, nil
}

func unmarshalMetadata(data []byte, auditLog *authDomain.AuditLog) error {
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, &auditLog.Metadata); err != nil {
		return apperrors.Wrap(err, "failed to unmarshal audit log metadata")
	}
	return nil
}

// Create inserts a new audit log. Nil metadata is stored as NULL.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, auditLog *authDomain.AuditLog) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(auditLog.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO audit_logs (id, request_id, token_id, entity_id, operation, capability, path,
			  allowed, metadata, signature, is_signed, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = querier.ExecContext(
		ctx,
		query,
		auditLog.ID,
		auditLog.RequestID,
		auditLog.TokenID,
		auditLog.EntityID,
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
func (p *PostgreSQLAuditLogRepository) List(
	ctx context.Context,
	offset, limit int,
	createdAtFrom, createdAtTo *time.Time,
) ([]*authDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	var conditions []string
	var args []any

	if createdAtFrom != nil {
		args = append(args, *createdAtFrom)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if createdAtTo != nil {
		args = append(args, *createdAtTo)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT id, request_id, token_id, entity_id, operation, capability, path, allowed,
			  metadata, signature, is_signed, created_at
			  FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

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
		var entityID uuid.NullUUID
		var metadataJSON []byte

		err := rows.Scan(
			&auditLog.ID,
			&auditLog.RequestID,
			&auditLog.TokenID,
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

		if entityID.Valid {
			auditLog.EntityID = &entityID.UUID
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
func (p *PostgreSQLAuditLogRepository) DeleteOlderThan(
	ctx context.Context,
	olderThan time.Time,
	dryRun bool,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		err := querier.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE created_at < $1`, olderThan).
			Scan(&count)
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit logs")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows count")
	}
	return count, nil
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQL AuditLog repository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}
