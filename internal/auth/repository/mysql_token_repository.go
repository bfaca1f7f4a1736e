package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
)

// MySQLTokenRepository implements Token persistence for MySQL using BINARY(16) UUIDs.
type MySQLTokenRepository struct {
	db *sql.DB
}

func marshalNullableUUID(id *uuid.UUID) ([]byte, error) {
	if id == nil {
		return nil, nil
	}
	return id.MarshalBinary()
}

func unmarshalNullableUUID(data []byte) (*uuid.UUID, error) {
	if data == nil {
		return nil, nil
	}
	id, err := uuid.FromBytes(data)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Create inserts a new token.
func (m *MySQLTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	querier := database.GetTx(ctx, m.db)

	id, err := token.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	entityID, err := marshalNullableUUID(token.EntityID)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token entity_id")
	}

	policiesJSON, err := json.Marshal(token.Policies)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token policies")
	}

	query := `INSERT INTO tokens (id, token_hash, entity_id, policies, expires_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, token.TokenHash, entityID, policiesJSON, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

// Get retrieves a token by ID.
func (m *MySQLTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*authDomain.Token, error) {
	id, err := tokenID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal token id")
	}

	return m.getOne(
		ctx,
		`SELECT id, token_hash, entity_id, policies, expires_at, created_at FROM tokens WHERE id = ?`,
		id,
	)
}

// GetByTokenHash retrieves a token by the hash of its plain value.
func (m *MySQLTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	return m.getOne(
		ctx,
		`SELECT id, token_hash, entity_id, policies, expires_at, created_at FROM tokens WHERE token_hash = ?`,
		tokenHash,
	)
}

func (m *MySQLTokenRepository) getOne(ctx context.Context, query string, arg any) (*authDomain.Token, error) {
	querier := database.GetTx(ctx, m.db)

	token, err := scanMySQLToken(querier.QueryRowContext(ctx, query, arg).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get token")
	}
	return token, nil
}

func scanMySQLToken(scan func(dest ...any) error) (*authDomain.Token, error) {
	var token authDomain.Token
	var id, entityID, policiesJSON []byte
	var expiresAt sql.NullTime

	if err := scan(
		&id,
		&token.TokenHash,
		&entityID,
		&policiesJSON,
		&expiresAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if token.ID, err = uuid.FromBytes(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token id")
	}
	if token.EntityID, err = unmarshalNullableUUID(entityID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token entity_id")
	}
	if err := json.Unmarshal(policiesJSON, &token.Policies); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token policies")
	}
	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}

	return &token, nil
}

// Delete removes a token by ID.
func (m *MySQLTokenRepository) Delete(ctx context.Context, tokenID uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	id, err := tokenID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete token")
	}
	return checkTokenAffected(result)
}

// ListExpired returns tokens that expired before expiredBefore, oldest expiry first.
func (m *MySQLTokenRepository) ListExpired(ctx context.Context, expiredBefore time.Time) ([]*authDomain.Token, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, token_hash, entity_id, policies, expires_at, created_at FROM tokens
			  WHERE expires_at IS NOT NULL AND expires_at < ? ORDER BY expires_at ASC`

	rows, err := querier.QueryContext(ctx, query, expiredBefore)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired tokens")
	}
	defer func() {
		_ = rows.Close()
	}()

	tokens := make([]*authDomain.Token, 0)
	for rows.Next() {
		token, err := scanMySQLToken(rows.Scan)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan token")
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate tokens")
	}

	return tokens, nil
}

// NewMySQLTokenRepository creates a new MySQL Token repository.
func NewMySQLTokenRepository(db *sql.DB) *MySQLTokenRepository {
	return &MySQLTokenRepository{db: db}
}
