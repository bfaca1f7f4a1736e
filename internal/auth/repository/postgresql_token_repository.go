// Package repository implements token and audit log persistence for PostgreSQL, MySQL
// and process memory.
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

// PostgreSQLTokenRepository implements Token persistence for PostgreSQL.
type PostgreSQLTokenRepository struct {
	db *sql.DB
}

// Create inserts a new token.
func (p *PostgreSQLTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	querier := database.GetTx(ctx, p.db)

	policiesJSON, err := json.Marshal(token.Policies)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token policies")
	}

	query := `INSERT INTO tokens (id, token_hash, entity_id, policies, expires_at, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = querier.ExecContext(
		ctx,
		query,
		token.ID,
		token.TokenHash,
		token.EntityID,
		policiesJSON,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

// Get retrieves a token by ID.
func (p *PostgreSQLTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*authDomain.Token, error) {
	return p.getOne(
		ctx,
		`SELECT id, token_hash, entity_id, policies, expires_at, created_at FROM tokens WHERE id = $1`,
		tokenID,
	)
}

// GetByTokenHash retrieves a token by the hash of its plain value.
func (p *PostgreSQLTokenRepository) GetByTokenHash(
	ctx context.Context,
	tokenHash string,
) (*authDomain.Token, error) {
	return p.getOne(
		ctx,
		`SELECT id, token_hash, entity_id, policies, expires_at, created_at FROM tokens WHERE token_hash = $1`,
		tokenHash,
	)
}

func (p *PostgreSQLTokenRepository) getOne(ctx context.Context, query string, arg any) (*authDomain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	token, err := scanPostgreSQLToken(querier.QueryRowContext(ctx, query, arg).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrTokenNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get token")
	}
	return token, nil
}

func scanPostgreSQLToken(scan func(dest ...any) error) (*authDomain.Token, error) {
	var token authDomain.Token
	var entityID uuid.NullUUID
	var expiresAt sql.NullTime
	var policiesJSON []byte

	if err := scan(
		&token.ID,
		&token.TokenHash,
		&entityID,
		&policiesJSON,
		&expiresAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(policiesJSON, &token.Policies); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token policies")
	}
	if entityID.Valid {
		token.EntityID = &entityID.UUID
	}
	if expiresAt.Valid {
		token.ExpiresAt = &expiresAt.Time
	}

	return &token, nil
}

// Delete removes a token by ID.
func (p *PostgreSQLTokenRepository) Delete(ctx context.Context, tokenID uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM tokens WHERE id = $1`, tokenID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete token")
	}
	return checkTokenAffected(result)
}

// ListExpired returns tokens that expired before expiredBefore, oldest expiry first.
func (p *PostgreSQLTokenRepository) ListExpired(
	ctx context.Context,
	expiredBefore time.Time,
) ([]*authDomain.Token, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, token_hash, entity_id, policies, expires_at, created_at FROM tokens
			  WHERE expires_at IS NOT NULL AND expires_at < $1 ORDER BY expires_at ASC`

	rows, err := querier.QueryContext(ctx, query, expiredBefore)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list expired tokens")
	}
	defer func() {
		_ = rows.Close()
	}()

	tokens := make([]*authDomain.Token, 0)
	for rows.Next() {
		token, err := scanPostgreSQLToken(rows.Scan)
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

// NewPostgreSQLTokenRepository creates a new PostgreSQL Token repository.
func NewPostgreSQLTokenRepository(db *sql.DB) *PostgreSQLTokenRepository {
	return &PostgreSQLTokenRepository{db: db}
}

func checkTokenAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows count")
	}
	if affected == 0 {
		return authDomain.ErrTokenNotFound
	}
	return nil
}
