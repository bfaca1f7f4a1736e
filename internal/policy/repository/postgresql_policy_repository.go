// Package repository implements policy persistence for PostgreSQL, MySQL and process memory.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/allisson/covert/internal/database"
	apperrors "github.com/allisson/covert/internal/errors"
	policyDomain "github.com/allisson/covert/internal/policy/domain"
)

// PostgreSQLPolicyRepository implements Policy persistence for PostgreSQL.
// Rules are stored as a JSONB document.
type PostgreSQLPolicyRepository struct {
	db *sql.DB
}

// Upsert inserts the policy or replaces the rules of the policy with the same name.
func (p *PostgreSQLPolicyRepository) Upsert(ctx context.Context, policy *policyDomain.Policy) error {
	querier := database.GetTx(ctx, p.db)

	rulesJSON, err := json.Marshal(policy.Rules)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal policy rules")
	}

	query := `INSERT INTO policies (name, rules, created_at, updated_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (name) DO UPDATE SET rules = EXCLUDED.rules, updated_at = EXCLUDED.updated_at`

	_, err = querier.ExecContext(ctx, query, policy.Name, rulesJSON, policy.CreatedAt, policy.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert policy")
	}

	return nil
}

// Get retrieves a policy by name. Returns ErrPolicyNotFound if it doesn't exist.
func (p *PostgreSQLPolicyRepository) Get(ctx context.Context, name string) (*policyDomain.Policy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT name, rules, created_at, updated_at FROM policies WHERE name = $1`

	var policy policyDomain.Policy
	var rulesJSON []byte

	err := querier.QueryRowContext(ctx, query, name).Scan(
		&policy.Name,
		&rulesJSON,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, policyDomain.ErrPolicyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get policy")
	}

	if err := json.Unmarshal(rulesJSON, &policy.Rules); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal policy rules")
	}

	return &policy, nil
}

// List returns all policies ordered by name.
func (p *PostgreSQLPolicyRepository) List(ctx context.Context) ([]*policyDomain.Policy, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT name, rules, created_at, updated_at FROM policies ORDER BY name ASC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list policies")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanPolicies(rows)
}

// Delete removes a policy by name. Returns ErrPolicyNotFound if no row was removed.
func (p *PostgreSQLPolicyRepository) Delete(ctx context.Context, name string) error {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM policies WHERE name = $1`, name)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete policy")
	}

	return checkPolicyAffected(result)
}

// NewPostgreSQLPolicyRepository creates a new PostgreSQL Policy repository.
func NewPostgreSQLPolicyRepository(db *sql.DB) *PostgreSQLPolicyRepository {
	return &PostgreSQLPolicyRepository{db: db}
}

func scanPolicies(rows *sql.Rows) ([]*policyDomain.Policy, error) {
	policies := make([]*policyDomain.Policy, 0)
	for rows.Next() {
		var policy policyDomain.Policy
		var rulesJSON []byte

		if err := rows.Scan(&policy.Name, &rulesJSON, &policy.CreatedAt, &policy.UpdatedAt); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan policy")
		}

		if err := json.Unmarshal(rulesJSON, &policy.Rules); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal policy rules")
		}

		policies = append(policies, &policy)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate policies")
	}

	return policies, nil
}

func checkPolicyAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return policyDomain.ErrPolicyNotFound
	}
	return nil
}
