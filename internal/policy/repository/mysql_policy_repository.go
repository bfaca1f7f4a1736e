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

// MySQLPolicyRepository implements Policy persistence for MySQL.
// Rules are stored in a JSON column.
type MySQLPolicyRepository struct {
	db *sql.DB
}

// Upsert inserts the policy or replaces the rules of the policy with the same name.
func (m *MySQLPolicyRepository) Upsert(ctx context.Context, policy *policyDomain.Policy) error {
	querier := database.GetTx(ctx, m.db)

	rulesJSON, err := json.Marshal(policy.Rules)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal policy rules")
	}

	query := `INSERT INTO policies (name, rules, created_at, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE rules = VALUES(rules), updated_at = VALUES(updated_at)`

	_, err = querier.ExecContext(ctx, query, policy.Name, rulesJSON, policy.CreatedAt, policy.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert policy")
	}

	return nil
}

// Get retrieves a policy by name. Returns ErrPolicyNotFound if it doesn't exist.
func (m *MySQLPolicyRepository) Get(ctx context.Context, name string) (*policyDomain.Policy, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT name, rules, created_at, updated_at FROM policies WHERE name = ?`

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
func (m *MySQLPolicyRepository) List(ctx context.Context) ([]*policyDomain.Policy, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, `SELECT name, rules, created_at, updated_at FROM policies ORDER BY name ASC`)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list policies")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanPolicies(rows)
}

// Delete removes a policy by name. Returns ErrPolicyNotFound if no row was removed.
func (m *MySQLPolicyRepository) Delete(ctx context.Context, name string) error {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM policies WHERE name = ?`, name)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete policy")
	}

	return checkPolicyAffected(result)
}

// NewMySQLPolicyRepository creates a new MySQL Policy repository.
func NewMySQLPolicyRepository(db *sql.DB) *MySQLPolicyRepository {
	return &MySQLPolicyRepository{db: db}
}
