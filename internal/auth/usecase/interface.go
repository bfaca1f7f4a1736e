// Package usecase defines business logic interfaces for tokens and audit logs.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
)

// TokenRepository defines persistence operations for tokens.
// Implementations must support transaction-aware operations via context propagation.
type TokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *authDomain.Token) error

	// Get retrieves a token by ID. Returns ErrTokenNotFound if not found.
	Get(ctx context.Context, tokenID uuid.UUID) (*authDomain.Token, error)

	// GetByTokenHash retrieves a token by the SHA-256 hash of its plain value.
	// Returns ErrTokenNotFound if not found.
	GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error)

	// Delete removes a token by ID. Returns ErrTokenNotFound if not found.
	Delete(ctx context.Context, tokenID uuid.UUID) error

	// ListExpired returns tokens that expired before the given time, oldest expiry first.
	ListExpired(ctx context.Context, expiredBefore time.Time) ([]*authDomain.Token, error)
}

// AuditLogRepository defines persistence operations for audit logs.
type AuditLogRepository interface {
	// Create stores a new audit log.
	Create(ctx context.Context, auditLog *authDomain.AuditLog) error

	// List returns audit logs ordered by created_at descending. Both time boundaries are
	// optional and inclusive.
	List(
		ctx context.Context,
		offset, limit int,
		createdAtFrom, createdAtTo *time.Time,
	) ([]*authDomain.AuditLog, error)

	// DeleteOlderThan removes audit logs created before olderThan. With dryRun the
	// matching logs are only counted.
	DeleteOlderThan(ctx context.Context, olderThan time.Time, dryRun bool) (int64, error)
}

// RootKeyProvider lends the in-memory root key to fn. It fails while the root key is
// not held, that is while the service is sealed.
type RootKeyProvider interface {
	WithRootKey(fn func(rootKey []byte) error) error
}

// TokenUseCase defines token issuance, authentication and removal.
type TokenUseCase interface {
	// Issue creates a token carrying the given policies and optional entity binding.
	// The plain token is returned once.
	Issue(ctx context.Context, input *authDomain.IssueTokenInput) (*authDomain.IssueTokenOutput, error)

	// Authenticate resolves a plain token. Missing, unknown and expired tokens all fail
	// with ErrInvalidToken.
	Authenticate(ctx context.Context, plainToken string) (*authDomain.Token, error)

	// Lookup resolves a plain token regardless of expiry. Returns ErrTokenNotFound if unknown.
	Lookup(ctx context.Context, plainToken string) (*authDomain.Token, error)

	// Delete removes a token by ID. Returns ErrTokenNotFound if not found.
	Delete(ctx context.Context, tokenID uuid.UUID) error

	// ListExpired returns tokens that expired more than days ago. Removing them is left to the
	// caller, which must revoke their leases first.
	ListExpired(ctx context.Context, days int) ([]*authDomain.Token, error)
}

// AuditLogUseCase defines recording, retention and integrity verification of audit logs.
type AuditLogUseCase interface {
	// Create assigns an ID and timestamp to auditLog, signs it when the root key is
	// available and stores it.
	Create(ctx context.Context, auditLog *authDomain.AuditLog) error

	// List returns audit logs newest first with optional inclusive time filters.
	List(
		ctx context.Context,
		offset, limit int,
		createdAtFrom, createdAtTo *time.Time,
	) ([]*authDomain.AuditLog, error)

	// DeleteOlderThan removes audit logs older than days.
	DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error)

	// VerifyBatch checks the signature of every audit log created within [start, end].
	// Requires the root key.
	VerifyBatch(ctx context.Context, start, end time.Time) (*authDomain.VerificationReport, error)
}
