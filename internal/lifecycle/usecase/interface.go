// Package usecase implements the lifecycle state machine: initialization, the unseal
// ceremony, sealing, and custody of the root key while unsealed.
package usecase

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
)

// SealConfigRepository persists the single seal configuration.
type SealConfigRepository interface {
	// Create stores the seal configuration. Returns ErrAlreadyInitialized if one exists.
	Create(ctx context.Context, sealConfig *lifecycleDomain.SealConfig) error

	// Get retrieves the seal configuration. Returns ErrSealConfigNotFound if none exists.
	Get(ctx context.Context) (*lifecycleDomain.SealConfig, error)
}

// TokenIssuer issues and withdraws the root token created at initialization.
type TokenIssuer interface {
	Issue(ctx context.Context, input *authDomain.IssueTokenInput) (*authDomain.IssueTokenOutput, error)
	Delete(ctx context.Context, tokenID uuid.UUID) error
}

// LifecycleUseCase drives the uninitialized, sealed and unsealed states.
type LifecycleUseCase interface {
	// Init generates the root key, splits it into shares, stores the seal configuration
	// and issues a root token. Valid only while uninitialized; the service ends sealed.
	Init(ctx context.Context, input *lifecycleDomain.InitInput) (*lifecycleDomain.InitOutput, error)

	// Unseal submits one key share. At the threshold the shares are combined and the
	// result verified; on success the service is unsealed.
	Unseal(ctx context.Context, input *lifecycleDomain.UnsealInput) (*lifecycleDomain.UnsealOutput, error)

	// Seal discards the root key and any collected shares.
	Seal(ctx context.Context) error

	// Status reports the current state and unseal progress.
	Status(ctx context.Context) (*lifecycleDomain.StatusOutput, error)

	// State returns the current lifecycle state.
	State() lifecycleDomain.State

	// WithRootKey passes the root key to fn. Returns ErrSealed unless unsealed.
	WithRootKey(fn func(rootKey []byte) error) error

	// Load reads the seal configuration from storage and sets the startup state.
	Load(ctx context.Context) error

	// AutoUnseal unseals with the KMS-wrapped copy of the root key.
	AutoUnseal(ctx context.Context) error
}
