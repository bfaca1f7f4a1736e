// Package usecase implements business logic orchestration for tokens and audit logs.
package usecase

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/vault/sdk/helper/locksutil"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	authService "github.com/allisson/covert/internal/auth/service"
	apperrors "github.com/allisson/covert/internal/errors"
)

// tokenUseCase implements TokenUseCase. Deletes are serialized per token ID.
type tokenUseCase struct {
	tokenRepo    TokenRepository
	tokenService authService.TokenService
	locks        []*locksutil.LockEntry
}

// Issue generates a new token and stores its hash.
func (t *tokenUseCase) Issue(
	ctx context.Context,
	input *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	if input.TTL < 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "token ttl must not be negative")
	}

	plainToken, tokenHash, err := t.tokenService.GenerateToken()
	if err != nil {
		return nil, apperrors.Internal(err, "failed to generate token")
	}

	now := time.Now().UTC()
	token := &authDomain.Token{
		ID:        uuid.Must(uuid.NewV7()),
		TokenHash: tokenHash,
		EntityID:  input.EntityID,
		Policies:  slices.Compact(slices.Sorted(slices.Values(input.Policies))),
		CreatedAt: now,
	}
	if token.Policies == nil {
		token.Policies = []string{}
	}
	if input.TTL > 0 {
		expiresAt := now.Add(input.TTL)
		token.ExpiresAt = &expiresAt
	}

	if err := t.tokenRepo.Create(ctx, token); err != nil {
		return nil, apperrors.Internal(err, "failed to store token")
	}

	return &authDomain.IssueTokenOutput{
		Token:      token,
		PlainToken: plainToken,
	}, nil
}

// Authenticate resolves a plain token and rejects unknown or expired ones.
func (t *tokenUseCase) Authenticate(ctx context.Context, plainToken string) (*authDomain.Token, error) {
	if plainToken == "" {
		return nil, authDomain.ErrInvalidToken
	}

	token, err := t.Lookup(ctx, plainToken)
	if err != nil {
		if apperrors.Is(err, authDomain.ErrTokenNotFound) {
			return nil, authDomain.ErrInvalidToken
		}
		return nil, err
	}

	if token.IsExpired(time.Now().UTC()) {
		return nil, authDomain.ErrInvalidToken
	}

	return token, nil
}

// Lookup resolves a plain token by its hash.
func (t *tokenUseCase) Lookup(ctx context.Context, plainToken string) (*authDomain.Token, error) {
	token, err := t.tokenRepo.GetByTokenHash(ctx, t.tokenService.HashToken(plainToken))
	if err != nil {
		if apperrors.Is(err, authDomain.ErrTokenNotFound) {
			return nil, err
		}
		return nil, apperrors.Internal(err, "failed to get token")
	}
	return token, nil
}

// Delete removes a token by ID.
func (t *tokenUseCase) Delete(ctx context.Context, tokenID uuid.UUID) error {
	lock := locksutil.LockForKey(t.locks, tokenID.String())
	lock.Lock()
	defer lock.Unlock()

	if err := t.tokenRepo.Delete(ctx, tokenID); err != nil {
		if apperrors.Is(err, authDomain.ErrTokenNotFound) {
			return err
		}
		return apperrors.Internal(err, "failed to delete token")
	}
	return nil
}

// ListExpired returns tokens that expired more than days ago.
func (t *tokenUseCase) ListExpired(ctx context.Context, days int) ([]*authDomain.Token, error) {
	if days < 0 {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "days must not be negative, got %d", days)
	}

	expiredBefore := time.Now().UTC().AddDate(0, 0, -days)
	tokens, err := t.tokenRepo.ListExpired(ctx, expiredBefore)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to list expired tokens")
	}
	return tokens, nil
}

// NewTokenUseCase creates a new TokenUseCase with the provided dependencies.
func NewTokenUseCase(tokenRepo TokenRepository, tokenService authService.TokenService) TokenUseCase {
	return &tokenUseCase{
		tokenRepo:    tokenRepo,
		tokenService: tokenService,
		locks:        locksutil.CreateLocks(),
	}
}
