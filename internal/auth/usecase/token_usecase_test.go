package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	apperrors "github.com/allisson/covert/internal/errors"
)

type mockTokenService struct {
	mock.Mock
}

func (m *mockTokenService) GenerateToken() (string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockTokenService) HashToken(plainToken string) string {
	args := m.Called(plainToken)
	return args.String(0)
}

type mockTokenRepository struct {
	mock.Mock
}

func (m *mockTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepository) Get(ctx context.Context, tokenID uuid.UUID) (*authDomain.Token, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Token), args.Error(1)
}

func (m *mockTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.Token), args.Error(1)
}

func (m *mockTokenRepository) Delete(ctx context.Context, tokenID uuid.UUID) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *mockTokenRepository) ListExpired(ctx context.Context, expiredBefore time.Time) ([]*authDomain.Token, error) {
	args := m.Called(ctx, expiredBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*authDomain.Token), args.Error(1)
}

func TestTokenUseCase_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_IssueWithTTL", func(t *testing.T) {
		tokenService := &mockTokenService{}
		tokenRepo := &mockTokenRepository{}
		entityID := uuid.Must(uuid.NewV7())

		tokenService.On("GenerateToken").Return("plain", "hash", nil).Once()
		tokenRepo.On("Create", ctx, mock.MatchedBy(func(token *authDomain.Token) bool {
			return token.TokenHash == "hash" && token.EntityID == &entityID && token.ExpiresAt != nil
		})).Return(nil).Once()

		uc := NewTokenUseCase(tokenRepo, tokenService)
		output, err := uc.Issue(ctx, &authDomain.IssueTokenInput{
			EntityID: &entityID,
			Policies: []string{"writer", "reader", "writer"},
			TTL:      time.Hour,
		})
		require.NoError(t, err)
		assert.Equal(t, "plain", output.PlainToken)
		assert.Equal(t, []string{"reader", "writer"}, output.Token.Policies)
		assert.WithinDuration(t, time.Now().Add(time.Hour), *output.Token.ExpiresAt, time.Minute)
		tokenRepo.AssertExpectations(t)
	})

	t.Run("Success_ZeroTTLNeverExpires", func(t *testing.T) {
		tokenService := &mockTokenService{}
		tokenRepo := &mockTokenRepository{}
		tokenService.On("GenerateToken").Return("plain", "hash", nil).Once()
		tokenRepo.On("Create", ctx, mock.AnythingOfType("*domain.Token")).Return(nil).Once()

		uc := NewTokenUseCase(tokenRepo, tokenService)
		output, err := uc.Issue(ctx, &authDomain.IssueTokenInput{Policies: []string{"root"}})
		require.NoError(t, err)
		assert.Nil(t, output.Token.ExpiresAt)
		assert.Nil(t, output.Token.EntityID)
	})

	t.Run("Error_NegativeTTL", func(t *testing.T) {
		uc := NewTokenUseCase(&mockTokenRepository{}, &mockTokenService{})
		_, err := uc.Issue(ctx, &authDomain.IssueTokenInput{TTL: -time.Second})
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	})

	t.Run("Error_RepositoryFailure", func(t *testing.T) {
		tokenService := &mockTokenService{}
		tokenRepo := &mockTokenRepository{}
		tokenService.On("GenerateToken").Return("plain", "hash", nil).Once()
		tokenRepo.On("Create", ctx, mock.Anything).Return(errors.New("disk full")).Once()

		uc := NewTokenUseCase(tokenRepo, tokenService)
		_, err := uc.Issue(ctx, &authDomain.IssueTokenInput{})
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})
}

func TestTokenUseCase_Authenticate(t *testing.T) {
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name        string
		plain       string
		stored      *authDomain.Token
		repoErr     error
		expectedErr error
	}{
		{name: "Success_Valid", plain: "p", stored: &authDomain.Token{ExpiresAt: &future}},
		{name: "Success_NoExpiry", plain: "p", stored: &authDomain.Token{}},
		{name: "Error_Empty", plain: "", expectedErr: authDomain.ErrInvalidToken},
		{name: "Error_Unknown", plain: "p", repoErr: authDomain.ErrTokenNotFound, expectedErr: authDomain.ErrInvalidToken},
		{name: "Error_Expired", plain: "p", stored: &authDomain.Token{ExpiresAt: &past}, expectedErr: authDomain.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenService := &mockTokenService{}
			tokenRepo := &mockTokenRepository{}
			tokenService.On("HashToken", tt.plain).Return("hash").Maybe()
			if tt.stored != nil {
				tokenRepo.On("GetByTokenHash", ctx, "hash").Return(tt.stored, nil).Maybe()
			} else {
				tokenRepo.On("GetByTokenHash", ctx, "hash").Return(nil, tt.repoErr).Maybe()
			}

			uc := NewTokenUseCase(tokenRepo, tokenService)
			token, err := uc.Authenticate(ctx, tt.plain)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Equal(t, apperrors.KindPermissionDenied, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Same(t, tt.stored, token)
		})
	}
}

func TestTokenUseCase_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ReturnsExpiredToken", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Minute)
		stored := &authDomain.Token{ExpiresAt: &past}
		tokenService := &mockTokenService{}
		tokenRepo := &mockTokenRepository{}
		tokenService.On("HashToken", "p").Return("hash").Once()
		tokenRepo.On("GetByTokenHash", ctx, "hash").Return(stored, nil).Once()

		uc := NewTokenUseCase(tokenRepo, tokenService)
		token, err := uc.Lookup(ctx, "p")
		require.NoError(t, err)
		assert.Same(t, stored, token)
	})

	t.Run("Error_StorageFailureIsInternal", func(t *testing.T) {
		tokenService := &mockTokenService{}
		tokenRepo := &mockTokenRepository{}
		tokenService.On("HashToken", "p").Return("hash").Once()
		tokenRepo.On("GetByTokenHash", ctx, "hash").Return(nil, errors.New("timeout")).Once()

		uc := NewTokenUseCase(tokenRepo, tokenService)
		_, err := uc.Lookup(ctx, "p")
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})
}

func TestTokenUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	tokenID := uuid.Must(uuid.NewV7())

	t.Run("Success_Delete", func(t *testing.T) {
		tokenRepo := &mockTokenRepository{}
		tokenRepo.On("Delete", ctx, tokenID).Return(nil).Once()

		uc := NewTokenUseCase(tokenRepo, &mockTokenService{})
		require.NoError(t, uc.Delete(ctx, tokenID))
		tokenRepo.AssertExpectations(t)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		tokenRepo := &mockTokenRepository{}
		tokenRepo.On("Delete", ctx, tokenID).Return(authDomain.ErrTokenNotFound).Once()

		uc := NewTokenUseCase(tokenRepo, &mockTokenService{})
		assert.ErrorIs(t, uc.Delete(ctx, tokenID), authDomain.ErrTokenNotFound)
	})
}

func TestTokenUseCase_ListExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_UsesDaysCutoff", func(t *testing.T) {
		expired := &authDomain.Token{ID: uuid.Must(uuid.NewV7())}
		tokenRepo := &mockTokenRepository{}
		tokenRepo.On("ListExpired", ctx, mock.MatchedBy(func(before time.Time) bool {
			return before.Before(time.Now().UTC().AddDate(0, 0, -6))
		})).Return([]*authDomain.Token{expired}, nil).Once()

		uc := NewTokenUseCase(tokenRepo, &mockTokenService{})
		tokens, err := uc.ListExpired(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []*authDomain.Token{expired}, tokens)
		tokenRepo.AssertExpectations(t)
	})

	t.Run("Error_RepositoryFails", func(t *testing.T) {
		tokenRepo := &mockTokenRepository{}
		tokenRepo.On("ListExpired", ctx, mock.AnythingOfType("time.Time")).Return(nil, errors.New("db down")).Once()

		uc := NewTokenUseCase(tokenRepo, &mockTokenService{})
		_, err := uc.ListExpired(ctx, 0)
		assert.ErrorIs(t, err, apperrors.ErrInternal)
	})

	t.Run("Error_NegativeDays", func(t *testing.T) {
		uc := NewTokenUseCase(&mockTokenRepository{}, &mockTokenService{})
		_, err := uc.ListExpired(ctx, -1)
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
	})
}
