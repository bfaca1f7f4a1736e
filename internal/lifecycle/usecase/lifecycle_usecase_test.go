package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/covert/internal/auth/domain"
	apperrors "github.com/allisson/covert/internal/errors"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleService "github.com/allisson/covert/internal/lifecycle/service"
)

type mockSealConfigRepository struct {
	mock.Mock
}

func (m *mockSealConfigRepository) Create(ctx context.Context, sealConfig *lifecycleDomain.SealConfig) error {
	args := m.Called(ctx, sealConfig)
	return args.Error(0)
}

func (m *mockSealConfigRepository) Get(ctx context.Context) (*lifecycleDomain.SealConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lifecycleDomain.SealConfig), args.Error(1)
}

type mockTokenIssuer struct {
	mock.Mock
}

func (m *mockTokenIssuer) Issue(
	ctx context.Context,
	input *authDomain.IssueTokenInput,
) (*authDomain.IssueTokenOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authDomain.IssueTokenOutput), args.Error(1)
}

func (m *mockTokenIssuer) Delete(ctx context.Context, tokenID uuid.UUID) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

var testKeyChecker lifecycleService.KeyChecker

func keyChecker(t *testing.T) lifecycleService.KeyChecker {
	t.Helper()
	if testKeyChecker == nil {
		checker, err := lifecycleService.NewKeyChecker()
		require.NoError(t, err)
		testKeyChecker = checker
	}
	return testKeyChecker
}

func rootTokenOutput() *authDomain.IssueTokenOutput {
	return &authDomain.IssueTokenOutput{
		Token:      &authDomain.Token{ID: uuid.Must(uuid.NewV7()), Policies: []string{"root"}},
		PlainToken: "root-token",
	}
}

func newTestLifecycle(
	t *testing.T,
	repo SealConfigRepository,
	issuer TokenIssuer,
	options Options,
) LifecycleUseCase {
	t.Helper()
	if options.DefaultShares == 0 {
		options.DefaultShares = 5
		options.DefaultThreshold = 3
	}
	return NewLifecycleUseCase(
		repo,
		issuer,
		lifecycleService.NewShamirSplitter(),
		keyChecker(t),
		lifecycleService.NewKMSService(),
		options,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

// initialized returns a sealed lifecycle together with its key shares.
func initialized(t *testing.T, shares, threshold int) (LifecycleUseCase, []string) {
	t.Helper()
	ctx := context.Background()

	repo := &mockSealConfigRepository{}
	repo.On("Create", ctx, mock.AnythingOfType("*domain.SealConfig")).Return(nil).Once()
	issuer := &mockTokenIssuer{}
	issuer.On("Issue", ctx, mock.AnythingOfType("*domain.IssueTokenInput")).Return(rootTokenOutput(), nil).Once()

	uc := newTestLifecycle(t, repo, issuer, Options{})
	output, err := uc.Init(ctx, &lifecycleDomain.InitInput{SecretShares: shares, SecretThreshold: threshold})
	require.NoError(t, err)
	return uc, output.Keys
}

func TestLifecycleUseCase_Init(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DefaultShares", func(t *testing.T) {
		repo := &mockSealConfigRepository{}
		var stored *lifecycleDomain.SealConfig
		repo.On("Create", ctx, mock.AnythingOfType("*domain.SealConfig")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*lifecycleDomain.SealConfig)
			}).
			Return(nil).
			Once()
		issuer := &mockTokenIssuer{}
		issuer.On("Issue", ctx, mock.MatchedBy(func(input *authDomain.IssueTokenInput) bool {
			return assert.ObjectsAreEqual([]string{"root"}, input.Policies) && input.EntityID == nil
		})).Return(rootTokenOutput(), nil).Once()

		uc := newTestLifecycle(t, repo, issuer, Options{})
		output, err := uc.Init(ctx, &lifecycleDomain.InitInput{})
		require.NoError(t, err)

		assert.Len(t, output.Keys, 5)
		assert.Equal(t, "root-token", output.RootToken)
		assert.Equal(t, lifecycleDomain.StateSealed, uc.State())
		require.NotNil(t, stored)
		assert.Equal(t, 5, stored.SecretShares)
		assert.Equal(t, 3, stored.SecretThreshold)
		assert.NotEmpty(t, stored.KeyCheck)
		assert.Empty(t, stored.WrappedRootKey)
		repo.AssertExpectations(t)
		issuer.AssertExpectations(t)
	})

	t.Run("Success_KMSWrapsRootKey", func(t *testing.T) {
		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)
		keyURI := "base64key://" + base64.URLEncoding.EncodeToString(key)

		repo := &mockSealConfigRepository{}
		var stored *lifecycleDomain.SealConfig
		repo.On("Create", ctx, mock.AnythingOfType("*domain.SealConfig")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*lifecycleDomain.SealConfig)
			}).
			Return(nil).
			Once()
		issuer := &mockTokenIssuer{}
		issuer.On("Issue", ctx, mock.Anything).Return(rootTokenOutput(), nil).Once()

		uc := newTestLifecycle(t, repo, issuer, Options{KMSKeyURI: keyURI})
		_, err = uc.Init(ctx, &lifecycleDomain.InitInput{SecretShares: 1, SecretThreshold: 1})
		require.NoError(t, err)

		require.NotNil(t, stored)
		assert.NotEmpty(t, stored.WrappedRootKey)
		assert.Equal(t, keyURI, stored.KMSKeyURI)
	})

	t.Run("Error_SecondInit", func(t *testing.T) {
		uc, _ := initialized(t, 3, 2)

		output, err := uc.Init(ctx, &lifecycleDomain.InitInput{SecretShares: 3, SecretThreshold: 2})
		assert.Nil(t, output)
		assert.ErrorIs(t, err, lifecycleDomain.ErrAlreadyInitialized)
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})

	t.Run("Error_InvalidShareLayout", func(t *testing.T) {
		repo := &mockSealConfigRepository{}
		issuer := &mockTokenIssuer{}
		uc := newTestLifecycle(t, repo, issuer, Options{})

		_, err := uc.Init(ctx, &lifecycleDomain.InitInput{SecretShares: 3, SecretThreshold: 4})
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
		assert.Equal(t, lifecycleDomain.StateUninitialized, uc.State())
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})

	t.Run("Error_StoreFailureWithdrawsRootToken", func(t *testing.T) {
		issued := rootTokenOutput()
		repo := &mockSealConfigRepository{}
		repo.On("Create", ctx, mock.Anything).Return(errors.New("db down")).Once()
		issuer := &mockTokenIssuer{}
		issuer.On("Issue", ctx, mock.Anything).Return(issued, nil).Once()
		issuer.On("Delete", ctx, issued.Token.ID).Return(nil).Once()

		uc := newTestLifecycle(t, repo, issuer, Options{})
		_, err := uc.Init(ctx, &lifecycleDomain.InitInput{})
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
		assert.Equal(t, lifecycleDomain.StateUninitialized, uc.State())
		issuer.AssertExpectations(t)
	})
}

func TestLifecycleUseCase_Unseal(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ThresholdReached", func(t *testing.T) {
		uc, keys := initialized(t, 5, 3)

		output, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		require.NoError(t, err)
		assert.Equal(t, &lifecycleDomain.UnsealOutput{Sealed: true, Threshold: 3, Shares: 5, Progress: 1}, output)

		output, err = uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[3]})
		require.NoError(t, err)
		assert.Equal(t, 2, output.Progress)

		output, err = uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[4]})
		require.NoError(t, err)
		assert.False(t, output.Sealed)
		assert.Equal(t, 0, output.Progress)
		assert.Equal(t, lifecycleDomain.StateUnsealed, uc.State())

		err = uc.WithRootKey(func(rootKey []byte) error {
			assert.Len(t, rootKey, lifecycleDomain.RootKeyLength)
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("Success_DuplicateShareDoesNotCount", func(t *testing.T) {
		uc, keys := initialized(t, 3, 2)

		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[1]})
		require.NoError(t, err)
		output, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[1]})
		require.NoError(t, err)

		assert.True(t, output.Sealed)
		assert.Equal(t, 1, output.Progress)
	})

	t.Run("Success_SingleShare", func(t *testing.T) {
		uc, keys := initialized(t, 1, 1)

		output, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		require.NoError(t, err)
		assert.False(t, output.Sealed)
	})

	t.Run("Success_Reset", func(t *testing.T) {
		uc, keys := initialized(t, 3, 2)

		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		require.NoError(t, err)
		output, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Reset: true})
		require.NoError(t, err)
		assert.Equal(t, 0, output.Progress)
		assert.True(t, output.Sealed)
	})

	t.Run("Error_WrongSharesClearProgress", func(t *testing.T) {
		uc, keys := initialized(t, 3, 2)
		_, otherKeys := initialized(t, 3, 2)

		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		require.NoError(t, err)
		_, err = uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: otherKeys[1]})
		assert.ErrorIs(t, err, lifecycleDomain.ErrInvalidUnsealKey)
		assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

		status, err := uc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, status.Progress)
		assert.Equal(t, lifecycleDomain.StateSealed, status.State)
	})

	t.Run("Error_MalformedKey", func(t *testing.T) {
		uc, _ := initialized(t, 3, 2)

		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: "not a key!"})
		assert.ErrorIs(t, err, lifecycleDomain.ErrMalformedKeyShare)

		_, err = uc.Unseal(ctx, &lifecycleDomain.UnsealInput{})
		assert.ErrorIs(t, err, lifecycleDomain.ErrMalformedKeyShare)
	})

	t.Run("Error_Uninitialized", func(t *testing.T) {
		uc := newTestLifecycle(t, &mockSealConfigRepository{}, &mockTokenIssuer{}, Options{})

		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: "abcd"})
		assert.ErrorIs(t, err, lifecycleDomain.ErrNotInitialized)
	})

	t.Run("Error_AlreadyUnsealed", func(t *testing.T) {
		uc, keys := initialized(t, 1, 1)
		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		require.NoError(t, err)

		_, err = uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		assert.ErrorIs(t, err, lifecycleDomain.ErrNotSealed)
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})
}

func TestLifecycleUseCase_Seal(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DestroysRootKey", func(t *testing.T) {
		uc, keys := initialized(t, 1, 1)
		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[0]})
		require.NoError(t, err)

		require.NoError(t, uc.Seal(ctx))
		assert.Equal(t, lifecycleDomain.StateSealed, uc.State())

		err = uc.WithRootKey(func([]byte) error { return nil })
		assert.ErrorIs(t, err, lifecycleDomain.ErrSealed)
	})

	t.Run("Error_AlreadySealed", func(t *testing.T) {
		uc, _ := initialized(t, 1, 1)
		assert.ErrorIs(t, uc.Seal(ctx), lifecycleDomain.ErrSealed)
	})

	t.Run("Error_Uninitialized", func(t *testing.T) {
		uc := newTestLifecycle(t, &mockSealConfigRepository{}, &mockTokenIssuer{}, Options{})
		assert.ErrorIs(t, uc.Seal(ctx), lifecycleDomain.ErrNotInitialized)
	})
}

func TestLifecycleUseCase_Status(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_Uninitialized", func(t *testing.T) {
		uc := newTestLifecycle(t, &mockSealConfigRepository{}, &mockTokenIssuer{}, Options{})

		status, err := uc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, &lifecycleDomain.StatusOutput{
			State:  lifecycleDomain.StateUninitialized,
			Sealed: true,
		}, status)
	})

	t.Run("Success_SealedWithProgress", func(t *testing.T) {
		uc, keys := initialized(t, 5, 3)
		_, err := uc.Unseal(ctx, &lifecycleDomain.UnsealInput{Key: keys[2]})
		require.NoError(t, err)

		status, err := uc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, &lifecycleDomain.StatusOutput{
			State:       lifecycleDomain.StateSealed,
			Initialized: true,
			Sealed:      true,
			Threshold:   3,
			Shares:      5,
			Progress:    1,
		}, status)

		again, err := uc.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, status, again)
	})
}

func TestLifecycleUseCase_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_StoredConfigStartsSealed", func(t *testing.T) {
		repo := &mockSealConfigRepository{}
		repo.On("Get", ctx).Return(&lifecycleDomain.SealConfig{SecretShares: 5, SecretThreshold: 3}, nil).Once()

		uc := newTestLifecycle(t, repo, &mockTokenIssuer{}, Options{})
		require.NoError(t, uc.Load(ctx))
		assert.Equal(t, lifecycleDomain.StateSealed, uc.State())
	})

	t.Run("Success_NoConfigStartsUninitialized", func(t *testing.T) {
		repo := &mockSealConfigRepository{}
		repo.On("Get", ctx).Return(nil, lifecycleDomain.ErrSealConfigNotFound).Once()

		uc := newTestLifecycle(t, repo, &mockTokenIssuer{}, Options{})
		require.NoError(t, uc.Load(ctx))
		assert.Equal(t, lifecycleDomain.StateUninitialized, uc.State())
	})

	t.Run("Error_StoreFailure", func(t *testing.T) {
		repo := &mockSealConfigRepository{}
		repo.On("Get", ctx).Return(nil, errors.New("db down")).Once()

		uc := newTestLifecycle(t, repo, &mockTokenIssuer{}, Options{})
		err := uc.Load(ctx)
		assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	})
}

func TestLifecycleUseCase_AutoUnseal(t *testing.T) {
	ctx := context.Background()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	keyURI := "base64key://" + base64.URLEncoding.EncodeToString(key)

	t.Run("Success_UnwrapsStoredRootKey", func(t *testing.T) {
		var stored *lifecycleDomain.SealConfig
		repo := &mockSealConfigRepository{}
		repo.On("Create", ctx, mock.Anything).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*lifecycleDomain.SealConfig)
			}).
			Return(nil).
			Once()
		issuer := &mockTokenIssuer{}
		issuer.On("Issue", ctx, mock.Anything).Return(rootTokenOutput(), nil).Once()

		first := newTestLifecycle(t, repo, issuer, Options{KMSKeyURI: keyURI})
		_, err := first.Init(ctx, &lifecycleDomain.InitInput{SecretShares: 3, SecretThreshold: 2})
		require.NoError(t, err)

		restarted := &mockSealConfigRepository{}
		restarted.On("Get", ctx).Return(stored, nil).Once()
		uc := newTestLifecycle(t, restarted, &mockTokenIssuer{}, Options{KMSKeyURI: keyURI})
		require.NoError(t, uc.Load(ctx))

		require.NoError(t, uc.AutoUnseal(ctx))
		assert.Equal(t, lifecycleDomain.StateUnsealed, uc.State())
	})

	t.Run("Error_NoWrappedKey", func(t *testing.T) {
		uc, _ := initialized(t, 3, 2)

		err := uc.AutoUnseal(ctx)
		assert.ErrorIs(t, err, lifecycleDomain.ErrAutoUnsealUnavailable)
		assert.Equal(t, lifecycleDomain.StateSealed, uc.State())
	})

	t.Run("Error_Uninitialized", func(t *testing.T) {
		uc := newTestLifecycle(t, &mockSealConfigRepository{}, &mockTokenIssuer{}, Options{KMSKeyURI: keyURI})
		assert.ErrorIs(t, uc.AutoUnseal(ctx), lifecycleDomain.ErrNotInitialized)
	})
}
