package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authRepository "github.com/allisson/covert/internal/auth/repository"
	authService "github.com/allisson/covert/internal/auth/service"
	authUseCase "github.com/allisson/covert/internal/auth/usecase"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleRepository "github.com/allisson/covert/internal/lifecycle/repository"
	lifecycleService "github.com/allisson/covert/internal/lifecycle/service"
	lifecycleUseCase "github.com/allisson/covert/internal/lifecycle/usecase"
)

func newLifecycle(t *testing.T, repo lifecycleUseCase.SealConfigRepository) lifecycleUseCase.LifecycleUseCase {
	t.Helper()
	keyChecker, err := lifecycleService.NewKeyChecker()
	require.NoError(t, err)

	tokens := authUseCase.NewTokenUseCase(authRepository.NewMemoryTokenRepository(), authService.NewTokenService())
	return lifecycleUseCase.NewLifecycleUseCase(
		repo,
		tokens,
		lifecycleService.NewShamirSplitter(),
		keyChecker,
		lifecycleService.NewKMSService(),
		lifecycleUseCase.Options{DefaultShares: 3, DefaultThreshold: 2, RootTokenTTL: time.Hour},
		discardLogger,
	)
}

func TestUnsealFromReader(t *testing.T) {
	ctx := context.Background()

	// initialized returns the seal configuration of an initialized service and its shares.
	initialized := func(t *testing.T) (lifecycleUseCase.SealConfigRepository, []string) {
		repo := lifecycleRepository.NewMemorySealConfigRepository()
		output, err := newLifecycle(t, repo).Init(ctx, &lifecycleDomain.InitInput{})
		require.NoError(t, err)
		return repo, output.Keys
	}

	t.Run("Success_ThresholdReached", func(t *testing.T) {
		repo, keys := initialized(t)
		lifecycle := newLifecycle(t, repo)

		input := "\n" + keys[0] + "\n\n  " + keys[2] + "  \n" + keys[1] + "\n"
		require.NoError(t, UnsealFromReader(ctx, lifecycle, strings.NewReader(input)))
		require.Equal(t, lifecycleDomain.StateUnsealed, lifecycle.State())
	})

	t.Run("Error_NotEnoughShares", func(t *testing.T) {
		repo, keys := initialized(t)
		lifecycle := newLifecycle(t, repo)

		err := UnsealFromReader(ctx, lifecycle, strings.NewReader(keys[0]))
		require.Error(t, err)
		require.Contains(t, err.Error(), "not enough key shares")
		require.Equal(t, lifecycleDomain.StateSealed, lifecycle.State())
	})

	t.Run("Error_MalformedShare", func(t *testing.T) {
		repo, _ := initialized(t)

		err := UnsealFromReader(ctx, newLifecycle(t, repo), strings.NewReader("not-a-share"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to submit key share")
	})

	t.Run("Error_Uninitialized", func(t *testing.T) {
		lifecycle := newLifecycle(t, lifecycleRepository.NewMemorySealConfigRepository())

		err := UnsealFromReader(ctx, lifecycle, strings.NewReader(""))
		require.Error(t, err)
		require.Contains(t, err.Error(), "not initialized")
	})
}
