package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "github.com/allisson/covert/internal/errors"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleRepository "github.com/allisson/covert/internal/lifecycle/repository"
	lifecycleService "github.com/allisson/covert/internal/lifecycle/service"
	lifecycleUseCase "github.com/allisson/covert/internal/lifecycle/usecase"
)

// SealConfigRepository returns the seal configuration repository for the configured driver.
func (c *Container) SealConfigRepository() (lifecycleUseCase.SealConfigRepository, error) {
	return lazy(c, &c.sealConfigRepositoryInit, "sealConfigRepository", &c.sealConfigRepository,
		func() (lifecycleUseCase.SealConfigRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) lifecycleUseCase.SealConfigRepository {
					return lifecycleRepository.NewPostgreSQLSealConfigRepository(db)
				},
				func(db *sql.DB) lifecycleUseCase.SealConfigRepository {
					return lifecycleRepository.NewMySQLSealConfigRepository(db)
				},
				func() lifecycleUseCase.SealConfigRepository {
					return lifecycleRepository.NewMemorySealConfigRepository()
				},
			)
		})
}

// LifecycleUseCase returns the lifecycle use case. It starts uninitialized; call
// StartLifecycle to load the persisted state.
func (c *Container) LifecycleUseCase() (lifecycleUseCase.LifecycleUseCase, error) {
	return lazy(c, &c.lifecycleUseCaseInit, "lifecycleUseCase", &c.lifecycleUseCase, c.initLifecycleUseCase)
}

// StartLifecycle loads the seal configuration and, when KMS_AUTO_UNSEAL is set, unseals
// with the KMS-wrapped root key. An auto-unseal failure leaves the service sealed.
func (c *Container) StartLifecycle(ctx context.Context) error {
	lifecycle, err := c.LifecycleUseCase()
	if err != nil {
		return err
	}

	if err := lifecycle.Load(ctx); err != nil {
		return fmt.Errorf("failed to load lifecycle state: %w", err)
	}

	logger := c.Logger()
	logger.Info("lifecycle state loaded", slog.String("state", string(lifecycle.State())))

	if !c.config.KMSAutoUnseal || lifecycle.State() != lifecycleDomain.StateSealed {
		return nil
	}

	if err := lifecycle.AutoUnseal(ctx); err != nil {
		if apperrors.Is(err, lifecycleDomain.ErrAutoUnsealUnavailable) {
			logger.Warn("auto-unseal requested but no KMS-wrapped root key is stored")
			return nil
		}
		logger.Error("auto-unseal failed, service stays sealed", slog.Any("error", err))
		return nil
	}

	logger.Info("service auto-unsealed")
	return nil
}

func (c *Container) initLifecycleUseCase() (lifecycleUseCase.LifecycleUseCase, error) {
	sealConfigRepository, err := c.SealConfigRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get seal config repository for lifecycle use case: %w", err)
	}

	tokenUseCase, err := c.TokenUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token use case for lifecycle use case: %w", err)
	}

	keyChecker, err := lifecycleService.NewKeyChecker()
	if err != nil {
		return nil, fmt.Errorf("failed to create key checker: %w", err)
	}

	baseUseCase := lifecycleUseCase.NewLifecycleUseCase(
		sealConfigRepository,
		tokenUseCase,
		lifecycleService.NewShamirSplitter(),
		keyChecker,
		lifecycleService.NewKMSService(),
		lifecycleUseCase.Options{
			DefaultShares:    c.config.UnsealDefaultShares,
			DefaultThreshold: c.config.UnsealDefaultThreshold,
			RootTokenTTL:     c.config.RootTokenTTL,
			KMSKeyURI:        c.config.KMSKeyURI,
		},
		c.Logger(),
	)
	return withMetrics(c, baseUseCase, lifecycleUseCase.NewLifecycleUseCaseWithMetrics)
}
