package app

import (
	"database/sql"
	"fmt"

	identityRepository "github.com/allisson/covert/internal/identity/repository"
	identityUseCase "github.com/allisson/covert/internal/identity/usecase"
	leaseRepository "github.com/allisson/covert/internal/lease/repository"
	leaseService "github.com/allisson/covert/internal/lease/service"
	leaseUseCase "github.com/allisson/covert/internal/lease/usecase"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	mountRepository "github.com/allisson/covert/internal/mount/repository"
	mountUseCase "github.com/allisson/covert/internal/mount/usecase"
	policyRepository "github.com/allisson/covert/internal/policy/repository"
	policyUseCase "github.com/allisson/covert/internal/policy/usecase"
)

// PolicyRepository returns the policy repository for the configured driver.
func (c *Container) PolicyRepository() (policyUseCase.PolicyRepository, error) {
	return lazy(c, &c.policyRepositoryInit, "policyRepository", &c.policyRepository,
		func() (policyUseCase.PolicyRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) policyUseCase.PolicyRepository { return policyRepository.NewPostgreSQLPolicyRepository(db) },
				func(db *sql.DB) policyUseCase.PolicyRepository { return policyRepository.NewMySQLPolicyRepository(db) },
				func() policyUseCase.PolicyRepository { return policyRepository.NewMemoryPolicyRepository() },
			)
		})
}

// EntityRepository returns the entity repository for the configured driver.
func (c *Container) EntityRepository() (identityUseCase.EntityRepository, error) {
	return lazy(c, &c.entityRepositoryInit, "entityRepository", &c.entityRepository,
		func() (identityUseCase.EntityRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) identityUseCase.EntityRepository {
					return identityRepository.NewPostgreSQLEntityRepository(db)
				},
				func(db *sql.DB) identityUseCase.EntityRepository { return identityRepository.NewMySQLEntityRepository(db) },
				func() identityUseCase.EntityRepository { return identityRepository.NewMemoryEntityRepository() },
			)
		})
}

// MountRepository returns the mount repository for the configured driver.
func (c *Container) MountRepository() (mountUseCase.MountRepository, error) {
	return lazy(c, &c.mountRepositoryInit, "mountRepository", &c.mountRepository,
		func() (mountUseCase.MountRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) mountUseCase.MountRepository { return mountRepository.NewPostgreSQLMountRepository(db) },
				func(db *sql.DB) mountUseCase.MountRepository { return mountRepository.NewMySQLMountRepository(db) },
				func() mountUseCase.MountRepository { return mountRepository.NewMemoryMountRepository() },
			)
		})
}

// LeaseRepository returns the lease repository for the configured driver.
func (c *Container) LeaseRepository() (leaseUseCase.LeaseRepository, error) {
	return lazy(c, &c.leaseRepositoryInit, "leaseRepository", &c.leaseRepository,
		func() (leaseUseCase.LeaseRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) leaseUseCase.LeaseRepository { return leaseRepository.NewPostgreSQLLeaseRepository(db) },
				func(db *sql.DB) leaseUseCase.LeaseRepository { return leaseRepository.NewMySQLLeaseRepository(db) },
				func() leaseUseCase.LeaseRepository { return leaseRepository.NewMemoryLeaseRepository() },
			)
		})
}

// PolicyUseCase returns the policy use case.
func (c *Container) PolicyUseCase() (policyUseCase.PolicyUseCase, error) {
	return lazy(c, &c.policyUseCaseInit, "policyUseCase", &c.policyUseCase,
		func() (policyUseCase.PolicyUseCase, error) {
			repository, err := c.PolicyRepository()
			if err != nil {
				return nil, fmt.Errorf("failed to get policy repository for policy use case: %w", err)
			}
			return withMetrics(c, policyUseCase.NewPolicyUseCase(repository), policyUseCase.NewPolicyUseCaseWithMetrics)
		})
}

// IdentityUseCase returns the identity use case.
func (c *Container) IdentityUseCase() (identityUseCase.IdentityUseCase, error) {
	return lazy(c, &c.identityUseCaseInit, "identityUseCase", &c.identityUseCase,
		func() (identityUseCase.IdentityUseCase, error) {
			txManager, err := c.TxManager()
			if err != nil {
				return nil, fmt.Errorf("failed to get tx manager for identity use case: %w", err)
			}
			repository, err := c.EntityRepository()
			if err != nil {
				return nil, fmt.Errorf("failed to get entity repository for identity use case: %w", err)
			}
			return withMetrics(
				c,
				identityUseCase.NewIdentityUseCase(txManager, repository),
				identityUseCase.NewIdentityUseCaseWithMetrics,
			)
		})
}

// MountUseCase returns the mount use case.
func (c *Container) MountUseCase() (mountUseCase.MountUseCase, error) {
	return lazy(c, &c.mountUseCaseInit, "mountUseCase", &c.mountUseCase,
		func() (mountUseCase.MountUseCase, error) {
			repository, err := c.MountRepository()
			if err != nil {
				return nil, fmt.Errorf("failed to get mount repository for mount use case: %w", err)
			}
			return withMetrics(c, mountUseCase.NewMountUseCase(repository), mountUseCase.NewMountUseCaseWithMetrics)
		})
}

// LeaseUseCase returns the lease manager. No secret engines are mounted in-process, so
// revocations go to the logging revoker.
func (c *Container) LeaseUseCase() (leaseUseCase.LeaseUseCase, error) {
	return lazy(c, &c.leaseUseCaseInit, "leaseUseCase", &c.leaseUseCase,
		func() (leaseUseCase.LeaseUseCase, error) {
			repository, err := c.LeaseRepository()
			if err != nil {
				return nil, fmt.Errorf("failed to get lease repository for lease use case: %w", err)
			}
			mounts, err := c.MountUseCase()
			if err != nil {
				return nil, fmt.Errorf("failed to get mount use case for lease use case: %w", err)
			}

			logger := c.Logger()
			baseUseCase := leaseUseCase.NewLeaseUseCase(
				leaseUseCase.Config{
					DefaultTTL:        c.config.LeaseDefaultTTL,
					MaxTTL:            c.config.LeaseMaxTTL,
					RevokeMaxRetries:  c.config.LeaseRevokeMaxRetries,
					RevokeConcurrency: c.config.LeaseRevokeConcurrency,
				},
				repository,
				mounts,
				leaseService.NewLoggingRevoker(logger),
				logger,
			)
			return withMetrics(c, baseUseCase, leaseUseCase.NewLeaseUseCaseWithMetrics)
		})
}

// ExpirationWorker returns the lease expiration worker. It only runs while unsealed.
func (c *Container) ExpirationWorker() (*leaseUseCase.ExpirationWorker, error) {
	return lazy(c, &c.expirationWorkerInit, "expirationWorker", &c.expirationWorker,
		func() (*leaseUseCase.ExpirationWorker, error) {
			leases, err := c.LeaseUseCase()
			if err != nil {
				return nil, fmt.Errorf("failed to get lease use case for expiration worker: %w", err)
			}
			lifecycle, err := c.LifecycleUseCase()
			if err != nil {
				return nil, fmt.Errorf("failed to get lifecycle use case for expiration worker: %w", err)
			}

			return leaseUseCase.NewExpirationWorker(
				leaseUseCase.WorkerConfig{
					Interval:  c.config.LeaseExpirationInterval,
					BatchSize: c.config.LeaseExpirationBatchSize,
				},
				leases,
				func() bool { return lifecycle.State() == lifecycleDomain.StateUnsealed },
				c.Logger(),
			), nil
		})
}
