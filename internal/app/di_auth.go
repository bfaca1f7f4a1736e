package app

import (
	"database/sql"
	"fmt"

	authRepository "github.com/allisson/covert/internal/auth/repository"
	authService "github.com/allisson/covert/internal/auth/service"
	authUseCase "github.com/allisson/covert/internal/auth/usecase"
)

// TokenRepository returns the token repository for the configured driver.
func (c *Container) TokenRepository() (authUseCase.TokenRepository, error) {
	return lazy(c, &c.tokenRepositoryInit, "tokenRepository", &c.tokenRepository,
		func() (authUseCase.TokenRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) authUseCase.TokenRepository { return authRepository.NewPostgreSQLTokenRepository(db) },
				func(db *sql.DB) authUseCase.TokenRepository { return authRepository.NewMySQLTokenRepository(db) },
				func() authUseCase.TokenRepository { return authRepository.NewMemoryTokenRepository() },
			)
		})
}

// AuditLogRepository returns the audit log repository for the configured driver.
func (c *Container) AuditLogRepository() (authUseCase.AuditLogRepository, error) {
	return lazy(c, &c.auditLogRepositoryInit, "auditLogRepository", &c.auditLogRepository,
		func() (authUseCase.AuditLogRepository, error) {
			return selectRepository(c,
				func(db *sql.DB) authUseCase.AuditLogRepository {
					return authRepository.NewPostgreSQLAuditLogRepository(db)
				},
				func(db *sql.DB) authUseCase.AuditLogRepository { return authRepository.NewMySQLAuditLogRepository(db) },
				func() authUseCase.AuditLogRepository { return authRepository.NewMemoryAuditLogRepository() },
			)
		})
}

// TokenUseCase returns the token use case.
func (c *Container) TokenUseCase() (authUseCase.TokenUseCase, error) {
	return lazy(c, &c.tokenUseCaseInit, "tokenUseCase", &c.tokenUseCase, c.initTokenUseCase)
}

// AuditLogUseCase returns the audit log use case. Entries are signed with a key derived
// from the root key, so it depends on the lifecycle.
func (c *Container) AuditLogUseCase() (authUseCase.AuditLogUseCase, error) {
	return lazy(c, &c.auditLogUseCaseInit, "auditLogUseCase", &c.auditLogUseCase, c.initAuditLogUseCase)
}

func (c *Container) initTokenUseCase() (authUseCase.TokenUseCase, error) {
	tokenRepository, err := c.TokenRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get token repository for token use case: %w", err)
	}

	baseUseCase := authUseCase.NewTokenUseCase(tokenRepository, authService.NewTokenService())
	return withMetrics(c, baseUseCase, authUseCase.NewTokenUseCaseWithMetrics)
}

func (c *Container) initAuditLogUseCase() (authUseCase.AuditLogUseCase, error) {
	auditLogRepository, err := c.AuditLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log repository for audit log use case: %w", err)
	}

	lifecycle, err := c.LifecycleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle use case for audit log use case: %w", err)
	}

	baseUseCase := authUseCase.NewAuditLogUseCase(auditLogRepository, lifecycle, authService.NewAuditSigner())
	return withMetrics(c, baseUseCase, authUseCase.NewAuditLogUseCaseWithMetrics)
}
