// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	authUseCase "github.com/allisson/covert/internal/auth/usecase"
	"github.com/allisson/covert/internal/config"
	"github.com/allisson/covert/internal/database"
	"github.com/allisson/covert/internal/http"
	identityUseCase "github.com/allisson/covert/internal/identity/usecase"
	leaseUseCase "github.com/allisson/covert/internal/lease/usecase"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	lifecycleUseCase "github.com/allisson/covert/internal/lifecycle/usecase"
	"github.com/allisson/covert/internal/metrics"
	mountUseCase "github.com/allisson/covert/internal/mount/usecase"
	policyUseCase "github.com/allisson/covert/internal/policy/usecase"
	"github.com/allisson/covert/internal/system"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

// Container holds all application dependencies and provides methods to access them.
// Components are created on first access.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Repositories
	tokenRepository      authUseCase.TokenRepository
	auditLogRepository   authUseCase.AuditLogRepository
	sealConfigRepository lifecycleUseCase.SealConfigRepository
	policyRepository     policyUseCase.PolicyRepository
	entityRepository     identityUseCase.EntityRepository
	mountRepository      mountUseCase.MountRepository
	leaseRepository      leaseUseCase.LeaseRepository

	// Use Cases
	tokenUseCase     authUseCase.TokenUseCase
	auditLogUseCase  authUseCase.AuditLogUseCase
	lifecycleUseCase lifecycleUseCase.LifecycleUseCase
	policyUseCase    policyUseCase.PolicyUseCase
	identityUseCase  identityUseCase.IdentityUseCase
	mountUseCase     mountUseCase.MountUseCase
	leaseUseCase     leaseUseCase.LeaseUseCase

	// Servers and Workers
	systemRouter     *system.Router
	httpServer       *http.Server
	metricsServer    *http.MetricsServer
	expirationWorker *leaseUseCase.ExpirationWorker

	mu                       sync.Mutex
	loggerInit               sync.Once
	dbInit                   sync.Once
	txManagerInit            sync.Once
	metricsProviderInit      sync.Once
	businessMetricsInit      sync.Once
	tokenRepositoryInit      sync.Once
	auditLogRepositoryInit   sync.Once
	sealConfigRepositoryInit sync.Once
	policyRepositoryInit     sync.Once
	entityRepositoryInit     sync.Once
	mountRepositoryInit      sync.Once
	leaseRepositoryInit      sync.Once
	tokenUseCaseInit         sync.Once
	auditLogUseCaseInit      sync.Once
	lifecycleUseCaseInit     sync.Once
	policyUseCaseInit        sync.Once
	identityUseCaseInit      sync.Once
	mountUseCaseInit         sync.Once
	leaseUseCaseInit         sync.Once
	systemRouterInit         sync.Once
	httpServerInit           sync.Once
	metricsServerInit        sync.Once
	expirationWorkerInit     sync.Once
	initErrors               map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection. The memory driver has none.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Shutdown performs cleanup of all initialized resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Sealing wipes the root key from memory.
	if c.lifecycleUseCase != nil && c.lifecycleUseCase.State() == lifecycleDomain.StateUnsealed {
		if err := c.lifecycleUseCase.Seal(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("seal: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates a JSON logger at the configured level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

func (c *Container) initDB() (*sql.DB, error) {
	switch c.config.DBDriver {
	case DriverPostgres, DriverMySQL:
	case DriverMemory:
		return nil, fmt.Errorf("the %s driver has no database connection", DriverMemory)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (c *Container) initTxManager() (database.TxManager, error) {
	if c.config.DBDriver == DriverMemory {
		return database.NewMemoryTxManager(), nil
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// withMetrics wraps useCase with decorate when metrics are enabled.
func withMetrics[T any](c *Container, useCase T, decorate func(T, metrics.BusinessMetrics) T) (T, error) {
	if !c.config.MetricsEnabled {
		return useCase, nil
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get business metrics: %w", err)
	}
	return decorate(useCase, businessMetrics), nil
}

// lazy runs init once and remembers its result or error under name.
func lazy[T any](c *Container, once *sync.Once, name string, target *T, init func() (T, error)) (T, error) {
	once.Do(func() {
		value, err := init()
		if err != nil {
			c.initErrors[name] = fmt.Errorf("failed to initialize %s: %w", name, err)
			return
		}
		*target = value
	})
	if storedErr, exists := c.initErrors[name]; exists {
		var zero T
		return zero, storedErr
	}
	return *target, nil
}

// selectRepository picks the repository implementation for the configured driver.
func selectRepository[T any](
	c *Container,
	postgres func(*sql.DB) T,
	mysql func(*sql.DB) T,
	memory func() T,
) (T, error) {
	var zero T

	if c.config.DBDriver == DriverMemory {
		return memory(), nil
	}

	db, err := c.DB()
	if err != nil {
		return zero, err
	}

	switch c.config.DBDriver {
	case DriverPostgres:
		return postgres(db), nil
	case DriverMySQL:
		return mysql(db), nil
	default:
		return zero, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}
