package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/allisson/covert/internal/app"
)

// RunMigrations applies all pending migrations for driver. The memory driver keeps no
// schema and is a no-op.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	if driver == app.DriverMemory {
		logger.Info("memory driver selected, no migrations to run")
		return nil
	}

	var migrationsPath string
	switch driver {
	case app.DriverPostgres:
		migrationsPath = "file://migrations/postgresql"
	case app.DriverMySQL:
		migrationsPath = "file://migrations/mysql"
	default:
		return fmt.Errorf("unsupported database driver: %s", driver)
	}

	logger.Info("running database migrations",
		slog.String("driver", driver),
		slog.String("source", migrationsPath),
	)

	m, err := migrate.New(migrationsPath, connectionString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}
