package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/covert/internal/app"
	"github.com/allisson/covert/internal/config"
)

// shutdowner is implemented by the API and metrics servers.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// RunServer starts the API server, the metrics server and the lease expiration worker.
// Blocks until SIGINT/SIGTERM or a fatal server error, then stops the servers within
// DBConnMaxLifetime and seals the process on container shutdown.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version), slog.String("db_driver", cfg.DBDriver))

	defer closeContainer(container, logger)

	// Building the server initializes every dependency.
	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	worker, err := container.ExpirationWorker()
	if err != nil {
		return fmt.Errorf("failed to initialize expiration worker: %w", err)
	}

	if err := container.StartLifecycle(ctx); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 3)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErr <- fmt.Errorf("expiration worker error: %w", err)
		}
	}()

	servers := []shutdowner{server}
	if metricsServer != nil {
		servers = append(servers, metricsServer)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return shutdownServers(cfg, servers)
	case err := <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", err))
		cancel()
		return errors.Join(err, shutdownServers(cfg, servers))
	}
}

func shutdownServers(cfg *config.Config, servers []shutdowner) error {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	var shutdownErrors []error
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("server shutdown: %w", err))
		}
	}
	return errors.Join(shutdownErrors...)
}
