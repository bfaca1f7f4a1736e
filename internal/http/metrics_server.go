package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/covert/internal/config"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	"github.com/allisson/covert/internal/metrics"
	"github.com/allisson/covert/internal/system"
)

// MetricsServer serves Prometheus metrics on a dedicated port.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer creates a MetricsServer listening on ServerHost:MetricsPort. The sealed
// gauge is refreshed from state before every scrape so it is accurate from startup on.
func NewMetricsServer(
	cfg *config.Config,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
	businessMetrics metrics.BusinessMetrics,
	state system.StateReader,
) *MetricsServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))

	handler := gin.WrapH(metricsProvider.Handler())
	router.GET("/metrics", func(c *gin.Context) {
		switch state.State() {
		case lifecycleDomain.StateSealed:
			businessMetrics.RecordSealed(c.Request.Context(), true)
		case lifecycleDomain.StateUnsealed:
			businessMetrics.RecordSealed(c.Request.Context(), false)
		}
		handler(c)
	})

	return &MetricsServer{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.MetricsPort),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the metrics HTTP server.
func (s *MetricsServer) Start(ctx context.Context) error {
	s.logger.Info("starting metrics server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the metrics HTTP server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.server.Shutdown(ctx)
}
