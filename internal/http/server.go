// Package http provides the HTTP transport of the control-plane router.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/covert/internal/config"
	lifecycleDomain "github.com/allisson/covert/internal/lifecycle/domain"
	"github.com/allisson/covert/internal/metrics"
	"github.com/allisson/covert/internal/system"
)

// DBPinger reports whether the storage backend is reachable.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// Server represents the API HTTP server.
type Server struct {
	db     DBPinger
	state  system.StateReader
	router *gin.Engine
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new HTTP server. SetupRouter must be called before Start.
func NewServer(db DBPinger, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the gin engine: health endpoints plus /v1/sys/* dispatched to router.
func (s *Server) SetupRouter(
	cfg *config.Config,
	router *system.Router,
	state system.StateReader,
	metricsProvider *metrics.Provider,
) {
	s.state = state

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	engine.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg, s.logger); corsMiddleware != nil {
		engine.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		engine.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	engine.GET("/health", s.healthHandler)
	engine.GET("/ready", s.readinessHandler)

	v1 := engine.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	handler := NewSystemHandler(router, s.logger)
	v1.Any("/sys/*path", handler.Handle)

	s.router = engine
	s.server.Handler = engine
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router is not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only when storage answers and the service is unsealed.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	components := gin.H{}

	if s.db == nil || s.db.PingContext(ctx) != nil {
		ready = false
		components["database"] = "error"
	} else {
		components["database"] = "ok"
	}

	if s.state == nil {
		ready = false
		components["lifecycle"] = "unknown"
	} else {
		state := s.state.State()
		components["lifecycle"] = string(state)
		if state != lifecycleDomain.StateUnsealed {
			ready = false
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}
