package app

import (
	"context"
	"fmt"

	"github.com/allisson/covert/internal/http"
	"github.com/allisson/covert/internal/system"
)

// noopPinger stands in for the database in readiness checks under the memory driver.
type noopPinger struct{}

func (noopPinger) PingContext(context.Context) error { return nil }

// SystemRouter returns the router that gates and dispatches every sys/ request.
func (c *Container) SystemRouter() (*system.Router, error) {
	return lazy(c, &c.systemRouterInit, "systemRouter", &c.systemRouter, c.initSystemRouter)
}

// HTTPServer returns the API server.
func (c *Container) HTTPServer() (*http.Server, error) {
	return lazy(c, &c.httpServerInit, "httpServer", &c.httpServer, c.initHTTPServer)
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	return lazy(c, &c.metricsServerInit, "metricsServer", &c.metricsServer,
		func() (*http.MetricsServer, error) {
			provider, err := c.MetricsProvider()
			if err != nil {
				return nil, err
			}
			if provider == nil {
				return nil, nil
			}
			businessMetrics, err := c.BusinessMetrics()
			if err != nil {
				return nil, err
			}
			lifecycle, err := c.LifecycleUseCase()
			if err != nil {
				return nil, err
			}
			return http.NewMetricsServer(c.config, c.Logger(), provider, businessMetrics, lifecycle), nil
		})
}

func (c *Container) initSystemRouter() (*system.Router, error) {
	lifecycle, err := c.LifecycleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle use case for router: %w", err)
	}
	mounts, err := c.MountUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get mount use case for router: %w", err)
	}
	policies, err := c.PolicyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get policy use case for router: %w", err)
	}
	identity, err := c.IdentityUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get identity use case for router: %w", err)
	}
	tokens, err := c.TokenUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get token use case for router: %w", err)
	}
	leases, err := c.LeaseUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease use case for router: %w", err)
	}
	auditLogs, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for router: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for router: %w", err)
	}

	logger := c.Logger()
	handlers := system.NewHandlers(lifecycle, mounts, policies, identity, tokens, leases, logger)

	return system.NewRouter(system.RouterConfig{
		State:    lifecycle,
		Tokens:   tokens,
		Entities: identity,
		Policies: policies,
		Audit:    auditLogs,
		Metrics:  businessMetrics,
		Logger:   logger,
	}, handlers.Routes()...)
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	router, err := c.SystemRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to get system router for http server: %w", err)
	}
	lifecycle, err := c.LifecycleUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle use case for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	var pinger http.DBPinger = noopPinger{}
	if c.config.DBDriver != DriverMemory {
		db, err := c.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get database for http server: %w", err)
		}
		pinger = db
	}

	server := http.NewServer(pinger, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, router, lifecycle, provider)
	return server, nil
}
