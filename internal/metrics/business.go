package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics defines the interface for recording control-plane metrics.
// Operation counts and durations are labelled by domain (lifecycle, mount, policy, identity,
// token, lease, audit). Lease revocations and the seal state have dedicated instruments.
type BusinessMetrics interface {
	// RecordOperation records a business operation with its status.
	// Operation examples: "unseal", "mount_disable", "lease_revoke_by_token"
	// Status examples: "success", "error"
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration records the duration of a business operation with its status.
	// Duration is recorded in seconds as a histogram for percentile calculations.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordLeasesRevoked adds count to the revoked leases counter. Trigger names what caused
	// the revocation: "lease", "mount", "token" or "expiration".
	RecordLeasesRevoked(ctx context.Context, trigger string, count int)

	// RecordSealed sets the sealed gauge to 1 when sealed and 0 when unsealed.
	RecordSealed(ctx context.Context, sealed bool)
}

// businessMetrics implements BusinessMetrics using OpenTelemetry metrics.
type businessMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
	revokedCounter   metric.Int64Counter
	sealedGauge      metric.Int64Gauge
}

// NewBusinessMetrics creates a new BusinessMetrics implementation using the provided meter provider.
// The namespace parameter is used as a prefix for all metric names (e.g., "covert").
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_operations_total", namespace),
		metric.WithDescription("Total number of business operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_operation_duration_seconds", namespace),
		metric.WithDescription("Duration of business operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	revokedCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_leases_revoked_total", namespace),
		metric.WithDescription("Total number of revoked leases"),
		metric.WithUnit("{lease}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create revoked leases counter: %w", err)
	}

	sealedGauge, err := meter.Int64Gauge(
		fmt.Sprintf("%s_sealed", namespace),
		metric.WithDescription("Whether the service is sealed (1) or unsealed (0)"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sealed gauge: %w", err)
	}

	return &businessMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
		revokedCounter:   revokedCounter,
		sealedGauge:      sealedGauge,
	}, nil
}

// RecordOperation increments the operation counter with domain, operation, and status labels.
func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordDuration records the operation duration in seconds with domain, operation, and status labels.
func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("domain", domain),
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

func (b *businessMetrics) RecordLeasesRevoked(ctx context.Context, trigger string, count int) {
	if count <= 0 {
		return
	}
	b.revokedCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (b *businessMetrics) RecordSealed(ctx context.Context, sealed bool) {
	var value int64
	if sealed {
		value = 1
	}
	b.sealedGauge.Record(ctx, value)
}

// NoOpBusinessMetrics is a no-op implementation of BusinessMetrics for when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

// RecordOperation does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {}

// RecordDuration does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
}

// RecordLeasesRevoked does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordLeasesRevoked(ctx context.Context, trigger string, count int) {}

// RecordSealed does nothing when metrics are disabled.
func (n *NoOpBusinessMetrics) RecordSealed(ctx context.Context, sealed bool) {}
