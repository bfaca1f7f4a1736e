package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a business metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func TestNewBusinessMetrics(t *testing.T) {
	t.Run("Success_CreateBusinessMetrics", func(t *testing.T) {
		provider, err := NewProvider("test_app")
		require.NoError(t, err)

		businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")

		require.NoError(t, err)
		assert.NotNil(t, businessMetrics)
	})
}

func TestBusinessMetrics_RecordOperation(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	t.Run("Success_RecordSuccessfulOperation", func(t *testing.T) {
		// Should not panic
		bm.RecordOperation(context.Background(), "mount", "mount_create", "success")
	})

	t.Run("Success_RecordFailedOperation", func(t *testing.T) {
		// Should not panic
		bm.RecordOperation(context.Background(), "mount", "mount_create", "error")
	})

	t.Run("Success_RecordMultipleDomains", func(t *testing.T) {
		bm.RecordOperation(context.Background(), "mount", "mount_create", "success")
		bm.RecordOperation(context.Background(), "lease", "lease_renew", "success")
		bm.RecordOperation(context.Background(), "lifecycle", "unseal", "error")
	})
}

func TestBusinessMetrics_RecordDuration(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)

	t.Run("Success_RecordSuccessfulDuration", func(t *testing.T) {
		// Should not panic
		bm.RecordDuration(context.Background(), "mount", "mount_create", 123*time.Millisecond, "success")
	})

	t.Run("Success_RecordFailedDuration", func(t *testing.T) {
		// Should not panic
		bm.RecordDuration(context.Background(), "mount", "mount_create", 456*time.Millisecond, "error")
	})

	t.Run("Success_RecordMultipleDomains", func(t *testing.T) {
		bm.RecordDuration(context.Background(), "mount", "mount_create", 100*time.Millisecond, "success")
		bm.RecordDuration(context.Background(), "lease", "lease_renew", 200*time.Millisecond, "success")
		bm.RecordDuration(context.Background(), "lifecycle", "unseal", 300*time.Millisecond, "error")
	})
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBusinessMetrics()

	assert.NotNil(t, noOpMetrics)
	assert.IsType(t, &NoOpBusinessMetrics{}, noOpMetrics)

	t.Run("NoOp_RecordOperationDoesNotPanic", func(t *testing.T) {
		// Should not panic or do anything
		noOpMetrics.RecordOperation(context.Background(), "mount", "mount_create", "success")
		noOpMetrics.RecordOperation(context.Background(), "lease", "lease_renew", "error")
	})

	t.Run("NoOp_RecordDurationDoesNotPanic", func(t *testing.T) {
		// Should not panic or do anything
		noOpMetrics.RecordDuration(
			context.Background(),
			"mount",
			"mount_create",
			100*time.Millisecond,
			"success",
		)
		noOpMetrics.RecordDuration(context.Background(), "lease", "lease_renew", 200*time.Millisecond, "error")
	})

	t.Run("NoOp_DomainInstrumentsDoNotPanic", func(t *testing.T) {
		noOpMetrics.RecordLeasesRevoked(context.Background(), "mount", 3)
		noOpMetrics.RecordSealed(context.Background(), true)
	})
}

func TestBusinessMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	// Record various operations
	ctx := context.Background()

	// Record operation counts
	bm.RecordOperation(ctx, "mount", "mount_create", "success")
	bm.RecordOperation(ctx, "mount", "mount_create", "success")
	bm.RecordOperation(ctx, "mount", "mount_create", "error")
	bm.RecordOperation(ctx, "lease", "lease_renew", "success")
	bm.RecordOperation(ctx, "lease", "lease_revoke", "success")
	bm.RecordOperation(ctx, "lifecycle", "unseal", "success")

	// Record operation durations
	bm.RecordDuration(ctx, "mount", "mount_create", 50*time.Millisecond, "success")
	bm.RecordDuration(ctx, "mount", "mount_create", 60*time.Millisecond, "success")
	bm.RecordDuration(ctx, "mount", "mount_create", 100*time.Millisecond, "error")
	bm.RecordDuration(ctx, "lease", "lease_renew", 10*time.Millisecond, "success")
	bm.RecordDuration(ctx, "lease", "lease_revoke", 20*time.Millisecond, "success")
	bm.RecordDuration(ctx, "lifecycle", "unseal", 150*time.Millisecond, "success")

	// Metrics should be recorded without errors
	// Verify metrics in Prometheus registry
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)

	output := w.Body.String()

	// Check operation counts
	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="mount".*operation="mount_create".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="mount".*operation="mount_create".*status="error"`,
		`1`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operations_total`,
		`domain="lease".*operation="lease_renew".*status="success"`,
		`1`,
	)

	// Check durations (existence)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operation_duration_seconds_count`,
		`domain="mount".*operation="mount_create".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`integration_test_operation_duration_seconds_sum`,
		`domain="mount".*operation="mount_create".*status="success"`,
		``,
	)
}

func TestBusinessMetrics_DomainInstruments(t *testing.T) {
	provider, err := NewProvider("covert_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "covert_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordLeasesRevoked(ctx, "mount", 5)
	bm.RecordLeasesRevoked(ctx, "mount", 2)
	bm.RecordLeasesRevoked(ctx, "token", 3)
	bm.RecordLeasesRevoked(ctx, "expiration", 0)
	bm.RecordSealed(ctx, true)
	bm.RecordSealed(ctx, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	provider.Handler().ServeHTTP(w, req)
	output := w.Body.String()

	assertBizMetricLine(t, output, `covert_test_leases_revoked_total`, `trigger="mount"`, `7`)
	assertBizMetricLine(t, output, `covert_test_leases_revoked_total`, `trigger="token"`, `3`)
	assert.NotContains(t, output, `trigger="expiration"`)
	assert.Regexp(t, `covert_test_sealed\{[^}]*\} 0`, output)
}
