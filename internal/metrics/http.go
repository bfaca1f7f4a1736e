package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// httpMetrics holds HTTP-specific metric instruments.
type httpMetrics struct {
	requestCounter metric.Int64Counter
	durationHisto  metric.Float64Histogram
}

// HTTPMetricsMiddleware returns a Gin middleware that records HTTP request metrics.
// Tracks total requests and request durations with method, path, and status_code labels.
// Catch-all routes such as /v1/sys/*path are labelled by their first segment
// (/v1/sys/mounts, /v1/sys/leases) so lease ids and mount paths never become labels.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	meter := meterProvider.Meter(namespace)

	requestCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	metrics := &httpMetrics{
		requestCounter: requestCounter,
		durationHisto:  durationHisto,
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		attrs := []attribute.KeyValue{
			attribute.String("method", c.Request.Method),
			attribute.String("path", sanitizePath(c.FullPath(), c.Request.URL.Path)),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		}

		metrics.requestCounter.Add(c.Request.Context(), 1, metric.WithAttributes(attrs...))
		metrics.durationHisto.Record(c.Request.Context(), duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

// sanitizePath turns the matched route into a low-cardinality label. Unmatched requests are
// "unknown". For a catch-all route only the first segment of the captured path is kept.
func sanitizePath(routePattern, requestPath string) string {
	if routePattern == "" {
		return "unknown"
	}

	idx := strings.Index(routePattern, "/*")
	if idx < 0 {
		return routePattern
	}

	prefix := routePattern[:idx]
	rest := strings.TrimPrefix(strings.TrimPrefix(requestPath, prefix), "/")
	segment, _, _ := strings.Cut(rest, "/")
	if segment == "" {
		return prefix
	}
	return prefix + "/" + segment
}
