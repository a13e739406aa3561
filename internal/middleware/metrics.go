package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/contest-radar/backend/internal/infrastructure"
)

// MetricsMiddleware records request duration and count per route. The
// scrape endpoint itself is not recorded.
func MetricsMiddleware(metrics *infrastructure.TelemetryMetrics, metricsPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == metricsPath {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.String("http.status_class", strconv.Itoa(status/100)+"xx"),
		)

		ctx := c.Request.Context()
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.HTTPRequestCount.Add(ctx, 1, attrs)
	}
}
