package http

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/portfolio-rag/internal/http"

// HTTPMetrics records per-route request counts, latency and response size.
type HTTPMetrics struct {
	meter        metric.Meter
	logger       *zap.Logger
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	responseSize metric.Int64Histogram
}

// NewHTTPMetrics registers the instruments on the global meter provider.
func NewHTTPMetrics(logger *zap.Logger) *HTTPMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

// init leaves an instrument nil when creation fails; the middleware skips it.
func (m *HTTPMetrics) init() {
	var err error

	m.requests, err = m.meter.Int64Counter(
		"portfolio_rag.http.requests_total",
		metric.WithDescription("HTTP requests by method, endpoint and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	// Chat latency is dominated by the LLM call, hence the long tail.
	m.duration, err = m.meter.Float64Histogram(
		"portfolio_rag.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds by method, endpoint and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = m.meter.Int64Histogram(
		"portfolio_rag.http.response_size_bytes",
		metric.WithDescription("HTTP response body size in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000),
	)
	if err != nil {
		m.logger.Warn("failed to create response size histogram", zap.Error(err))
	}
}

// MetricsMiddleware records one observation per request once the response
// status is known.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Render now so the recorded status is the one the client sees.
				c.Error(err)
			}

			ctx := c.Request().Context()
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("endpoint", normalizePath(c.Path())),
				attribute.Int("status", c.Response().Status),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			return nil
		}
	}
}

// normalizePath maps an unmatched route to "/" so 404s share one series.
// All registered routes are static, so c.Path() is already low-cardinality.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
