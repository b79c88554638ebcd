package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestMetrics(t *testing.T) (*HTTPMetrics, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := &HTTPMetrics{meter: mp.Meter(httpInstrumentationName), logger: zap.NewNop()}
	m.init()
	return m, reader
}

// requestCounts returns requests_total keyed by "endpoint status".
func requestCounts(t *testing.T, reader *metric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "portfolio_rag.http.requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[endpoint.AsString()+" "+status.Emit()] += dp.Value
			}
		}
	}
	return counts
}

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	m, reader := newTestMetrics(t)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/api/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/chat", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "Message cannot be empty")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/health"},
		{http.MethodGet, "/api/health"},
		{http.MethodPost, "/api/chat"},
	} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r.method, r.path, nil))
	}

	assert.Equal(t, map[string]int64{
		"/api/health 200": 2,
		"/api/chat 400":   1,
	}, requestCounts(t, reader))
}

func TestHTTPMetrics_RecordsDurationAndSize(t *testing.T) {
	m, reader := newTestMetrics(t)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Portfolio RAG API is running")
	})
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]uint64{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			switch data := mt.Data.(type) {
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					found[mt.Name] += dp.Count
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					found[mt.Name] += dp.Count
					assert.EqualValues(t, len("Portfolio RAG API is running"), dp.Sum)
				}
			}
		}
	}
	assert.Equal(t, uint64(1), found["portfolio_rag.http.request_duration_seconds"])
	assert.Equal(t, uint64(1), found["portfolio_rag.http.response_size_bytes"])
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", normalizePath(""))
	assert.Equal(t, "/api/chat", normalizePath("/api/chat"))
}
