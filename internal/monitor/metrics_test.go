package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorResult(value string) QueryResult {
	return QueryResult{
		Status: "success",
		Data: QueryData{
			ResultType: "vector",
			Result: []MetricResult{
				{
					Metric: map[string]string{},
					Value:  [2]interface{}{float64(1699564800), value},
				},
			},
		},
	}
}

// queryServer answers every query with value and records the queries.
func queryServer(t *testing.T, value string, queries *[]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query", r.URL.Path)
		*queries = append(*queries, r.URL.Query().Get("query"))
		_ = json.NewEncoder(w).Encode(vectorResult(value))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewMetricsClient(t *testing.T) {
	client := NewMetricsClient("http://localhost:9090/", "")
	assert.Equal(t, "http://localhost:9090", client.baseURL)
	assert.Equal(t, ".*", client.job)
	assert.NotNil(t, client.client)

	assert.Equal(t, "portfolio-rag", NewMetricsClient("http://x", "portfolio-rag").job)
}

func TestMetricsClient_Query_Success(t *testing.T) {
	var queries []string
	server := queryServer(t, "1", &queries)

	result, err := NewMetricsClient(server.URL, "").Query(context.Background(), "up")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "vector", result.Data.ResultType)
	require.Len(t, result.Data.Result, 1)
	assert.Equal(t, "1", result.Data.Result[0].Value[1])
	assert.Equal(t, []string{"up"}, queries)
}

func TestMetricsClient_Query_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewMetricsClient(server.URL, "").Query(ctx, "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestMetricsClient_Query_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewMetricsClient(server.URL, "").Query(context.Background(), "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 500")
}

func TestMetricsClient_Query_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{invalid json"))
	}))
	defer server.Close()

	_, err := NewMetricsClient(server.URL, "").Query(context.Background(), "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestMetricsClient_Helpers(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		query func(c *MetricsClient) (float64, error)
		want  string
	}{
		{
			name:  "chat rate",
			query: func(c *MetricsClient) (float64, error) { return c.QueryChatRate(ctx) },
			want:  "sum(rate(portfolio_rag_chat_requests_total[1m])) * 60",
		},
		{
			name:  "chat errors",
			query: func(c *MetricsClient) (float64, error) { return c.QueryChatErrors(ctx) },
			want:  `outcome=~"error|unavailable|generation_error"`,
		},
		{
			name:  "no information",
			query: func(c *MetricsClient) (float64, error) { return c.QueryNoInformationRatio(ctx) },
			want:  `outcome="no_information"`,
		},
		{
			name:  "stage hits",
			query: func(c *MetricsClient) (float64, error) { return c.QueryStageHitRatio(ctx, "similarity") },
			want:  `portfolio_rag_retrieval_stage_total{stage="similarity",outcome="hit"}`,
		},
		{
			name:  "stage latency",
			query: func(c *MetricsClient) (float64, error) { return c.QueryStageLatencyP95(ctx, "direct") },
			want:  `portfolio_rag_retrieval_stage_duration_seconds_bucket{stage="direct"}`,
		},
		{
			name:  "goroutines",
			query: func(c *MetricsClient) (float64, error) { return c.QueryGoroutines(ctx) },
			want:  `go_goroutines{job=~"portfolio-rag"}`,
		},
		{
			name:  "uptime",
			query: func(c *MetricsClient) (float64, error) { return c.QueryUptime(ctx) },
			want:  "time() - process_start_time_seconds",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var queries []string
			server := queryServer(t, "45.7", &queries)

			v, err := tt.query(NewMetricsClient(server.URL, "portfolio-rag"))
			require.NoError(t, err)
			assert.InDelta(t, 45.7, v, 0.001)
			require.Len(t, queries, 1)
			assert.Contains(t, queries[0], tt.want)
		})
	}
}

func TestMetricsClient_QueryMemoryMB(t *testing.T) {
	var queries []string
	server := queryServer(t, "67108864", &queries)

	mb, err := NewMetricsClient(server.URL, "").QueryMemoryMB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64.0, mb)
	assert.Equal(t, []string{`process_resident_memory_bytes{job=~".*"}`}, queries)
}

func TestExtractFloatValue(t *testing.T) {
	v, err := extractFloatValue(QueryResult{})
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = extractFloatValue(vectorResult("NaN"))
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = extractFloatValue(vectorResult("abc"))
	assert.ErrorContains(t, err, "failed to parse value")

	bad := vectorResult("1")
	bad.Data.Result[0].Value[1] = 1.0
	_, err = extractFloatValue(bad)
	assert.ErrorContains(t, err, "value is not a string")
}
