package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PromQL queries over the metrics portfolio-rag exposes on /metrics.
const (
	queryChatRate      = `sum(rate(portfolio_rag_chat_requests_total[1m])) * 60`
	queryNoInformation = `sum(rate(portfolio_rag_chat_requests_total{outcome="no_information"}[5m])) / sum(rate(portfolio_rag_chat_requests_total[5m]))`
	queryChatErrors    = `sum(rate(portfolio_rag_chat_requests_total{outcome=~"error|unavailable|generation_error"}[5m])) * 60`
	queryStageHits     = `sum(rate(portfolio_rag_retrieval_stage_total{stage="%s",outcome="hit"}[5m])) / sum(rate(portfolio_rag_retrieval_stage_total{stage="%s"}[5m]))`
	queryStageP95      = `histogram_quantile(0.95, sum by (le) (rate(portfolio_rag_retrieval_stage_duration_seconds_bucket{stage="%s"}[5m])))`
	queryMemory        = `process_resident_memory_bytes{job=~"%s"}`
	queryGoroutines    = `go_goroutines{job=~"%s"}`
	queryUptime        = `time() - process_start_time_seconds{job=~"%s"}`
)

// MetricsClient queries a Prometheus-compatible HTTP API such as Prometheus
// or VictoriaMetrics.
type MetricsClient struct {
	baseURL string
	job     string
	client  *http.Client
}

// QueryResult represents the query API response
type QueryResult struct {
	Status string    `json:"status"`
	Data   QueryData `json:"data"`
}

// QueryData holds the query result data
type QueryData struct {
	ResultType string         `json:"resultType"`
	Result     []MetricResult `json:"result"`
}

// MetricResult represents a single metric result
type MetricResult struct {
	Metric map[string]string `json:"metric"`
	Value  [2]interface{}    `json:"value"`
}

// NewMetricsClient creates a new metrics client. job selects the scrape job
// for process metrics; empty matches any job.
func NewMetricsClient(baseURL, job string) *MetricsClient {
	if job == "" {
		job = ".*"
	}
	return &MetricsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		job:     job,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// Query executes an instant PromQL query
func (c *MetricsClient) Query(ctx context.Context, query string) (QueryResult, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/query")
	if err != nil {
		return QueryResult{}, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return QueryResult{}, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var result QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return QueryResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return result, nil
}

func (c *MetricsClient) queryFloat(ctx context.Context, query string) (float64, error) {
	result, err := c.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	return extractFloatValue(result)
}

// QueryChatRate returns chat questions per minute
func (c *MetricsClient) QueryChatRate(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, queryChatRate)
}

// QueryChatErrors returns failed chat questions per minute
func (c *MetricsClient) QueryChatErrors(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, queryChatErrors)
}

// QueryNoInformationRatio returns the share of questions answered with the
// no-information apology.
func (c *MetricsClient) QueryNoInformationRatio(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, queryNoInformation)
}

// QueryStageHitRatio returns how often a retrieval stage returned results
func (c *MetricsClient) QueryStageHitRatio(ctx context.Context, stage string) (float64, error) {
	return c.queryFloat(ctx, fmt.Sprintf(queryStageHits, stage, stage))
}

// QueryStageLatencyP95 returns a retrieval stage's p95 latency in seconds
func (c *MetricsClient) QueryStageLatencyP95(ctx context.Context, stage string) (float64, error) {
	return c.queryFloat(ctx, fmt.Sprintf(queryStageP95, stage))
}

// QueryMemoryMB returns the server's resident memory in MB
func (c *MetricsClient) QueryMemoryMB(ctx context.Context) (float64, error) {
	bytes, err := c.queryFloat(ctx, fmt.Sprintf(queryMemory, c.job))
	return bytes / (1024 * 1024), err
}

// QueryGoroutines returns the server's goroutine count
func (c *MetricsClient) QueryGoroutines(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, fmt.Sprintf(queryGoroutines, c.job))
}

// QueryUptime returns the server's uptime in seconds
func (c *MetricsClient) QueryUptime(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, fmt.Sprintf(queryUptime, c.job))
}

// extractFloatValue extracts a float value from query result. NaN, as
// returned for ratios with no traffic, reads as zero.
func extractFloatValue(result QueryResult) (float64, error) {
	if len(result.Data.Result) == 0 {
		return 0, nil
	}

	valueStr, ok := result.Data.Result[0].Value[1].(string)
	if !ok {
		return 0, fmt.Errorf("value is not a string")
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse value: %w", err)
	}
	if math.IsNaN(value) {
		return 0, nil
	}

	return value, nil
}
