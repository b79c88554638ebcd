package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
)

// HealthClient reads /api/health from a running portfolio-rag server.
type HealthClient struct {
	baseURL string
	client  *http.Client
}

// NewHealthClient creates a client for the server at baseURL.
func NewHealthClient(baseURL string, timeout time.Duration) *HealthClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// URL returns the health endpoint.
func (c *HealthClient) URL() string {
	return c.baseURL + "/api/health"
}

// Fetch returns the server's health report. A non-200 response is an error
// carrying the start of the body.
func (c *HealthClient) Fetch(ctx context.Context) (*chat.HealthReport, error) {
	url := c.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return nil, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var report chat.HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &report, nil
}
