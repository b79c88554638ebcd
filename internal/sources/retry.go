package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// RetryConfig configures retry behavior for GitHub API calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the initial backoff duration.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps both exponential and rate limit backoff.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration for GitHub API calls.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()

	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

// withRetry retries a GitHub API operation with exponential backoff,
// waiting for the rate limit reset when the API reports one.
func withRetry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, op func() (*github.Response, error)) (*github.Response, error) {
	cfg.ApplyDefaults()

	var (
		lastErr  error
		lastResp *github.Response
		backoff  = cfg.InitialBackoff
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		resp, err := op()
		if err == nil {
			if attempt > 0 {
				logger.Debug("GitHub API call recovered", zap.Int("attempts", attempt+1))
			}
			return resp, nil
		}
		lastErr, lastResp = err, resp

		if !isRetryable(err, resp) || attempt == cfg.MaxRetries {
			break
		}

		if isRateLimited(resp) {
			backoff = rateLimitBackoff(resp, cfg.MaxBackoff)
		}
		logger.Info("retrying GitHub API call",
			zap.Int("attempt", attempt+1),
			zap.Int("status_code", statusCode(resp)),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(time.Duration(float64(backoff)*cfg.BackoffMultiplier), cfg.MaxBackoff)
	}
	return lastResp, lastErr
}

// isRetryable reports whether a failed call may succeed later. Errors
// without a response are network failures and are retried.
func isRetryable(err error, resp *github.Response) bool {
	if err == nil {
		return false
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return true
	}
	if resp == nil || resp.Response == nil {
		return true
	}
	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return true
	case code == http.StatusForbidden:
		return resp.Rate.Limit > 0 && resp.Rate.Remaining == 0
	default:
		return code >= 500 && code < 600
	}
}

func isRateLimited(resp *github.Response) bool {
	if resp == nil || resp.Response == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Rate.Limit > 0)
}

// rateLimitBackoff waits until the reported reset, capped at maxBackoff.
func rateLimitBackoff(resp *github.Response, maxBackoff time.Duration) time.Duration {
	if resp.Rate.Reset.Time.IsZero() {
		return maxBackoff
	}
	backoff := time.Until(resp.Rate.Reset.Time) + time.Second
	if backoff < time.Second {
		backoff = time.Second
	}
	return min(backoff, maxBackoff)
}

func statusCode(resp *github.Response) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	return 0
}
