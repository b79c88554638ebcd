package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SampleQuery is the probe issued by Health against a loaded store.
const SampleQuery = "experience"

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// healthProbeTimeout bounds the diagnostic count and sample query.
const healthProbeTimeout = 5 * time.Second

// HealthReport is the body of the health endpoint. The diagnostics are
// best-effort: a failing probe leaves its field nil and sets Error.
type HealthReport struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	DatabaseLoaded bool   `json:"database_loaded"`
	DocumentCount  *int   `json:"document_count,omitempty"`
	SampleQuery    string `json:"sample_query,omitempty"`
	SampleResults  *int   `json:"sample_results,omitempty"`
	LLMConfigured  bool   `json:"llm_configured"`
	Error          string `json:"error,omitempty"`
}

// Health reports whether the store loaded and probes it. It never fails.
func (s *Service) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:         StatusHealthy,
		Message:        "Chatbot API is running",
		DatabaseLoaded: s.state.Loaded(),
		LLMConfigured:  s.generator.Configured(),
	}

	store, err := s.state.Store()
	if err != nil {
		report.Status = StatusDegraded
		report.Error = err.Error()
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	count, err := store.Count(ctx)
	if err != nil {
		s.logger.Warn("health: document count failed", zap.Error(err))
		report.Error = "document count: " + err.Error()
		return report
	}
	report.DocumentCount = &count

	report.SampleQuery = SampleQuery
	results, err := store.Search(ctx, SampleQuery, 1)
	if err != nil {
		s.logger.Warn("health: sample query failed", zap.Error(err))
		report.Error = "sample query: " + err.Error()
		return report
	}
	n := len(results)
	report.SampleResults = &n
	return report
}
