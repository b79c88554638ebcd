package mcp

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
	"github.com/fyrsmithlabs/portfolio-rag/internal/embeddings"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/portfolio-rag/internal/mcp"

// Metrics counts tool calls, their latency and their failures by reason.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	errors      metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.invocations, err = m.meter.Int64Counter(
		"portfolio_rag.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool invocations by tool"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		m.logger.Warn("failed to create invocations counter", zap.Error(err))
	}

	// ask_portfolio waits on the LLM, search_portfolio only on the store.
	m.duration, err = m.meter.Float64Histogram(
		"portfolio_rag.mcp.tool.duration_seconds",
		metric.WithDescription("Duration of MCP tool invocations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"portfolio_rag.mcp.tool.errors_total",
		metric.WithDescription("MCP tool failures by tool and reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordInvocation records one tool call; err is nil on success.
func (m *Metrics) RecordInvocation(ctx context.Context, toolName string, duration time.Duration, err error) {
	tool := attribute.String("tool", toolName)

	if m.invocations != nil {
		m.invocations.Add(ctx, 1, metric.WithAttributes(tool))
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(tool))
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(tool, attribute.String("reason", categorizeError(err))))
	}
}

// categorizeError maps a tool failure onto a small, fixed set of reasons.
func categorizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, vectorstore.ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, chat.ErrStoreNotInitialized):
		return "store_not_initialized"
	case errors.Is(err, embeddings.ErrEmbeddingFailed), errors.Is(err, vectorstore.ErrEmbeddingFailed):
		return "embedding_error"
	case errors.Is(err, vectorstore.ErrConnectionFailed), errors.Is(err, vectorstore.ErrCollectionNotFound):
		return "store_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal_error"
	}
}
