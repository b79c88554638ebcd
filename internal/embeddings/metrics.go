package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/portfolio-rag/internal/embeddings"

// Embedding operations. Ingestion embeds documents, every chat question
// embeds one query.
const (
	opDocuments = "documents"
	opQuery     = "query"
)

// Metrics records embedding latency, texts embedded and failures for one
// provider and model.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	attrs    []attribute.KeyValue
	duration metric.Float64Histogram
	texts    metric.Int64Counter
	errors   metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics(provider, model string, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(embeddingsInstrumentationName),
		logger: logger,
		attrs: []attribute.KeyValue{
			attribute.String("provider", provider),
			attribute.String("model", model),
		},
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	// Query embeddings run on the chat path and should stay well under 100ms.
	m.duration, err = m.meter.Float64Histogram(
		"portfolio_rag.embedding.duration",
		metric.WithDescription("Embedding call duration by provider, model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1, 5, 30),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.texts, err = m.meter.Int64Counter(
		"portfolio_rag.embedding.texts",
		metric.WithDescription("Texts embedded by provider, model and operation"),
		metric.WithUnit("{text}"),
	)
	if err != nil {
		m.logger.Warn("failed to create texts counter", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"portfolio_rag.embedding.errors",
		metric.WithDescription("Embedding failures by provider, model, operation and reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// observe records one call. A nil Metrics records nothing.
func (m *Metrics) observe(ctx context.Context, op string, texts int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("operation", op)}, m.attrs...)

	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}
	if err != nil {
		if m.errors != nil {
			m.errors.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("reason", failureReason(err)))...))
		}
		return
	}
	if m.texts != nil {
		m.texts.Add(ctx, int64(texts), metric.WithAttributes(attrs...))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
