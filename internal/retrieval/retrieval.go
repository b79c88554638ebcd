// Package retrieval finds the chunks relevant to a question.
//
// An Orchestrator runs an ordered list of Strategy values and returns the
// result of the first one that finds anything. The default order is
// threshold (top-k filtered by a minimum score), similarity (plain top-k
// through a langchaingo retriever) and direct (exhaustive top-k against the
// store). A failing or panicking stage is logged and skipped, so retrieval itself never
// fails: an empty Result means nothing relevant was found.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

var tracer = otel.Tracer("portfolio-rag.retrieval")

// Strategy is one retrieval stage.
type Strategy interface {
	// Name identifies the stage in logs and metrics.
	Name() string

	// Retrieve returns chunks ordered by descending similarity.
	Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error)
}

// Result is the outcome of Orchestrator.Retrieve.
type Result struct {
	// Chunks is empty when every stage came back empty or failed.
	Chunks []vectorstore.SearchResult

	// Stage names the strategy that produced Chunks, or "" when none did.
	Stage string
}

// Empty reports whether no stage found anything.
func (r Result) Empty() bool {
	return len(r.Chunks) == 0
}

// StageReport describes one stage run by Diagnose.
type StageReport struct {
	Stage    string
	Count    int
	Duration time.Duration
	Err      error
}

// Orchestrator runs strategies in order until one returns chunks.
// It holds no mutable state and is safe for concurrent use.
type Orchestrator struct {
	strategies []Strategy
	logger     *zap.Logger
	metrics    *Metrics
}

// NewOrchestrator creates an orchestrator over strategies, tried in order.
// metrics may be nil.
func NewOrchestrator(strategies []Strategy, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		strategies: strategies,
		logger:     logger,
		metrics:    metrics,
	}
}

// DefaultStrategies returns the threshold, similarity and direct stages.
func DefaultStrategies(store vectorstore.Store, cfg config.RetrievalConfig) []Strategy {
	return []Strategy{
		NewThresholdStrategy(store, cfg.ThresholdK, cfg.Threshold),
		NewSimilarityStrategy(NewStoreRetriever(store, cfg.FallbackK)),
		NewDirectStrategy(store, cfg.DirectK),
	}
}

// Strategies returns the configured stage names in order.
func (o *Orchestrator) Strategies() []string {
	names := make([]string, len(o.strategies))
	for i, s := range o.strategies {
		names[i] = s.Name()
	}
	return names
}

// Retrieve returns the chunks of the first stage with a non-empty result.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) Result {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve")
	defer span.End()

	for _, s := range o.strategies {
		if ctx.Err() != nil {
			o.logger.Debug("retrieval abandoned", zap.Error(ctx.Err()))
			break
		}

		chunks, _, err := o.run(ctx, s, query)
		if err != nil {
			o.logger.Warn("retrieval stage failed, trying next",
				zap.String("stage", s.Name()),
				zap.Error(err))
			continue
		}
		if len(chunks) == 0 {
			o.logger.Debug("retrieval stage empty", zap.String("stage", s.Name()))
			continue
		}

		span.SetAttributes(
			attribute.String("stage", s.Name()),
			attribute.Int("results_count", len(chunks)),
		)
		o.logger.Debug("retrieval stage hit",
			zap.String("stage", s.Name()),
			zap.Int("results", len(chunks)))
		return Result{Chunks: chunks, Stage: s.Name()}
	}

	span.SetAttributes(attribute.Int("results_count", 0))
	return Result{}
}

// Diagnose runs every stage, regardless of earlier results, and reports
// how many chunks each returned.
func (o *Orchestrator) Diagnose(ctx context.Context, query string) []StageReport {
	reports := make([]StageReport, 0, len(o.strategies))
	for _, s := range o.strategies {
		chunks, elapsed, err := o.run(ctx, s, query)
		reports = append(reports, StageReport{
			Stage:    s.Name(),
			Count:    len(chunks),
			Duration: elapsed,
			Err:      err,
		})
	}
	return reports
}

func (o *Orchestrator) run(ctx context.Context, s Strategy, query string) ([]vectorstore.SearchResult, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "retrieval.stage."+s.Name())
	defer span.End()

	start := time.Now()
	chunks, err := retrieveRecovered(ctx, s, query)
	elapsed := time.Since(start)
	o.metrics.observe(s.Name(), elapsed, len(chunks), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, elapsed, err
	}
	span.SetAttributes(attribute.Int("results_count", len(chunks)))
	return chunks, elapsed, nil
}

// retrieveRecovered turns a panicking stage into an error so the next
// stage still runs.
func retrieveRecovered(ctx context.Context, s Strategy, query string) (chunks []vectorstore.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("stage %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Retrieve(ctx, query)
}
