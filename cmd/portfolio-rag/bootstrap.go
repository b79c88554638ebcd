package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/embeddings"
	"github.com/fyrsmithlabs/portfolio-rag/internal/generation"
	"github.com/fyrsmithlabs/portfolio-rag/internal/logging"
	"github.com/fyrsmithlabs/portfolio-rag/internal/retrieval"
	"github.com/fyrsmithlabs/portfolio-rag/internal/telemetry"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// deps holds the process-wide dependencies shared by the commands.
type deps struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry

	embedder embeddings.Provider
	store    vectorstore.Store
}

// bootstrap loads configuration and initializes telemetry and logging.
// stderrLogs keeps stdout free for protocols that own it.
func bootstrap(ctx context.Context, stderrLogs bool) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Observability, version), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.ConfigFrom(cfg.Observability)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	logCfg.Stderr = stderrLogs
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if tel.Degraded() {
		logger.Warn(ctx, "telemetry degraded, continuing without export")
	}

	return &deps{cfg: cfg, logger: logger, telemetry: tel}, nil
}

// openStore creates the embedder and opens the configured collection.
// Serving commands pass mustExist so an un-ingested store fails here.
func (d *deps) openStore(ctx context.Context, mustExist bool) (vectorstore.Store, error) {
	logger := d.logger.Underlying()

	embedder, err := embeddings.NewProvider(d.cfg.Embeddings, logger.Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	vsCfg := d.cfg.VectorStore
	if dim := embedder.Dimension(); dim > 0 {
		vsCfg.VectorSize = dim
	}
	store, err := vectorstore.NewStore(ctx, vsCfg, embedder, logger.Named("vectorstore"),
		vectorstore.Options{MustExist: mustExist})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	d.embedder = embedder
	d.store = store
	return store, nil
}

// newService builds the chat service. A store that fails to open is
// recorded in the service state rather than returned, so the API still
// starts and reports the failure. reg may be nil.
func (d *deps) newService(ctx context.Context, reg prometheus.Registerer) (*chat.Service, error) {
	logger := d.logger.Underlying()

	generator, err := generation.NewFromConfig(d.cfg.LLM, logger.Named("generation"))
	if err != nil {
		return nil, err
	}

	var (
		chatMetrics      *chat.Metrics
		retrievalMetrics *retrieval.Metrics
	)
	if reg != nil {
		chatMetrics = chat.NewMetrics(reg)
		retrievalMetrics = retrieval.NewMetrics(reg)
	}

	store, err := d.openStore(ctx, true)
	if err != nil {
		logger.Error("vector store unavailable, chat requests will fail",
			zap.String("provider", d.cfg.VectorStore.Provider),
			zap.String("path", d.cfg.VectorStore.Path),
			zap.Error(err))
		return chat.NewService(chat.Failed(err), nil, generator, logger.Named("chat"), chatMetrics), nil
	}

	count, err := store.Count(ctx)
	if err != nil {
		logger.Warn("counting documents", zap.Error(err))
	}
	logger.Info("vector store loaded",
		zap.String("provider", d.cfg.VectorStore.Provider),
		zap.String("collection", d.cfg.VectorStore.Collection),
		zap.Int("documents", count))

	orchestrator := retrieval.NewOrchestrator(
		retrieval.DefaultStrategies(store, d.cfg.Retrieval),
		logger.Named("retrieval"),
		retrievalMetrics,
	)
	return chat.NewService(chat.Ready(store), orchestrator, generator, logger.Named("chat"), chatMetrics), nil
}

// Close releases the store, embedder, telemetry and logger.
func (d *deps) Close(ctx context.Context) error {
	var errs []error
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	if err := d.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = d.logger.Sync()
	return errors.Join(errs...)
}
