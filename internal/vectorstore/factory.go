package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
)

// Options tunes NewStore.
type Options struct {
	// MustExist fails when the store or its collection has not been
	// created by a prior ingestion run.
	MustExist bool
}

// NewStore creates the Store selected by cfg.Provider.
func NewStore(ctx context.Context, cfg config.VectorStoreConfig, embedder Embedder, logger *zap.Logger, opts Options) (Store, error) {
	switch cfg.Provider {
	case "", "chromem":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Path,
			Compress:   cfg.Compress,
			Collection: cfg.Collection,
			VectorSize: cfg.VectorSize,
			MustExist:  opts.MustExist,
		}, embedder, logger)
	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			Collection: cfg.Collection,
			VectorSize: uint64(cfg.VectorSize),
			MustExist:  opts.MustExist,
		}, embedder, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported vector store provider: %s", ErrInvalidConfig, cfg.Provider)
	}
}
