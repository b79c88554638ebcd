// Package embeddings turns text into vectors for the vector store.
//
// Two providers are supported: FastEmbed runs an ONNX model in-process
// (requires cgo and the ONNX runtime), and TEI calls a Text Embeddings
// Inference server over HTTP. Documents and queries must be embedded by the
// same model, so ingestion and serving read the same configuration.
package embeddings

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider is an Embedder with a known output dimension.
type Provider interface {
	vectorstore.Embedder

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates the provider selected by cfg.Provider.
func NewProvider(cfg config.EmbeddingsConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		}, logger)
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL: cfg.URL,
			Model:   cfg.Model,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
