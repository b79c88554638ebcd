package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("portfolio-rag.vectorstore.chromem")

// ChromemConfig holds configuration for the embedded chromem-go store.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression of the persisted files.
	Compress bool

	// Collection is the collection holding the corpus.
	Collection string

	// VectorSize is the expected embedding dimension (384 for all-MiniLM-L6-v2).
	VectorSize int

	// MustExist fails construction when Path or Collection is missing
	// instead of creating them.
	MustExist bool
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go keeps every vector in memory and persists to gob files; its
// queries are always exhaustive cosine comparisons.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger

	mu         sync.RWMutex
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the persistent store at config.Path.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if config.MustExist {
		info, err := os.Stat(config.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, config.Path)
		}
		if err != nil {
			return nil, fmt.Errorf("checking store path %s: %w", config.Path, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrStoreNotFound, config.Path)
		}
	} else if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	s := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	// The embedding func must never be nil: chromem falls back to OpenAI for
	// persisted collections loaded without one.
	if config.MustExist {
		s.collection = db.GetCollection(config.Collection, s.embeddingFunc())
		if s.collection == nil {
			return nil, fmt.Errorf("%w: %s in %s", ErrCollectionNotFound, config.Collection, config.Path)
		}
	} else {
		s.collection, err = db.GetOrCreateCollection(config.Collection, nil, s.embeddingFunc())
		if err != nil {
			return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
		}
	}

	logger.Info("chromem store opened",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection),
		zap.Int("documents", s.collection.Count()),
		zap.Bool("compress", config.Compress),
	)
	return s, nil
}

func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) current() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}

// AddDocuments embeds docs in one batch and stores them.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
	}

	ids := make([]string, len(docs))
	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(embeddings[i]) != s.config.VectorSize {
			return nil, fmt.Errorf("%w: document %d has %d dimensions, collection uses %d",
				ErrDimensionMismatch, i, len(embeddings[i]), s.config.VectorSize)
		}
		ids[i] = documentID(doc)
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: embeddings[i],
		}
	}

	// embeddings are precomputed, so no concurrency is needed
	if err := s.current().AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("added documents to chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search returns the k nearest chunks to query.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.query(ctx, "ChromemStore.Search", query, k)
}

// SearchWithThreshold returns up to k nearest chunks scoring at least threshold.
// chromem has no native score filter, so results are filtered after the query.
func (s *ChromemStore) SearchWithThreshold(ctx context.Context, query string, k int, threshold float32) ([]SearchResult, error) {
	results, err := s.query(ctx, "ChromemStore.SearchWithThreshold", query, k)
	if err != nil {
		return nil, err
	}
	return filterByScore(results, threshold), nil
}

// ExactSearch is the same as Search: chromem queries are always exhaustive.
func (s *ChromemStore) ExactSearch(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return s.query(ctx, "ChromemStore.ExactSearch", query, k)
}

func (s *ChromemStore) query(ctx context.Context, spanName, query string, k int) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if err := validateQuery(query, k); err != nil {
		return nil, err
	}

	collection := s.current()

	// chromem requires nResults <= document count
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")
	return out, nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.current().Count(), nil
}

// Reset drops and recreates the collection.
func (s *ChromemStore) Reset(ctx context.Context) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Reset")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.config.Collection); err != nil {
		span.RecordError(err)
		return fmt.Errorf("deleting collection %s: %w", s.config.Collection, err)
	}
	collection, err := s.db.CreateCollection(s.config.Collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("recreating collection %s: %w", s.config.Collection, err)
	}
	s.collection = collection

	s.logger.Info("chromem collection reset", zap.String("collection", s.config.Collection))
	return nil
}

// Close is a no-op: chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}

var _ Store = (*ChromemStore)(nil)
