package retrieval

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// Stage names.
const (
	StageThreshold  = "threshold"
	StageSimilarity = "similarity"
	StageDirect     = "direct"
)

// ThresholdStrategy returns the top K chunks scoring at least Threshold.
type ThresholdStrategy struct {
	store     vectorstore.Store
	k         int
	threshold float32
}

// NewThresholdStrategy creates the score-filtered stage.
func NewThresholdStrategy(store vectorstore.Store, k int, threshold float32) *ThresholdStrategy {
	return &ThresholdStrategy{store: store, k: k, threshold: threshold}
}

func (s *ThresholdStrategy) Name() string { return StageThreshold }

func (s *ThresholdStrategy) Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	return s.store.SearchWithThreshold(ctx, query, s.k, s.threshold)
}

// SimilarityStrategy asks a langchaingo retriever for the nearest chunks.
type SimilarityStrategy struct {
	retriever schema.Retriever
}

// NewSimilarityStrategy creates the unfiltered top-k stage.
func NewSimilarityStrategy(retriever schema.Retriever) *SimilarityStrategy {
	return &SimilarityStrategy{retriever: retriever}
}

func (s *SimilarityStrategy) Name() string { return StageSimilarity }

func (s *SimilarityStrategy) Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	docs, err := s.retriever.GetRelevantDocuments(ctx, query)
	if err != nil {
		return nil, err
	}
	results := make([]vectorstore.SearchResult, len(docs))
	for i, doc := range docs {
		results[i] = fromSchemaDocument(doc)
	}
	return results, nil
}

// DirectStrategy queries the store exhaustively, bypassing the retriever.
type DirectStrategy struct {
	store vectorstore.Store
	k     int
}

// NewDirectStrategy creates the last-resort stage.
func NewDirectStrategy(store vectorstore.Store, k int) *DirectStrategy {
	return &DirectStrategy{store: store, k: k}
}

func (s *DirectStrategy) Name() string { return StageDirect }

func (s *DirectStrategy) Retrieve(ctx context.Context, query string) ([]vectorstore.SearchResult, error) {
	return s.store.ExactSearch(ctx, query, s.k)
}

// metadataID carries the store ID through schema.Document metadata.
const metadataID = "_id"

// StoreRetriever adapts a Store to langchaingo's schema.Retriever.
type StoreRetriever struct {
	store vectorstore.Store
	k     int
}

// NewStoreRetriever returns a retriever yielding the k nearest chunks.
func NewStoreRetriever(store vectorstore.Store, k int) *StoreRetriever {
	return &StoreRetriever{store: store, k: k}
}

// GetRelevantDocuments implements schema.Retriever.
func (r *StoreRetriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	results, err := r.store.Search(ctx, query, r.k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	docs := make([]schema.Document, len(results))
	for i, res := range results {
		metadata := make(map[string]any, len(res.Metadata)+1)
		for k, v := range res.Metadata {
			metadata[k] = v
		}
		metadata[metadataID] = res.ID
		docs[i] = schema.Document{
			PageContent: res.Content,
			Metadata:    metadata,
			Score:       res.Score,
		}
	}
	return docs, nil
}

var _ schema.Retriever = (*StoreRetriever)(nil)

func fromSchemaDocument(doc schema.Document) vectorstore.SearchResult {
	res := vectorstore.SearchResult{
		Content:  doc.PageContent,
		Score:    doc.Score,
		Metadata: make(map[string]string, len(doc.Metadata)),
	}
	for k, v := range doc.Metadata {
		if k == metadataID {
			res.ID = fmt.Sprint(v)
			continue
		}
		res.Metadata[k] = fmt.Sprint(v)
	}
	return res
}
