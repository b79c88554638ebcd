// Package vectorstore stores document chunks with their embeddings and
// answers cosine-similarity queries over them.
//
// Two providers implement Store:
//   - ChromemStore: embedded chromem-go, persisted to a directory (default)
//   - QdrantStore: external Qdrant over gRPC
//
// A store is bound to a single collection. Serving processes open stores
// with MustExist so that a missing or never-ingested store fails at startup
// instead of silently answering from an empty collection.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Sentinel errors for vector store operations.
var (
	// ErrStoreNotFound is returned when MustExist is set and the store location is missing.
	ErrStoreNotFound = errors.New("vector store not found")

	// ErrCollectionNotFound is returned when MustExist is set and the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an empty batch passed to AddDocuments.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmptyQuery indicates a blank search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrDimensionMismatch indicates an embedding whose length differs from the collection's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrConnectionFailed indicates the remote store could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")
)

// MetadataSource is the metadata key holding a chunk's originating document.
const MetadataSource = "source"

// maxQueryLength bounds the text sent to the embedder for a query.
const maxQueryLength = 10000

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is a chunk to be stored.
type Document struct {
	// ID is the unique identifier. Providers generate one when empty.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata carries at least MetadataSource.
	Metadata map[string]string
}

// SearchResult is a stored chunk matched by a query.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32 // cosine similarity, higher is more similar
	Metadata map[string]string
}

// Source returns the chunk's source metadata, or "" when absent.
func (r SearchResult) Source() string {
	return r.Metadata[MetadataSource]
}

// Store is the interface for vector storage operations on one collection.
//
// All searches return results ordered by descending similarity and never
// more than k of them. Searching an empty collection returns no results
// and no error.
type Store interface {
	// AddDocuments embeds and stores docs, returning their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns the k nearest chunks to query.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// SearchWithThreshold returns up to k nearest chunks whose score is at least threshold.
	SearchWithThreshold(ctx context.Context, query string, k int, threshold float32) ([]SearchResult, error)

	// ExactSearch returns the k nearest chunks using brute-force comparison
	// against every stored vector, bypassing any approximate index.
	ExactSearch(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Reset removes every chunk from the collection.
	Reset(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// collectionNamePattern: lowercase letters, numbers, underscores, hyphens, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateCollectionName rejects names that could escape the store
// directory or that providers would refuse.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_-]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

func validateQuery(query string, k int) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return ErrEmptyQuery
	}
	if len(query) > maxQueryLength {
		return fmt.Errorf("query exceeds maximum length of %d characters", maxQueryLength)
	}
	return nil
}

// filterByScore keeps results scoring at least threshold, preserving order.
func filterByScore(results []SearchResult, threshold float32) []SearchResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// documentID returns the document's ID or a fresh random UUID.
func documentID(doc Document) string {
	if doc.ID != "" {
		return doc.ID
	}
	return uuid.NewString()
}
