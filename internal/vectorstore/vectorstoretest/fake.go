// Package vectorstoretest provides a scriptable vectorstore.Store for tests.
package vectorstoretest

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

// Call records one search made against a Store.
type Call struct {
	Method    string
	Query     string
	K         int
	Threshold float32
}

// Store is a vectorstore.Store whose answers are set per method.
// The zero value returns empty results and no errors.
type Store struct {
	mu sync.Mutex

	ThresholdResults []vectorstore.SearchResult
	ThresholdErr     error
	SearchResults    []vectorstore.SearchResult
	SearchErr        error
	ExactResults     []vectorstore.SearchResult
	ExactErr         error
	CountValue       int
	CountErr         error

	Added  []vectorstore.Document
	AddErr error
	Resets int
	Closed bool

	calls []Call
}

// Calls returns the searches made so far, in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Store) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Store) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	if s.AddErr != nil {
		return nil, s.AddErr
	}
	if len(docs) == 0 {
		return nil, vectorstore.ErrEmptyDocuments
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	s.Added = append(s.Added, docs...)
	s.CountValue += len(docs)
	return ids, nil
}

func (s *Store) Search(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	s.record(Call{Method: "Search", Query: query, K: k})
	return limit(s.SearchResults, k), s.SearchErr
}

func (s *Store) SearchWithThreshold(_ context.Context, query string, k int, threshold float32) ([]vectorstore.SearchResult, error) {
	s.record(Call{Method: "SearchWithThreshold", Query: query, K: k, Threshold: threshold})
	return limit(s.ThresholdResults, k), s.ThresholdErr
}

func (s *Store) ExactSearch(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	s.record(Call{Method: "ExactSearch", Query: query, K: k})
	return limit(s.ExactResults, k), s.ExactErr
}

func (s *Store) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CountValue, s.CountErr
}

func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Resets++
	s.Added = nil
	s.CountValue = 0
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

func limit(results []vectorstore.SearchResult, k int) []vectorstore.SearchResult {
	if k >= 0 && len(results) > k {
		return results[:k]
	}
	return results
}

// Chunk builds a search result with the given source metadata.
// An empty source leaves the metadata without one.
func Chunk(content, source string, score float32) vectorstore.SearchResult {
	md := map[string]string{}
	if source != "" {
		md[vectorstore.MetadataSource] = source
	}
	return vectorstore.SearchResult{Content: content, Score: score, Metadata: md}
}

var _ vectorstore.Store = (*Store)(nil)
