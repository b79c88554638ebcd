// Package chat holds the application context shared by every request and
// implements the question-answering pipeline: validate, retrieve, assemble,
// generate.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/generation"
	"github.com/fyrsmithlabs/portfolio-rag/internal/retrieval"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

var (
	// ErrEmptyMessage is returned for a blank question.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrStoreNotInitialized is returned when the vector store failed to load at startup.
	ErrStoreNotInitialized = errors.New("vector database not initialized")
)

// StoreState records, once at startup, whether the vector store loaded.
type StoreState struct {
	store vectorstore.Store
	err   error
}

// Ready wraps a successfully opened store.
func Ready(store vectorstore.Store) StoreState {
	return StoreState{store: store}
}

// Failed records why the store could not be opened.
func Failed(err error) StoreState {
	if err == nil {
		err = ErrStoreNotInitialized
	}
	return StoreState{err: err}
}

// Store returns the store, or ErrStoreNotInitialized wrapping the startup error.
func (s StoreState) Store() (vectorstore.Store, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreNotInitialized, s.err)
	}
	return s.store, nil
}

// Loaded reports whether the store opened.
func (s StoreState) Loaded() bool {
	return s.store != nil
}

// Err returns the startup error, or nil when the store loaded.
func (s StoreState) Err() error {
	return s.err
}

// Answer is the result of Ask.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`

	// Stage is the retrieval stage that produced the context, "" when none did.
	Stage string `json:"-"`
}

// Service is the application context: built once in main and shared by
// the HTTP handlers and MCP tools. It holds no per-request state.
type Service struct {
	state     StoreState
	retriever *retrieval.Orchestrator
	generator *generation.Generator
	logger    *zap.Logger
	metrics   *Metrics
}

// NewService creates the service. retriever may be nil when the store
// failed to load. metrics may be nil.
func NewService(state StoreState, retriever *retrieval.Orchestrator, generator *generation.Generator, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = generation.New(nil, logger)
	}
	return &Service{
		state:     state,
		retriever: retriever,
		generator: generator,
		logger:    logger,
		metrics:   metrics,
	}
}

// State returns the startup store state.
func (s *Service) State() StoreState {
	return s.state
}

// Retriever returns the orchestrator, nil when the store failed to load.
func (s *Service) Retriever() *retrieval.Orchestrator {
	return s.retriever
}

// Generator returns the answer generator.
func (s *Service) Generator() *generation.Generator {
	return s.generator
}

// Ask answers message from the stored documents.
//
// It returns ErrEmptyMessage for a blank message and ErrStoreNotInitialized
// when the store failed to load; both are checked before any remote call.
// When no stage retrieves anything the LLM is not called and the answer is
// generation.NoInformationAnswer with no sources.
func (s *Service) Ask(ctx context.Context, message string) (answer *Answer, err error) {
	defer func() {
		s.metrics.observe(answer, err)
	}()

	query := strings.TrimSpace(message)
	if query == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := s.state.Store(); err != nil {
		return nil, err
	}
	if s.retriever == nil {
		return nil, ErrStoreNotInitialized
	}

	res := s.retriever.Retrieve(ctx, query)
	if res.Empty() {
		s.logger.Info("no relevant documents found", zap.Int("query_length", len(query)))
		return &Answer{Answer: generation.NoInformationAnswer, Sources: []string{}}, nil
	}

	contextText, sources := retrieval.Assemble(res.Chunks)
	reply := s.generator.Generate(ctx, contextText, query)

	s.logger.Info("answered question",
		zap.String("stage", res.Stage),
		zap.Int("chunks", len(res.Chunks)),
		zap.Int("sources", len(sources)),
		zap.Bool("generation_failed", generation.IsFailure(reply)))

	return &Answer{Answer: reply, Sources: sources, Stage: res.Stage}, nil
}

// Search returns the limit nearest chunks to query, bypassing the
// retrieval fallbacks.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]vectorstore.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyMessage
	}
	store, err := s.state.Store()
	if err != nil {
		return nil, err
	}
	results, err := store.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}
	return results, nil
}
