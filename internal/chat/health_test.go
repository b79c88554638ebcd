package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/portfolio-rag/internal/generation"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore/vectorstoretest"
)

func TestService_Health(t *testing.T) {
	t.Run("loaded store", func(t *testing.T) {
		store := &vectorstoretest.Store{
			CountValue:    42,
			SearchResults: []vectorstore.SearchResult{vectorstoretest.Chunk("x", "a.md", 0.5)},
		}
		svc := NewService(Ready(store), nil, generation.New(&countingClient{}, nil), nil, nil)

		report := svc.Health(context.Background())

		assert.Equal(t, StatusHealthy, report.Status)
		assert.True(t, report.DatabaseLoaded)
		require.NotNil(t, report.DocumentCount)
		assert.Equal(t, 42, *report.DocumentCount)
		assert.Equal(t, SampleQuery, report.SampleQuery)
		require.NotNil(t, report.SampleResults)
		assert.Equal(t, 1, *report.SampleResults)
		assert.True(t, report.LLMConfigured)
		assert.Empty(t, report.Error)
	})

	t.Run("failed store", func(t *testing.T) {
		svc := NewService(Failed(vectorstore.ErrCollectionNotFound), nil, nil, nil, nil)

		report := svc.Health(context.Background())

		assert.Equal(t, StatusDegraded, report.Status)
		assert.False(t, report.DatabaseLoaded)
		assert.Nil(t, report.DocumentCount)
		assert.False(t, report.LLMConfigured)
		assert.Contains(t, report.Error, "collection not found")
	})

	t.Run("count failure is reported not raised", func(t *testing.T) {
		store := &vectorstoretest.Store{CountErr: errors.New("count broke")}
		svc := NewService(Ready(store), nil, nil, nil, nil)

		report := svc.Health(context.Background())

		assert.Equal(t, StatusHealthy, report.Status)
		assert.True(t, report.DatabaseLoaded)
		assert.Nil(t, report.DocumentCount)
		assert.Equal(t, "document count: count broke", report.Error)
	})

	t.Run("sample query failure is reported not raised", func(t *testing.T) {
		store := &vectorstoretest.Store{CountValue: 3, SearchErr: errors.New("embedder down")}
		svc := NewService(Ready(store), nil, nil, nil, nil)

		report := svc.Health(context.Background())

		require.NotNil(t, report.DocumentCount)
		assert.Equal(t, 3, *report.DocumentCount)
		assert.Nil(t, report.SampleResults)
		assert.Equal(t, "sample query: embedder down", report.Error)
	})
}
