package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/generation"
	"github.com/fyrsmithlabs/portfolio-rag/internal/retrieval"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore/vectorstoretest"
)

type fixedClient struct{ answer string }

func (c fixedClient) Complete(context.Context, string, string) (string, error) {
	return c.answer, nil
}

func newTestServer(t *testing.T, store *vectorstoretest.Store) *Server {
	t.Helper()
	orchestrator := retrieval.NewOrchestrator(
		retrieval.DefaultStrategies(store, config.Default().Retrieval), zap.NewNop(), nil)
	svc := chat.NewService(chat.Ready(store), orchestrator,
		generation.New(fixedClient{answer: "Go and Python."}, zap.NewNop()), zap.NewNop(), nil)

	s, err := NewServer(nil, svc)
	require.NoError(t, err)
	return s
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(DefaultConfig(), nil)
	assert.ErrorContains(t, err, "chat service is required")

	s, err := NewServer(&Config{Name: "test", Version: "0"}, chat.NewService(chat.Failed(nil), nil, nil, nil, nil))
	require.NoError(t, err)
	assert.NotNil(t, s.logger)
}

func TestAskPortfolio(t *testing.T) {
	store := &vectorstoretest.Store{
		ThresholdResults: []vectorstore.SearchResult{
			vectorstoretest.Chunk("Writes Go.", "resume.txt", 0.5),
			vectorstoretest.Chunk("Writes Python.", "about.md", 0.4),
		},
	}
	s := newTestServer(t, store)

	res, out, err := s.askPortfolio(context.Background(), nil, askInput{Question: "What languages?"})
	require.NoError(t, err)

	assert.Equal(t, "Go and Python.", out.Answer)
	assert.Equal(t, []string{"resume.txt", "about.md"}, out.Sources)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "Go and Python.\n\nSources: resume.txt, about.md", res.Content[0].(*mcp.TextContent).Text)
}

func TestAskPortfolio_Errors(t *testing.T) {
	s := newTestServer(t, &vectorstoretest.Store{})

	_, _, err := s.askPortfolio(context.Background(), nil, askInput{Question: "  "})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	failed, err := NewServer(nil, chat.NewService(chat.Failed(vectorstore.ErrStoreNotFound), nil, nil, nil, nil))
	require.NoError(t, err)
	_, _, err = failed.askPortfolio(context.Background(), nil, askInput{Question: "hi"})
	assert.ErrorIs(t, err, chat.ErrStoreNotInitialized)
}

func TestAskPortfolio_NoInformation(t *testing.T) {
	s := newTestServer(t, &vectorstoretest.Store{})

	_, out, err := s.askPortfolio(context.Background(), nil, askInput{Question: "capital of France?"})
	require.NoError(t, err)

	assert.Equal(t, generation.NoInformationAnswer, out.Answer)
	assert.Empty(t, out.Sources)
}

func TestSearchPortfolio_Limit(t *testing.T) {
	results := make([]vectorstore.SearchResult, 30)
	for i := range results {
		results[i] = vectorstoretest.Chunk("chunk", "", 0.9)
	}
	store := &vectorstoretest.Store{SearchResults: results}
	s := newTestServer(t, store)

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 5},
		{limit: -3, want: 5},
		{limit: 2, want: 2},
		{limit: 20, want: 20},
		{limit: 100, want: 20},
	}
	for _, tt := range tests {
		_, out, err := s.searchPortfolio(context.Background(), nil, searchInput{Query: "go", Limit: tt.limit})
		require.NoError(t, err)
		assert.Equal(t, tt.want, out.Count, "limit %d", tt.limit)
		assert.Len(t, out.Results, tt.want)
	}

	calls := store.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "Search", calls[0].Method)

	_, out, err := s.searchPortfolio(context.Background(), nil, searchInput{Query: "go", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", out.Results[0].Source)
}

func TestSearchPortfolio_EmptyQuery(t *testing.T) {
	s := newTestServer(t, &vectorstoretest.Store{})

	_, _, err := s.searchPortfolio(context.Background(), nil, searchInput{})
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)
}

func TestServer_InMemorySession(t *testing.T) {
	store := &vectorstoretest.Store{
		SearchResults: []vectorstore.SearchResult{vectorstoretest.Chunk("Built a RAG chatbot.", "projects.md", 0.7)},
	}
	s := newTestServer(t, store)
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolAsk, ToolSearch}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolSearch,
		Arguments: map[string]any{"query": "projects", "limit": 3},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out searchOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "projects.md", out.Results[0].Source)
}
