package generation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
)

type fakeClient struct {
	mu      sync.Mutex
	answer  string
	err     error
	systems []string
	users   []string
}

func (f *fakeClient) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	return f.answer, f.err
}

func TestGenerator_Generate(t *testing.T) {
	client := &fakeClient{answer: "  I build Go services.\n"}
	g := New(client, zap.NewNop())

	answer := g.Generate(context.Background(), "Go developer at Acme", "What do you do?")

	assert.Equal(t, "I build Go services.", answer)
	require.Len(t, client.users, 1)
	assert.Equal(t, "Context:\nGo developer at Acme\n\nQuestion:\nWhat do you do?", client.users[0])
	assert.Equal(t, SystemPrompt, client.systems[0])
	assert.True(t, g.Configured())
	assert.False(t, IsFailure(answer))
}

func TestGenerator_MissingCredential(t *testing.T) {
	g := New(nil, nil)

	answer := g.Generate(context.Background(), "ctx", "q")

	assert.Equal(t, MissingCredentialAnswer, answer)
	assert.False(t, g.Configured())
	assert.True(t, IsFailure(answer))
}

func TestGenerator_RemoteFailureIsAnAnswer(t *testing.T) {
	client := &fakeClient{err: errors.New("503 service unavailable")}
	g := New(client, zap.NewNop())

	answer := g.Generate(context.Background(), "ctx", "q")

	assert.Equal(t, "Error generating answer: 503 service unavailable", answer)
	assert.Len(t, client.users, 1, "no retry")
	assert.True(t, IsFailure(answer))
}

func TestGenerator_RateLimitHonorsContext(t *testing.T) {
	client := &fakeClient{answer: "ok"}
	g := New(client, zap.NewNop(), WithRateLimit(0.001))

	assert.Equal(t, "ok", g.Generate(context.Background(), "ctx", "q"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	answer := g.Generate(ctx, "ctx", "q")

	assert.True(t, IsFailure(answer))
	assert.Len(t, client.users, 1)
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t,
		"You are a RAG-based portfolio assistant. Answer ONLY using the provided context. "+
			"If the answer is not in the context, say 'I don't have enough information based on the provided documents.'",
		SystemPrompt)
}

func TestNewFromConfig(t *testing.T) {
	base := config.Default().LLM

	t.Run("without key is unconfigured", func(t *testing.T) {
		g, err := NewFromConfig(base, zap.NewNop())
		require.NoError(t, err)
		assert.False(t, g.Configured())
	})

	t.Run("groq", func(t *testing.T) {
		cfg := base
		cfg.APIKey = config.Secret("gsk_test")
		g, err := NewFromConfig(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.True(t, g.Configured())
		assert.IsType(t, &OpenAIClient{}, g.client)
	})

	t.Run("anthropic", func(t *testing.T) {
		cfg := base
		cfg.Provider = "anthropic"
		cfg.Model = "claude-3-5-haiku-latest"
		cfg.BaseURL = ""
		cfg.APIKey = config.Secret("sk-ant-test")
		g, err := NewFromConfig(cfg, zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &AnthropicClient{}, g.client)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base
		cfg.Provider = "cohere"
		cfg.APIKey = config.Secret("x")
		_, err := NewFromConfig(cfg, zap.NewNop())
		assert.Error(t, err)
	})
}
