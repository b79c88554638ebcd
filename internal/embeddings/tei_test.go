package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTEIServer answers /embed with one 3-dim vector per input.
func newTEIServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Inputs   json.RawMessage `json:"inputs"`
			Truncate bool            `json:"truncate"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)

		if status != http.StatusOK {
			http.Error(w, "model overloaded", status)
			return
		}

		n := 1
		var batch []string
		if json.Unmarshal(req.Inputs, &batch) == nil {
			n = len(batch)
		}
		vectors := make([][]float32, n)
		for i := range vectors {
			vectors[i] = []float32{float32(i), 0.5, 1}
		}
		_ = json.NewEncoder(w).Encode(vectors)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	srv := newTEIServer(t, http.StatusOK)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", Model: "sentence-transformers/all-MiniLM-L6-v2"}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{2, 0.5, 1}, vectors[2])
	assert.Equal(t, 384, p.Dimension())
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv := newTEIServer(t, http.StatusOK)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "what languages do you know?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 1}, vec)
}

func TestTEIProvider_EmptyInput(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ServerError(t *testing.T) {
	srv := newTEIServer(t, http.StatusServiceUnavailable)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestTEIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://localhost:8080", false},
		{"https", "https://tei.example.com", false},
		{"empty", "", true},
		{"no scheme", "localhost:8080", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TEIConfig{BaseURL: tt.baseURL}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
