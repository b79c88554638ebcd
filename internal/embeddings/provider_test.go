package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
)

func TestNewProvider_TEI(t *testing.T) {
	p, err := NewProvider(config.EmbeddingsConfig{
		Provider: "tei",
		Model:    "BAAI/bge-base-en-v1.5",
		URL:      "http://localhost:8080",
	}, zap.NewNop())
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &TEIProvider{}, p)
	assert.Equal(t, 768, p.Dimension())
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(config.EmbeddingsConfig{Provider: "word2vec"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDimensionForModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"intfloat/e5-large-v2", 1024},
		{"nomic-ai/nomic-embed-text-base", 768},
		{"something-unknown", 384},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, DimensionForModel(tt.model))
		})
	}
}
