package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{Host: "localhost", Port: 6334, Collection: "portfolio", VectorSize: 384}
	cfg.ApplyDefaults()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
	assert.NoError(t, cfg.Validate())
}

func TestQdrantConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     QdrantConfig
		wantErr error
	}{
		{"missing host", QdrantConfig{Port: 6334, Collection: "portfolio", VectorSize: 384}, ErrInvalidConfig},
		{"bad port", QdrantConfig{Host: "localhost", Port: 70000, Collection: "portfolio", VectorSize: 384}, ErrInvalidConfig},
		{"zero vector size", QdrantConfig{Host: "localhost", Port: 6334, Collection: "portfolio"}, ErrInvalidConfig},
		{"bad collection", QdrantConfig{Host: "localhost", Port: 6334, Collection: "Portfolio!", VectorSize: 384}, ErrInvalidCollectionName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), tt.wantErr)
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("plain")))
	assert.True(t, IsTransientError(status.Error(codes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(codes.DeadlineExceeded, "slow")))
	assert.True(t, IsTransientError(status.Error(codes.ResourceExhausted, "busy")))
	assert.False(t, IsTransientError(status.Error(codes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(status.Error(codes.NotFound, "missing")))
}

func TestQdrantStore_Retry(t *testing.T) {
	s := &QdrantStore{config: QdrantConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}}
	s.logger = zapNop()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := s.retry(context.Background(), "op", func() error {
			calls++
			if calls < 3 {
				return status.Error(codes.Unavailable, "down")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := s.retry(context.Background(), "op", func() error {
			calls++
			return status.Error(codes.Unavailable, "down")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		calls := 0
		err := s.retry(context.Background(), "op", func() error {
			calls++
			return status.Error(codes.InvalidArgument, "bad")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := s.retry(ctx, "op", func() error {
			return status.Error(codes.Unavailable, "down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, pointID(id).GetUuid())

	derived := pointID("resume.pdf#3")
	_, err := uuid.Parse(derived.GetUuid())
	require.NoError(t, err)
	assert.Equal(t, derived.GetUuid(), pointID("resume.pdf#3").GetUuid(), "derived IDs are stable")
	assert.NotEqual(t, derived.GetUuid(), pointID("resume.pdf#4").GetUuid())
}

func TestPayloadRoundTrip(t *testing.T) {
	doc := Document{Content: "golang chatbot", Metadata: map[string]string{"source": "projects.md"}}
	payload := toPayload("chunk-7", doc)

	result := fromPoint(&qdrant.ScoredPoint{Score: 0.8, Payload: payload})
	assert.Equal(t, "chunk-7", result.ID)
	assert.Equal(t, "golang chatbot", result.Content)
	assert.Equal(t, "projects.md", result.Source())
	assert.InDelta(t, 0.8, result.Score, 1e-6)
	assert.NotContains(t, result.Metadata, payloadContent)
	assert.NotContains(t, result.Metadata, payloadID)
}

func TestFromPoint_NonStringPayload(t *testing.T) {
	result := fromPoint(&qdrant.ScoredPoint{Payload: map[string]*qdrant.Value{
		"page":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: 4}},
		"draft": {Kind: &qdrant.Value_BoolValue{BoolValue: false}},
	}})
	assert.Equal(t, "4", result.Metadata["page"])
	assert.Equal(t, "false", result.Metadata["draft"])
}
