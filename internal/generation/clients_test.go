package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Go and Kubernetes."}}]
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{
		APIKey:      "gsk_test",
		BaseURL:     srv.URL + "/openai/v1",
		Model:       "llama-3.1-8b-instant",
		Temperature: 0.2,
	})
	require.NoError(t, err)

	answer, err := c.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "Go and Kubernetes.", answer)

	assert.Equal(t, "llama-3.1-8b-instant", got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
	assert.NotContains(t, got, "stream")
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user prompt", msgs[1].(map[string]any)["content"])
}

func TestOpenAIClient_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream exploded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_RequiresKeyAndModel(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{Model: "m"})
	assert.Error(t, err)
	_, err = NewOpenAIClient(OpenAIConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Mostly Go."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c, err := NewAnthropicClient(AnthropicConfig{
		APIKey:      "sk-ant-test",
		BaseURL:     srv.URL,
		Model:       "claude-3-5-haiku-latest",
		Temperature: 0.2,
	})
	require.NoError(t, err)

	answer, err := c.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "Mostly Go.", answer)

	assert.Equal(t, "claude-3-5-haiku-latest", got["model"])
	assert.InDelta(t, 1024, got["max_tokens"], 1e-9)
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
	system, ok := got["system"].([]any)
	require.True(t, ok)
	assert.Equal(t, "system prompt", system[0].(map[string]any)["text"])
}
