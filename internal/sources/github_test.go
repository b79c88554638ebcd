package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/config"
	"github.com/fyrsmithlabs/portfolio-rag/internal/vectorstore"
)

var fastRetry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func repo(name string, fork bool) map[string]any {
	return map[string]any{
		"name":             name,
		"full_name":        "jane/" + name,
		"owner":            map[string]any{"login": "jane"},
		"html_url":         "https://github.com/jane/" + name,
		"fork":             fork,
		"language":         "Go",
		"description":      name + " description",
		"topics":           []string{"rag", "llm"},
		"stargazers_count": 7,
	}
}

func newGitHubServer(t *testing.T, mux *http.ServeMux) *github.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := NewGitHubClient(context.Background(), config.Secret("ghp_test"), srv.URL)
	require.NoError(t, err)
	return client
}

func TestGitHubSource_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/jane/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
		assert.Equal(t, "owner", r.URL.Query().Get("type"))
		writeJSON(t, w, http.StatusOK, []any{repo("rag-bot", false), repo("forked", true), repo("dotfiles", false)})
	})
	mux.HandleFunc("/repos/jane/rag-bot/readme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("# RAG bot\n\nAnswers questions about a portfolio.")),
		})
	})
	mux.HandleFunc("/repos/jane/dotfiles/readme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})

	src, err := NewGitHubSource(newGitHubServer(t, mux), GitHubConfig{User: "jane", Retry: fastRetry}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "github.com/jane", src.Name())

	docs, skipped, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"jane/forked"}, skipped)
	require.Len(t, docs, 2)
	assert.Equal(t, "github.com/jane/rag-bot", docs[0].Metadata[vectorstore.MetadataSource])
	assert.Contains(t, docs[0].PageContent, "# rag-bot")
	assert.Contains(t, docs[0].PageContent, "Language: Go")
	assert.Contains(t, docs[0].PageContent, "Topics: rag, llm")
	assert.Contains(t, docs[0].PageContent, "Answers questions about a portfolio.")

	assert.Equal(t, "github.com/jane/dotfiles", docs[1].Metadata[vectorstore.MetadataSource])
	assert.Contains(t, docs[1].PageContent, "dotfiles description")
}

func TestGitHubSource_MaxRepos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/jane/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, []any{repo("a", false), repo("b", false), repo("c", true)})
	})
	mux.HandleFunc("/repos/jane/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})

	src, err := NewGitHubSource(newGitHubServer(t, mux), GitHubConfig{User: "jane", MaxRepos: 1, IncludeForks: true, Retry: fastRetry}, nil)
	require.NoError(t, err)

	docs, skipped, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, []string{"jane/b", "jane/c"}, skipped)
}

func TestGitHubSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/users/jane/repos", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(t, w, http.StatusBadGateway, map[string]any{"message": "bad gateway"})
			return
		}
		writeJSON(t, w, http.StatusOK, []any{})
	})

	src, err := NewGitHubSource(newGitHubServer(t, mux), GitHubConfig{User: "jane", Retry: fastRetry}, nil)
	require.NoError(t, err)

	docs, _, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGitHubSource_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/users/nobody/repos", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})

	src, err := NewGitHubSource(newGitHubServer(t, mux), GitHubConfig{User: "nobody", Retry: fastRetry}, nil)
	require.NoError(t, err)

	_, _, err = src.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing repositories for nobody")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewGitHubSource_Validation(t *testing.T) {
	_, err := NewGitHubSource(nil, GitHubConfig{User: "jane"}, nil)
	assert.Error(t, err)

	client, err := NewGitHubClient(context.Background(), "", "")
	require.NoError(t, err)
	_, err = NewGitHubSource(client, GitHubConfig{User: " "}, nil)
	assert.ErrorContains(t, err, "github user is required")
}

func TestIsRetryable(t *testing.T) {
	resp := func(code int, limit, remaining int) *github.Response {
		return &github.Response{
			Response: &http.Response{StatusCode: code},
			Rate:     github.Rate{Limit: limit, Remaining: remaining},
		}
	}
	err := assert.AnError

	tests := []struct {
		name string
		resp *github.Response
		want bool
	}{
		{name: "network error", resp: nil, want: true},
		{name: "too many requests", resp: resp(http.StatusTooManyRequests, 0, 0), want: true},
		{name: "server error", resp: resp(http.StatusServiceUnavailable, 0, 0), want: true},
		{name: "rate limit exhausted", resp: resp(http.StatusForbidden, 60, 0), want: true},
		{name: "forbidden", resp: resp(http.StatusForbidden, 60, 12), want: false},
		{name: "not found", resp: resp(http.StatusNotFound, 0, 0), want: false},
		{name: "unauthorized", resp: resp(http.StatusUnauthorized, 0, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(err, tt.resp))
		})
	}
	assert.False(t, isRetryable(nil, nil))
}

func TestRateLimitBackoff(t *testing.T) {
	r := &github.Response{Rate: github.Rate{Limit: 60, Reset: github.Timestamp{Time: time.Now().Add(time.Hour)}}}
	assert.Equal(t, 30*time.Second, rateLimitBackoff(r, 30*time.Second))

	r.Rate.Reset = github.Timestamp{Time: time.Now().Add(-time.Minute)}
	assert.Equal(t, time.Second, rateLimitBackoff(r, 30*time.Second))
}
