package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
	"github.com/fyrsmithlabs/portfolio-rag/internal/retrieval"
)

func intPtr(n int) *int { return &n }

func newTestModel() Model {
	return NewModel(NewHealthClient("http://localhost:8000", 0), nil, 5*time.Second)
}

func TestNewModel(t *testing.T) {
	model := newTestModel()
	assert.Equal(t, "http://localhost:8000/api/health", model.health.URL())
	assert.Nil(t, model.metrics)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)

	assert.Equal(t, 5*time.Second, NewModel(model.health, nil, 0).interval)
}

func TestModel_Init(t *testing.T) {
	assert.NotNil(t, newTestModel().Init())
}

func TestModel_Update_QuitKey(t *testing.T) {
	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
	updated, cmd := newTestModel().Update(keyMsg)

	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.View())
}

func TestModel_Update_RefreshKey(t *testing.T) {
	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	updated, cmd := newTestModel().Update(keyMsg)

	assert.False(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_TickMsg(t *testing.T) {
	updated, cmd := newTestModel().Update(tickMsg(time.Now()))

	assert.False(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_SnapshotMsg(t *testing.T) {
	model := newTestModel()
	model.err = fmt.Errorf("stale")

	for i, rate := range []float64{3, 6} {
		updated, cmd := model.Update(snapshotMsg(Snapshot{
			Health:   chat.HealthReport{Status: chat.StatusHealthy, DatabaseLoaded: true},
			ChatRate: rate,
			MemoryMB: 600,
			Stages: map[string]StageStats{
				retrieval.StageThreshold: {HitRatio: 0.8, LatencyP95: 0.5},
			},
		}))
		require.Nil(t, cmd)
		model = updated.(Model)
		assert.Len(t, model.snapshot.ChatRateHistory, i+1)
	}

	assert.Nil(t, model.err)
	assert.False(t, model.lastUpdate.IsZero())
	assert.Equal(t, []float64{3, 6}, model.snapshot.ChatRateHistory)
	assert.Equal(t, []float64{500, 500}, model.snapshot.LatencyHistory)
	assert.Equal(t, 600.0, model.snapshot.MemoryMax)
}

func TestModel_Update_ErrMsg(t *testing.T) {
	updated, cmd := newTestModel().Update(errMsg(fmt.Errorf("connection refused")))

	m := updated.(Model)
	require.Error(t, m.err)
	assert.Contains(t, m.err.Error(), "connection refused")
	assert.Nil(t, cmd)
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, 5.0, h[0])
}

func TestModel_View_HealthOnly(t *testing.T) {
	model := newTestModel()
	model.snapshot.Health = chat.HealthReport{
		Status:         chat.StatusHealthy,
		DatabaseLoaded: true,
		DocumentCount:  intPtr(42),
		SampleQuery:    chat.SampleQuery,
		SampleResults:  intPtr(3),
	}
	model.lastUpdate = time.Date(2024, 1, 1, 12, 34, 56, 0, time.UTC)

	view := model.View()

	assert.Contains(t, view, "portfolio-rag Monitor")
	assert.Contains(t, view, "12:34:56")
	assert.Contains(t, view, "NO LLM")
	assert.Contains(t, view, "Knowledge Base")
	assert.Contains(t, view, "42")
	assert.Contains(t, view, "3 results")
	assert.Contains(t, view, "missing credential")
	assert.Contains(t, view, "--metrics-url")
	assert.NotContains(t, view, "Retrieval")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_WithMetrics(t *testing.T) {
	model := newTestModel()
	model.snapshot = Snapshot{
		Health:         chat.HealthReport{Status: chat.StatusHealthy, DatabaseLoaded: true, LLMConfigured: true},
		MetricsEnabled: true,
		ChatRate:       4.5,
		NoInformation:  0.25,
		Stages: map[string]StageStats{
			retrieval.StageThreshold:  {HitRatio: 0.9, LatencyP95: 0.0123},
			retrieval.StageSimilarity: {HitRatio: 0.1, LatencyP95: 0.02},
		},
		Uptime:     8100,
		Goroutines: 17,
		MemoryMB:   64,
		MemoryMax:  defaultMemoryMax,
	}
	model.lastUpdate = time.Now()

	view := model.View()

	assert.Contains(t, view, "HEALTHY")
	assert.Contains(t, view, "2h 15m")
	assert.Contains(t, view, "4.5 req/min")
	assert.Contains(t, view, "25.0%")
	for _, stage := range Stages {
		assert.Contains(t, view, stage)
	}
	assert.Contains(t, view, "90.0%")
	assert.Contains(t, view, "12.3ms")
	assert.Contains(t, view, "64.0 MB")
	assert.Contains(t, view, "17")
}

func TestModel_View_MetricsError(t *testing.T) {
	model := newTestModel()
	model.snapshot = Snapshot{
		Health:         chat.HealthReport{Status: chat.StatusHealthy},
		MetricsEnabled: true,
		MetricsErr:     fmt.Errorf("unexpected status code 502"),
	}
	model.lastUpdate = time.Now()

	assert.Contains(t, model.View(), "metrics: unexpected status code 502")
}

func TestModel_View_WithError(t *testing.T) {
	model := newTestModel()
	model.err = fmt.Errorf("connection refused")

	view := model.View()

	assert.Contains(t, view, "Cannot reach portfolio-rag")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "http://localhost:8000/api/health")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_NoData(t *testing.T) {
	view := newTestModel().View()

	assert.Contains(t, view, "portfolio-rag Monitor")
	assert.Contains(t, view, "Waiting for first refresh")
	assert.Contains(t, view, "[q]")
}

func TestFetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			_ = json.NewEncoder(w).Encode(chat.HealthReport{Status: chat.StatusHealthy, DatabaseLoaded: true})
		case "/api/v1/query":
			_ = json.NewEncoder(w).Encode(vectorResult("2"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	msg := fetchSnapshot(NewHealthClient(server.URL, time.Second), NewMetricsClient(server.URL, ""))()

	snap, ok := msg.(snapshotMsg)
	require.True(t, ok, "got %T", msg)
	assert.True(t, snap.Health.DatabaseLoaded)
	assert.True(t, snap.MetricsEnabled)
	assert.NoError(t, snap.MetricsErr)
	assert.Equal(t, 2.0, snap.ChatRate)
	assert.Equal(t, 2, snap.Goroutines)
	assert.Equal(t, StageStats{HitRatio: 2, LatencyP95: 2}, snap.Stages[retrieval.StageDirect])
}

func TestFetchSnapshot_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			_ = json.NewEncoder(w).Encode(chat.HealthReport{Status: chat.StatusDegraded})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	msg := fetchSnapshot(NewHealthClient(server.URL, time.Second), NewMetricsClient(server.URL, ""))()
	snap, ok := msg.(snapshotMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, chat.StatusDegraded, snap.Health.Status)
	assert.ErrorContains(t, snap.MetricsErr, "status code 502")

	server.Close()
	msg = fetchSnapshot(NewHealthClient(server.URL, time.Second), nil)()
	_, ok = msg.(errMsg)
	assert.True(t, ok, "got %T", msg)
}
