// Package monitor renders a terminal dashboard for a running portfolio-rag
// server: its health report plus chat and retrieval metrics read from a
// Prometheus-compatible query API.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
	"github.com/fyrsmithlabs/portfolio-rag/internal/retrieval"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30

	// defaultMemoryMax scales the memory bar until the server reports more.
	defaultMemoryMax = 512.0
)

// Stages lists the retrieval stages in fallback order.
var Stages = []string{retrieval.StageThreshold, retrieval.StageSimilarity, retrieval.StageDirect}

// Model is the BubbleTea dashboard model.
type Model struct {
	health     *HealthClient
	metrics    *MetricsClient
	interval   time.Duration
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool

	memoryProgress progress.Model
	stageProgress  progress.Model
}

// StageStats summarizes one retrieval stage.
type StageStats struct {
	HitRatio   float64
	LatencyP95 float64
}

// Snapshot is one refresh of dashboard data.
type Snapshot struct {
	Health chat.HealthReport

	// Metrics are zero when no query API is configured.
	MetricsEnabled bool
	MetricsErr     error
	ChatRate       float64
	ChatErrors     float64
	NoInformation  float64
	Stages         map[string]StageStats
	Uptime         int64
	Goroutines     int
	MemoryMB       float64

	// Histories for sparklines, oldest first.
	ChatRateHistory []float64
	LatencyHistory  []float64
	MemoryHistory   []float64

	MemoryMax float64
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard for the server behind health. metrics may be
// nil, in which case only the health report is shown.
func NewModel(health *HealthClient, metrics *MetricsClient, interval time.Duration) Model {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return Model{
		health:   health,
		metrics:  metrics,
		interval: interval,
		memoryProgress: progress.New(
			progress.WithGradient("#00ff00", "#ffff00"),
			progress.WithWidth(40),
		),
		stageProgress: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(20),
		),
		snapshot: Snapshot{
			ChatRateHistory: make([]float64, 0, historySize),
			LatencyHistory:  make([]float64, 0, historySize),
			MemoryHistory:   make([]float64, 0, historySize),
			MemoryMax:       defaultMemoryMax,
		},
	}
}

// statusBadge renders the server's health status.
func statusBadge(h chat.HealthReport) string {
	switch {
	case h.Status == chat.StatusHealthy && h.LLMConfigured:
		return healthyStyle.Render("✓ HEALTHY")
	case h.Status == chat.StatusHealthy:
		return warningStyle.Render("⚠ NO LLM")
	default:
		return errorStyle.Render("✗ " + strings.ToUpper(h.Status))
	}
}

// ratioBadge flags a low stage hit ratio.
func ratioBadge(ratio float64) string {
	if ratio >= 0.5 {
		return healthyStyle.Render("[✓]")
	} else if ratio >= 0.2 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchSnapshot(m.health, m.metrics),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshot reads the health report and, when configured, metrics. A
// failed health read is an error; failed metric queries are shown inline.
func fetchSnapshot(health *HealthClient, metrics *MetricsClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		report, err := health.Fetch(ctx)
		if err != nil {
			return errMsg(err)
		}
		snap := Snapshot{Health: *report}
		if metrics == nil {
			return snapshotMsg(snap)
		}
		snap.MetricsEnabled = true
		snap.MetricsErr = collectMetrics(ctx, metrics, &snap)
		return snapshotMsg(snap)
	}
}

// collectMetrics fills snap from metrics and returns the first query error.
func collectMetrics(ctx context.Context, metrics *MetricsClient, snap *Snapshot) error {
	var firstErr error
	read := func(f func(context.Context) (float64, error)) float64 {
		v, err := f(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return v
	}

	snap.ChatRate = read(metrics.QueryChatRate)
	snap.ChatErrors = read(metrics.QueryChatErrors)
	snap.NoInformation = read(metrics.QueryNoInformationRatio)
	snap.Stages = make(map[string]StageStats, len(Stages))
	for _, stage := range Stages {
		snap.Stages[stage] = StageStats{
			HitRatio: read(func(ctx context.Context) (float64, error) {
				return metrics.QueryStageHitRatio(ctx, stage)
			}),
			LatencyP95: read(func(ctx context.Context) (float64, error) {
				return metrics.QueryStageLatencyP95(ctx, stage)
			}),
		}
	}
	snap.MemoryMB = read(metrics.QueryMemoryMB)
	snap.Goroutines = int(read(metrics.QueryGoroutines))
	snap.Uptime = int64(read(metrics.QueryUptime))
	return firstErr
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchSnapshot(m.health, m.metrics)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchSnapshot(m.health, m.metrics),
		)

	case snapshotMsg:
		next := Snapshot(msg)
		next.ChatRateHistory = appendToHistory(m.snapshot.ChatRateHistory, next.ChatRate)
		next.LatencyHistory = appendToHistory(m.snapshot.LatencyHistory,
			next.Stages[retrieval.StageThreshold].LatencyP95*1000)
		next.MemoryHistory = appendToHistory(m.snapshot.MemoryHistory, next.MemoryMB)
		next.MemoryMax = max(m.snapshot.MemoryMax, next.MemoryMB)

		m.snapshot = next
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("portfolio-rag Monitor")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach portfolio-rag") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.health.URL()) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Start the server with: portfolio-rag serve") + "\n\n")
	b.WriteString(footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" retry") + "\n")

	return containerStyle.Render(header + "\n" + b.String())
}

func (m Model) renderDashboard() string {
	var b strings.Builder
	s := m.snapshot

	lastUpdate := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}

	b.WriteString(headerStyle.Render(" portfolio-rag Monitor ") + "\n")
	if m.lastUpdate.IsZero() {
		b.WriteString(dimStyle.Render("Waiting for first refresh...") + "\n")
	} else {
		b.WriteString(fmt.Sprintf("%s   %s   %s\n",
			statusBadge(s.Health),
			dimStyle.Render("Uptime:")+" "+valueStyle.Render(FormatUptime(s.Uptime)),
			dimStyle.Render(lastUpdate)))
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Knowledge Base") + "\n")
	loaded := errorStyle.Render("not loaded")
	if s.Health.DatabaseLoaded {
		loaded = healthyStyle.Render("loaded")
	}
	b.WriteString(labelStyle.Render("  Vector store: ") + loaded + "\n")
	if s.Health.DocumentCount != nil {
		b.WriteString(labelStyle.Render("  Chunks: ") + valueStyle.Render(fmt.Sprintf("%d", *s.Health.DocumentCount)) + "\n")
	}
	if s.Health.SampleResults != nil {
		b.WriteString(labelStyle.Render("  Sample query: ") +
			dimStyle.Render(fmt.Sprintf("%q", s.Health.SampleQuery)) + " " +
			valueStyle.Render(fmt.Sprintf("%d results", *s.Health.SampleResults)) + "\n")
	}
	llm := warningStyle.Render("missing credential")
	if s.Health.LLMConfigured {
		llm = healthyStyle.Render("configured")
	}
	b.WriteString(labelStyle.Render("  LLM: ") + llm + "\n")
	if s.Health.Error != "" {
		b.WriteString(labelStyle.Render("  Error: ") + errorStyle.Render(s.Health.Error) + "\n")
	}

	if s.MetricsEnabled {
		m.renderMetrics(&b)
	} else {
		b.WriteString("\n" + dimStyle.Render("Pass --metrics-url for chat and retrieval metrics") + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}

func (m Model) renderMetrics(b *strings.Builder) {
	s := m.snapshot

	b.WriteString("\n" + sectionStyle.Render("┃ Chat") + "\n")
	b.WriteString(labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(s.ChatRate)) +
		"   " + createSparkline(s.ChatRateHistory) + "\n")
	b.WriteString(labelStyle.Render("  Errors: ") + valueStyle.Render(FormatRate(s.ChatErrors)) +
		"  " + labelStyle.Render("No information: ") + valueStyle.Render(FormatPercentage(s.NoInformation)) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Retrieval") + "\n")
	for _, stage := range Stages {
		st := s.Stages[stage]
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-11s", stage)) +
			m.stageProgress.ViewAs(min(st.HitRatio, 1)) + " " +
			valueStyle.Render(fmt.Sprintf("%6s", FormatPercentage(st.HitRatio))) + " " +
			ratioBadge(st.HitRatio) + "  " +
			dimStyle.Render("p95 ") + valueStyle.Render(FormatLatency(st.LatencyP95)) + "\n")
	}
	b.WriteString(labelStyle.Render("  Threshold p95: ") + createSparkline(s.LatencyHistory) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ System") + "\n")
	memoryPercent := 0.0
	if s.MemoryMax > 0 {
		memoryPercent = min(s.MemoryMB/s.MemoryMax, 1)
	}
	b.WriteString(labelStyle.Render("  Memory: ") +
		m.memoryProgress.ViewAs(memoryPercent) + " " +
		dimStyle.Render(FormatMemory(s.MemoryMB)) + "\n")
	b.WriteString(labelStyle.Render("  Goroutines: ") + valueStyle.Render(fmt.Sprintf("%d", s.Goroutines)) + "\n")

	if s.MetricsErr != nil {
		b.WriteString(warningStyle.Render("  ⚠ metrics: "+s.MetricsErr.Error()) + "\n")
	}
}
