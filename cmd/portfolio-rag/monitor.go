package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/portfolio-rag/internal/monitor"
)

var (
	monitorServer     string
	monitorMetricsURL string
	monitorJob        string
	monitorInterval   time.Duration
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorServer, "server", "http://localhost:8000", "portfolio-rag server URL")
	monitorCmd.Flags().StringVar(&monitorMetricsURL, "metrics-url", "", "Prometheus-compatible query API scraping the server (e.g. http://localhost:9090)")
	monitorCmd.Flags().StringVar(&monitorJob, "job", "", "scrape job name for process metrics (default: any)")
	monitorCmd.Flags().DurationVarP(&monitorInterval, "interval", "i", 5*time.Second, "refresh interval")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal dashboard for a running server",
	Long: `Show a live dashboard of a running portfolio-rag server.

The health section polls /api/health. With --metrics-url the dashboard
also queries a Prometheus or VictoriaMetrics server that scrapes the
server's /metrics endpoint, and shows chat rates, retrieval stage hit
ratios and latencies, memory and goroutines.

Keys: q quits, r refreshes now.

Examples:
  portfolio-rag monitor
  portfolio-rag monitor --metrics-url http://localhost:9090 --interval 2s`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorInterval < time.Second {
		return fmt.Errorf("--interval must be at least 1s")
	}

	var metrics *monitor.MetricsClient
	if monitorMetricsURL != "" {
		metrics = monitor.NewMetricsClient(monitorMetricsURL, monitorJob)
	}
	model := monitor.NewModel(monitor.NewHealthClient(monitorServer, 5*time.Second), metrics, monitorInterval)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
