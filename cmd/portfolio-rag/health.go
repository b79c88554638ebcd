package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/portfolio-rag/internal/monitor"
)

var (
	// serverURL is the base URL of a running portfolio-rag server.
	serverURL string
)

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "portfolio-rag server URL")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running server's health",
	Long: `Query /api/health on a running portfolio-rag server and print the
diagnostics. Exits non-zero when the server is unreachable or its vector
store failed to load.

Examples:
  portfolio-rag health
  portfolio-rag health --server http://localhost:9000`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	report, err := monitor.NewHealthClient(serverURL, 10*time.Second).Fetch(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server URL:      %s\n", serverURL)
	fmt.Fprintf(out, "Status:          %s\n", report.Status)
	fmt.Fprintf(out, "Database loaded: %t\n", report.DatabaseLoaded)
	if report.DocumentCount != nil {
		fmt.Fprintf(out, "Documents:       %d\n", *report.DocumentCount)
	}
	if report.SampleResults != nil {
		fmt.Fprintf(out, "Sample query:    %q -> %d results\n", report.SampleQuery, *report.SampleResults)
	}
	fmt.Fprintf(out, "LLM configured:  %t\n", report.LLMConfigured)
	if report.Error != "" {
		fmt.Fprintf(out, "Error:           %s\n", report.Error)
	}

	if !report.DatabaseLoaded {
		return fmt.Errorf("server is %s: vector store not loaded", report.Status)
	}
	return nil
}
