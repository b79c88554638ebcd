// Package main implements the portfolio-rag command: the chatbot API
// server, document ingestion and local diagnostics.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath is an optional YAML file layered under the environment.
	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "portfolio-rag",
	Short: "Answer questions about a portfolio from its documents",
	Long: `portfolio-rag answers questions about a person's resume and projects
using retrieval-augmented generation over an ingested document store.

Configuration is read from an optional YAML file (--config), a .env file
in the working directory and PORTFOLIO_RAG_* environment variables.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
}
