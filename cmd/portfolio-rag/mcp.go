package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/portfolio-rag/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the portfolio as MCP tools over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing:

  ask_portfolio     answer a question with sources
  search_portfolio  return the nearest document chunks with scores

Logs are written to stderr. Add to an MCP client configuration as:

  {"command": "portfolio-rag", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close(ctx)
	logger := d.logger.Underlying()

	service, err := d.newService(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize chat service: %w", err)
	}

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "portfolio-rag",
		Version: version,
		Logger:  logger.Named("mcp"),
	}, service)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
