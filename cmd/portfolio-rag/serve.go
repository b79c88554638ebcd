package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/portfolio-rag/internal/http"
)

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chatbot HTTP API",
	Long: `Start the chatbot HTTP API.

The vector store is opened once at startup. If it cannot be opened the
server still starts: /api/health reports the failure and /api/chat
answers 500 until the store is ingested and the server restarted.

Endpoints:
  GET  /             status message
  POST /api/chat     {"message": "..."} -> {"answer": "...", "sources": [...]}
  GET  /api/health   diagnostics
  GET  /metrics      Prometheus metrics

Examples:
  # Start with defaults (0.0.0.0:8000)
  portfolio-rag serve

  # Use a config file and a different port
  portfolio-rag serve --config config.yaml --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	shutdownTimeout := d.cfg.Server.ShutdownTimeout.Duration()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.Close(closeCtx); err != nil {
			d.logger.Warn(closeCtx, "shutdown incomplete", zap.Error(err))
		}
	}()
	logger := d.logger.Underlying()

	if serveHost != "" {
		d.cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		d.cfg.Server.Port = servePort
	}
	if err := d.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service, err := d.newService(ctx, reg)
	if err != nil {
		return fmt.Errorf("failed to initialize chat service: %w", err)
	}

	srv, err := httpserver.NewServer(service, logger.Named("http"), &httpserver.Config{
		Host:         d.cfg.Server.Host,
		Port:         d.cfg.Server.Port,
		AllowOrigins: d.cfg.Server.AllowOrigins,
		Gatherer:     reg,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	logger.Info("starting portfolio-rag",
		zap.String("version", version),
		zap.String("addr", d.cfg.Server.Addr()),
		zap.Bool("database_loaded", service.State().Loaded()),
		zap.Bool("llm_configured", service.Generator().Configured()),
		zap.Duration("shutdown_timeout", shutdownTimeout))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal, shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}
