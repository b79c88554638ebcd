// Package mcp exposes the portfolio chatbot as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfolio-rag/internal/chat"
)

// Server is an MCP server backed by the chat service.
type Server struct {
	mcp     *mcp.Server
	service *chat.Service
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "portfolio-rag")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging. Must not write to stdout.
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "portfolio-rag",
		Version: "dev",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server and registers the portfolio tools.
func NewServer(cfg *Config, service *chat.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if service == nil {
		return nil, fmt.Errorf("chat service is required")
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		service: service,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves on the stdio transport until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single session on t. Used to embed the server or test it.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
