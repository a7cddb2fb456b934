// Package mcpserver implements the MCP Server (§4.12): a stdio JSON-RPC 2.0
// server exposing the Search Service's three tools. Grounded on
// fyrsmithlabs-contextd's internal/mcp package — mcp.NewServer +
// mcp.AddTool's typed (ctx, req, args) -> (*CallToolResult, Output, error)
// signature, and cmd/contextd/stdio.go's StdioTransport Run loop. Unlike
// the teacher's HTTP-delegation architecture, this server calls
// internal/search directly: there is no separate daemon process to
// delegate to.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/qdrant-loader/qdrant-loader-go/internal/search"
)

// Server wraps an *mcp.Server bound to one search.Service.
type Server struct {
	mcp *mcp.Server
	svc *search.Service
	log *slog.Logger
}

// Config names the MCP implementation reported to clients on initialize.
type Config struct {
	Name    string
	Version string
}

// New constructs a Server and registers the search, hierarchy_search, and
// attachment_search tools (§4.12).
func New(svc *search.Service, cfg Config, log *slog.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "qdrant-loader-mcp"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		svc: svc,
		log: log,
	}
	s.registerTools()
	return s
}

// Run serves JSON-RPC frames over stdio until ctx is cancelled (§4.12's
// transport: "line-delimited JSON over stdio").
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcpserver: starting stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserver: run: %w", err)
	}
	return nil
}
