// Command qdrant-loader-mcp is the MCP server binary (§4.12, §6): it reads
// JSON-RPC frames from stdin, writes them to stdout, and logs exclusively
// to stderr or MCP_LOG_FILE so the stdio transport is never polluted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
	"github.com/qdrant-loader/qdrant-loader-go/internal/diagnostics"
	"github.com/qdrant-loader/qdrant-loader-go/internal/embedder"
	"github.com/qdrant-loader/qdrant-loader-go/internal/lifecycle"
	"github.com/qdrant-loader/qdrant-loader-go/internal/logging"
	"github.com/qdrant-loader/qdrant-loader-go/internal/mcpserver"
	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
	"github.com/qdrant-loader/qdrant-loader-go/internal/search"
	"github.com/qdrant-loader/qdrant-loader-go/internal/version"
)

func main() {
	log, closeLog, err := logging.NewForMCP()
	if err != nil {
		fmt.Fprintln(os.Stderr, "qdrant-loader-mcp: logging setup:", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(log); err != nil {
		log.Error("qdrant-loader-mcp: fatal", "error", err.Error())
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, _, err := config.Load(os.Getenv("QDRANT_LOADER_CONFIG"), log)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	manager, err := rag.NewQdrantManagerFromURL(cfg.Global.Qdrant.URL, cfg.Global.Qdrant.APIKey)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer manager.Close()

	if err := embedder.ValidateForRAG(cfg.Global.LLM, log); err != nil {
		return fmt.Errorf("embedder config: %w", err)
	}
	emb, err := embedder.New(cfg.Global.LLM, log)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}

	collection := cfg.Global.Qdrant.CollectionName
	if collection == "" {
		collection = "qdrant-loader"
	}

	svc := search.New(manager, emb, collection, configuredProjectIDs(cfg))
	srv := mcpserver.New(svc, mcpserver.Config{Name: "qdrant-loader-mcp", Version: version.Version}, log)

	lc := lifecycle.New(0, log)
	ctx, shutdown := lc.Run(context.Background())
	defer shutdown()

	// The JSON-RPC transport owns stdout, so any diagnostics HTTP endpoint
	// must be opt-in and entirely separate from it.
	if addr := os.Getenv("QDRANT_LOADER_MCP_DIAGNOSTICS_ADDR"); addr != "" {
		host, port := diagnostics.ParseAddr(addr)
		diag := diagnostics.New(&diagnostics.Config{
			Host: host, Port: port, Logger: log,
			Pingers: []diagnostics.Pinger{diagnostics.NewQdrantPinger(manager)},
		})
		go func() {
			if err := diag.Start(ctx); err != nil {
				log.Error("qdrant-loader-mcp: diagnostics server error", "error", err.Error())
			}
		}()
	}

	return srv.Run(ctx)
}

// configuredProjectIDs returns every project_id in cfg, sorted, so the
// Search Service scopes queries to "project_id in configured_projects"
// (§4.11) rather than searching across projects this deployment doesn't
// even know about.
func configuredProjectIDs(cfg *config.Config) []string {
	ids := make([]string, 0, len(cfg.Projects))
	for id := range cfg.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
