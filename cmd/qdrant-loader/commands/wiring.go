package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/qdrant-loader/qdrant-loader-go/internal/embedder"
	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// statePath resolves global.state.database_path relative to --workspace,
// falling back to state.DefaultDBPath when unset.
func statePath() (string, error) {
	if cfg.Global.State.DatabasePath == "" {
		return state.DefaultDBPath()
	}
	if filepath.IsAbs(cfg.Global.State.DatabasePath) {
		return cfg.Global.State.DatabasePath, nil
	}
	return filepath.Join(workspacePath, cfg.Global.State.DatabasePath), nil
}

// openStore opens the configured state store (§4.2).
func openStore() (*state.SQLiteStore, error) {
	path, err := statePath()
	if err != nil {
		return nil, fmt.Errorf("state path: %w", err)
	}
	store, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state store %s: %w", path, err)
	}
	return store, nil
}

// openManager connects to the configured Qdrant instance (§4.9).
func openManager() (*rag.QdrantManager, error) {
	manager, err := rag.NewQdrantManagerFromURL(cfg.Global.Qdrant.URL, cfg.Global.Qdrant.APIKey)
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	return manager, nil
}

// openEmbedder constructs the configured embedding client (§4.4), running
// the same pre-flight validation the teacher's ingest command ran before
// ever touching the network.
func openEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.ValidateForRAG(cfg.Global.LLM, log); err != nil {
		return nil, err
	}
	emb, err := embedder.New(cfg.Global.LLM, log)
	if err != nil {
		return nil, fmt.Errorf("construct embedder: %w", err)
	}
	return emb, nil
}

// collectionName returns the configured Qdrant collection, defaulting to
// "qdrant-loader" when unset.
func collectionName() string {
	if cfg.Global.Qdrant.CollectionName != "" {
		return cfg.Global.Qdrant.CollectionName
	}
	return "qdrant-loader"
}

// vectorSize resolves global.llm.embeddings.vector_size, falling back to
// the configured provider's known default dimensionality.
func vectorSize() uint64 {
	if cfg.Global.LLM.Embeddings.VectorSize > 0 {
		return cfg.Global.LLM.Embeddings.VectorSize
	}
	return uint64(embedder.DefaultDimensions(cfg.Global.LLM.Provider)) //nolint:gosec // bounded by known providers
}
