// Package config loads the qdrant-loader configuration document described in
// spec §6: a YAML file with two top-level keys, `global` and `projects`.
//
// Loading is layered: defaults → YAML file → `${VAR}` expansion → env var
// overlay for the handful of global connection settings that have a direct
// env var equivalent (env vars always win, exactly as the teacher's
// scalar-overlay config loader does it). Every string value in the YAML
// document may reference an environment variable via `${VAR}`; an
// unresolved reference is a Config error (spec §7), never a silent empty
// string.
//
// File search order:
//  1. the explicitPath argument to Load (the CLI passes
//     <workspace>/qdrant-loader.yaml when that file exists; qdrant-loader-mcp
//     passes the QDRANT_LOADER_CONFIG value)
//  2. QDRANT_LOADER_CONFIG environment variable
//  3. ~/.qdrant-loader/config.yaml
//  4. ./qdrant-loader.yaml
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Global   Global             `yaml:"global"`
	Projects map[string]Project `yaml:"projects"`
}

// Global holds settings shared across all projects.
type Global struct {
	Qdrant         QdrantConfig         `yaml:"qdrant"`
	LLM            LLMConfig            `yaml:"llm"`
	Chunking       ChunkingConfig       `yaml:"chunking"`
	FileConversion FileConversionConfig `yaml:"file_conversion"`
	State          StateConfig          `yaml:"state"`
	Ingestion      IngestionConfig      `yaml:"ingestion"`
}

// IngestionConfig tunes the Orchestrator's three bounded stage pools (§4.8).
// Zero values are replaced by the documented defaults where the
// Orchestrator is constructed.
type IngestionConfig struct {
	FetchConcurrency int `yaml:"fetch_concurrency"` // default 8
	EmbedConcurrency int `yaml:"embed_concurrency"` // default 4
	EmbedBatch       int `yaml:"embed_batch"`       // default 64
	QueueCapacity    int `yaml:"queue_capacity"`    // default 32, per stage
	DrainDeadlineS   int `yaml:"drain_deadline_s"`  // default 30
}

// QdrantConfig holds vector store connection settings.
type QdrantConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	CollectionName string `yaml:"collection_name"`
	TimeoutS       int    `yaml:"timeout_s"`
	BatchSize      int    `yaml:"batch_size"`
}

// LLMConfig holds embedding (and, for config-schema parity with upstream,
// chat) model settings. Only Embeddings is consumed by this system — see
// DESIGN.md for why chat invocation is out of scope.
type LLMConfig struct {
	Provider   string          `yaml:"provider"` // openai | azure_openai | openai_compat | ollama
	BaseURL    string          `yaml:"base_url"`
	APIKey     string          `yaml:"api_key"`
	Models     LLMModels       `yaml:"models"`
	Request    LLMRequest      `yaml:"request"`
	RateLimits LLMRateLimits   `yaml:"rate_limits"`
	Embeddings LLMEmbeddingCfg `yaml:"embeddings"`
}

type LLMModels struct {
	Embeddings string `yaml:"embeddings"`
	Chat       string `yaml:"chat"`
}

type LLMRequest struct {
	TimeoutS     int `yaml:"timeout_s"`
	MaxRetries   int `yaml:"max_retries"`
	BackoffSMin  int `yaml:"backoff_s_min"`
	BackoffSMax  int `yaml:"backoff_s_max"`
}

type LLMRateLimits struct {
	RPM         int `yaml:"rpm"`
	Concurrency int `yaml:"concurrency"`
}

type LLMEmbeddingCfg struct {
	VectorSize uint64 `yaml:"vector_size"`
}

// ChunkingConfig holds chunker tuning (§4.6).
type ChunkingConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	MaxChunkBytes int `yaml:"max_chunk_bytes"`
}

// FileConversionConfig holds converter bounds (§4.5).
type FileConversionConfig struct {
	MaxFileSize        int64 `yaml:"max_file_size"`
	ConversionTimeoutS int   `yaml:"conversion_timeout_s"`
}

// StateConfig holds state store settings (§4.2).
type StateConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Project is one logical grouping of sources sharing a collection.
type Project struct {
	DisplayName string            `yaml:"display_name"`
	Description string            `yaml:"description"`
	Sources     map[string]Source `yaml:"sources"` // key: git|confluence|jira|publicdocs|localfile
}

// Source maps a source kind to its named instances and their adapter-
// specific settings, e.g. sources.git.B: {url: ..., branch: ...}.
type Source map[string]map[string]any

// envOverlay maps a handful of global connection settings to their
// directly corresponding env var, mirroring the teacher's scalar-overlay
// technique. Env vars always win over YAML. Project/source settings are
// structural and have no flat env var equivalent, so they are YAML-only.
var envOverlay = []struct {
	envKey string
	get    func(*Config) string
	set    func(*Config, string)
}{
	{"QDRANT_URL", func(c *Config) string { return c.Global.Qdrant.URL }, func(c *Config, v string) { c.Global.Qdrant.URL = v }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Global.Qdrant.APIKey }, func(c *Config, v string) { c.Global.Qdrant.APIKey = v }},
	{"QDRANT_COLLECTION_NAME", func(c *Config) string { return c.Global.Qdrant.CollectionName }, func(c *Config, v string) { c.Global.Qdrant.CollectionName = v }},
	{"LLM_PROVIDER", func(c *Config) string { return c.Global.LLM.Provider }, func(c *Config, v string) { c.Global.LLM.Provider = v }},
	{"LLM_BASE_URL", func(c *Config) string { return c.Global.LLM.BaseURL }, func(c *Config, v string) { c.Global.LLM.BaseURL = v }},
	{"LLM_API_KEY", func(c *Config) string { return c.Global.LLM.APIKey }, func(c *Config, v string) { c.Global.LLM.APIKey = v }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Global.LLM.Models.Embeddings }, func(c *Config, v string) { c.Global.LLM.Models.Embeddings = v }},
	{"QDRANT_LOADER_STATE_DB", func(c *Config) string { return c.Global.State.DatabasePath }, func(c *Config, v string) { c.Global.State.DatabasePath = v }},
}

var varRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load locates, reads, expands, and parses the configuration document.
// It returns the resolved Config, the path that was loaded (empty if none
// was found — env-only operation is not supported for project config but
// is tolerated so `version`/`--help` never need a file), and an error for
// any Config-class failure (§7): missing file when explicitly named,
// invalid YAML, duplicate project_id (impossible via a YAML map key, so
// this is only a parse-shape check), or an unresolved `${VAR}`.
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, "", fmt.Errorf("config: %s: file not found", explicitPath)
		}
		log.Debug("config: no YAML config file found")
		return &Config{}, "", nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded, err := expandVars(string(raw))
	if err != nil {
		return nil, "", fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envOverlay {
		if env := os.Getenv(m.envKey); env != "" {
			m.set(&cfg, env)
			applied++
			continue
		}
		if v := m.get(&cfg); v != "" {
			os.Setenv(m.envKey, v)
		}
	}

	log.Info("config: loaded",
		slog.String("path", path),
		slog.Int("env_overrides_applied", applied),
		slog.Int("projects", len(cfg.Projects)),
	)

	return &cfg, path, nil
}

// expandVars replaces every ${VAR} reference with the environment variable's
// value. A reference to an unset variable is a Config error.
func expandVars(doc string) (string, error) {
	var missing []string
	out := varRefPattern.ReplaceAllStringFunc(doc, func(m string) string {
		name := varRefPattern.FindStringSubmatch(m)[1]
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved environment variable reference(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("QDRANT_LOADER_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".qdrant-loader", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("qdrant-loader.yaml"); err == nil {
		return "qdrant-loader.yaml"
	}

	return ""
}
