// Package embedder implements the provider-neutral embedding client (§4.4):
// OpenAI, Azure OpenAI, OpenAI-compatible, and Ollama backends behind the
// rag.Embedder interface. Grounded on the teacher's
// internal/embedder/{factory,openai,ollama}.go — same plain-HTTP per-backend
// implementations and cascading-default construction — generalized to run
// every outbound call through internal/httpclient instead of a bare
// *http.Client, so rate limiting, retry, and error classification (§4.3) are
// shared with the rest of the system.
package embedder

import (
	"fmt"
	"log/slog"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
)

const (
	// defaultMaxBatch bounds how many texts are sent in a single embeddings
	// call before the client splits the request (§4.4: "incoming lists
	// longer than max_batch are split").
	defaultMaxBatch = 96

	// defaultOllamaDimensions is nomic-embed-text's output size; other
	// Ollama models may differ — set global.llm.embeddings.vector_size to
	// override.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is text-embedding-3-small's output size.
	defaultOpenAIDimensions = 1536
)

// New constructs a rag.Embedder from the resolved LLM config section,
// dispatching on cfg.Provider: openai | azure_openai | openai_compat | ollama.
func New(cfg config.LLMConfig, log *slog.Logger) (rag.Embedder, error) {
	if log == nil {
		log = slog.Default()
	}
	model := cfg.Models.Embeddings
	if model == "" {
		return nil, fmt.Errorf("embedder: global.llm.models.embeddings is required")
	}

	maxAttempts := cfg.Request.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	hc := httpclient.NewClient(httpclient.Config{
		MaxAttempts:       maxAttempts,
		RequestsPerMinute: float64(rateLimitOrDefault(cfg.RateLimits.RPM)),
		Burst:             5,
		Logger:            log,
	})

	vectorSize := int(cfg.Embeddings.VectorSize)

	switch cfg.Provider {
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return &ollamaEmbedder{
			hc:         hc,
			host:       base,
			model:      model,
			vectorSize: vectorSize,
			maxBatch:   defaultMaxBatch,
		}, nil

	case "openai", "openai_compat":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: global.llm.api_key is required for provider %q", cfg.Provider)
		}
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &openAIEmbedder{
			hc:         hc,
			baseURL:    base,
			apiKey:     cfg.APIKey,
			model:      model,
			vectorSize: vectorSize,
			maxBatch:   defaultMaxBatch,
		}, nil

	case "azure_openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: global.llm.api_key is required for provider azure_openai")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedder: global.llm.base_url (resource endpoint) is required for provider azure_openai")
		}
		return &openAIEmbedder{
			hc:         hc,
			baseURL:    cfg.BaseURL + "/openai",
			apiKey:     cfg.APIKey,
			model:      model,
			vectorSize: vectorSize,
			azure:      true,
			apiVersion: "2025-04-01-preview",
			maxBatch:   defaultMaxBatch,
		}, nil

	default:
		return nil, fmt.Errorf("embedder: unknown provider %q — valid values: openai, azure_openai, openai_compat, ollama", cfg.Provider)
	}
}

func rateLimitOrDefault(rpm int) int {
	if rpm <= 0 {
		return 60
	}
	return rpm
}

// splitBatches divides texts into chunks of at most maxBatch, preserving
// order.
func splitBatches(texts []string, maxBatch int) [][]string {
	if maxBatch <= 0 || len(texts) <= maxBatch {
		return [][]string{texts}
	}
	var out [][]string
	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}
