package embedder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If global.llm.models.embeddings
// matches one of these, a warning is emitted so the operator knows they may
// have misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4", "gpt-3.5", "gpt-35", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "phi-", "phi3",
	"claude", "command-r", "deepseek", "qwen", "solar", "vicuna", "falcon", "yi-",
}

func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// ValidateForRAG is a pre-flight check run before constructing the embedder
// and the Qdrant store, so operators get a clear Config-class error at
// startup rather than a cryptic failure during the first Embed call.
func ValidateForRAG(cfg config.LLMConfig, log *slog.Logger) error {
	switch cfg.Provider {
	case "openai", "openai_compat":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: global.llm.api_key is required for provider %q", cfg.Provider)
		}
	case "azure_openai":
		if cfg.APIKey == "" {
			return fmt.Errorf("embedder: global.llm.api_key is required for provider azure_openai")
		}
		if cfg.BaseURL == "" {
			return fmt.Errorf("embedder: global.llm.base_url is required for provider azure_openai")
		}
	case "ollama":
		// no credentials required
	default:
		return fmt.Errorf("embedder: unknown provider %q — valid values: openai, azure_openai, openai_compat, ollama", cfg.Provider)
	}

	if cfg.Models.Embeddings != "" && looksLikeChatModel(cfg.Models.Embeddings) {
		log.Warn("embedder: configured embeddings model looks like a chat model, not an embedding model — this will likely produce poor or broken embeddings",
			slog.String("model", cfg.Models.Embeddings),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	return nil
}
