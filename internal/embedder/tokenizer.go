package embedder

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/qdrant-loader/qdrant-loader-go/internal/tokencount"
)

// encodingForModel maps an embedding model name fragment to its tiktoken
// encoding. Models not listed here (Ollama models, unknown OpenAI-compatible
// models) have no registered tokenizer and fall back to
// tokencount.Estimate — this resolves spec.md §9 Open Question 3.
var encodingForModel = []struct {
	prefix   string
	encoding string
}{
	{"text-embedding-3", "cl100k_base"},
	{"text-embedding-ada", "cl100k_base"},
}

var (
	encoderMu    sync.Mutex
	encoderCache = map[string]*tiktoken.Tiktoken{}
)

// countTokens returns model's exact token count via tiktoken-go when a
// tokenizer is registered for it, otherwise the character-based estimate.
func countTokens(model, text string) int {
	enc, ok := encoderFor(model)
	if !ok {
		return tokencount.Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

func encoderFor(model string) (*tiktoken.Tiktoken, bool) {
	name := resolveEncoding(model)
	if name == "" {
		return nil, false
	}

	encoderMu.Lock()
	defer encoderMu.Unlock()
	if enc, ok := encoderCache[name]; ok {
		return enc, true
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, false
	}
	encoderCache[name] = enc
	return enc, true
}

func resolveEncoding(model string) string {
	lower := strings.ToLower(model)
	for _, m := range encodingForModel {
		if strings.Contains(lower, m.prefix) {
			return m.encoding
		}
	}
	return ""
}
