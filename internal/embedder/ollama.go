package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
)

// ollamaEmbedder implements rag.Embedder against a local Ollama server's
// /api/embed endpoint. No API key is required.
type ollamaEmbedder struct {
	hc         *httpclient.Client
	host       string
	model      string
	vectorSize int
	maxBatch   int
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	offset := 0
	for _, batch := range splitBatches(texts, e.maxBatch) {
		vecs, err := e.embedOne(ctx, batch)
		if err != nil {
			return nil, err
		}
		copy(out[offset:], vecs)
		offset += len(batch)
	}
	return out, nil
}

func (e *ollamaEmbedder) embedOne(ctx context.Context, texts []string) ([][]float32, error) {
	body := ollamaEmbedRequest{Model: e.model, Input: texts}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	resp, err := e.hc.Do(ctx, http.MethodPost, e.host+"/api/embed", headers, httpclient.BytesBody(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}

	var result ollamaEmbedResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("embedder: %s", result.Error)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	return result.Embeddings, nil
}

func (e *ollamaEmbedder) CountTokens(text string) int {
	return countTokens(e.model, text)
}

func (e *ollamaEmbedder) VectorSize() int {
	if e.vectorSize > 0 {
		return e.vectorSize
	}
	return defaultOllamaDimensions
}
