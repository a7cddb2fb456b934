package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
)

// openAIEmbedder implements rag.Embedder against the OpenAI or Azure OpenAI
// embeddings REST API, routed through the shared rate-limited httpclient.
type openAIEmbedder struct {
	hc         *httpclient.Client
	baseURL    string
	apiKey     string
	model      string
	vectorSize int
	azure      bool
	apiVersion string
	maxBatch   int
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *openAIEmbedder) embedOne(ctx context.Context, texts []string) ([][]float32, error) {
	body := openaiEmbedRequest{Input: texts, Model: e.model}
	if e.vectorSize > 0 {
		body.Dimensions = e.vectorSize
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("embedder: marshal request: %w", err)
	}

	url := e.baseURL + "/embeddings"
	if e.azure {
		url = e.baseURL + "/deployments/" + e.model + "/embeddings?api-version=" + e.apiVersion
	}

	headers := http.Header{"Content-Type": []string{"application/json"}}
	if e.azure {
		headers.Set("api-key", e.apiKey)
	} else {
		headers.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.hc.Do(ctx, http.MethodPost, url, headers, httpclient.BytesBody(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder: read response: %w", err)
	}

	var result openaiEmbedResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("embedder: decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("embedder: %s", result.Error.Message)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

func (e *openAIEmbedder) CountTokens(text string) int {
	return countTokens(e.model, text)
}

func (e *openAIEmbedder) VectorSize() int {
	if e.vectorSize > 0 {
		return e.vectorSize
	}
	return defaultOpenAIDimensions
}
