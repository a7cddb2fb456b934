package embedder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 100}))
}

func TestSplitBatches(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}
	got := splitBatches(texts, 2)
	want := [][]string{{"a", "b"}, {"c", "d"}, {"e"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitBatches = %v, want %v", got, want)
	}

	if got := splitBatches(texts, 0); !reflect.DeepEqual(got, [][]string{texts}) {
		t.Fatalf("splitBatches with maxBatch<=0 should return one batch, got %v", got)
	}
}

func TestCountTokensFallsBackForUnknownModel(t *testing.T) {
	n := countTokens("nomic-embed-text", "abcdefgh")
	if n != 2 {
		t.Fatalf("expected character-based fallback estimate of 2, got %d", n)
	}
}

func TestCountTokensUsesTiktokenForKnownModel(t *testing.T) {
	n := countTokens("text-embedding-3-small", "hello world")
	if n <= 0 {
		t.Fatalf("expected a positive token count, got %d", n)
	}
}

func TestOpenAIEmbedderEmbedSplitsBatches(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req openaiEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := openaiEmbedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1, 2}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	emb, err := New(config.LLMConfig{
		Provider: "openai",
		BaseURL:  srv.URL,
		APIKey:   "test-key",
		Models:   config.LLMModels{Embeddings: "text-embedding-3-small"},
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	oa := emb.(*openAIEmbedder)
	oa.maxBatch = 2

	texts := []string{"a", "b", "c", "d", "e"}
	got, err := emb.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(got))
	}
	if calls != 3 {
		t.Fatalf("expected 3 network calls for batches of 2,2,1, got %d", calls)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "bedrock", Models: config.LLMModels{Embeddings: "x"}}, discardLogger())
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewRequiresAPIKeyForOpenAI(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "openai", Models: config.LLMModels{Embeddings: "text-embedding-3-small"}}, discardLogger())
	if err == nil {
		t.Fatal("expected error when api_key is missing")
	}
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(config.LLMConfig{Provider: "ollama"}, discardLogger())
	if err == nil {
		t.Fatal("expected error when models.embeddings is missing")
	}
}
