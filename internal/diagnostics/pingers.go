// pingers.go implements the Pinger probes wired into the diagnostics
// server's readiness check. Grounded on the teacher's
// internal/server/pingers.go (QdrantPinger, ported unchanged in spirit);
// the teacher's LLMPinger (which probed a chat model) has no equivalent
// here since this project's LLM usage is embeddings-only and is instead
// probed via EmbedderPinger below.
package diagnostics

import (
	"context"
	"fmt"
)

// pingable is satisfied by rag.QdrantManager and state.SQLiteStore without
// either package importing diagnostics.
type pingable interface {
	Ping(ctx context.Context) error
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	client pingable
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant manager.
func NewQdrantPinger(client pingable) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// StorePinger probes the durable state store's database connection.
type StorePinger struct {
	store pingable
}

// NewStorePinger constructs a StorePinger for the given state store.
func NewStorePinger(store pingable) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "state_store" }

// Ping verifies the state store's database connection is alive.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// tokenCounter is satisfied by rag.Embedder's CountTokens method.
type tokenCounter interface {
	CountTokens(text string) int
}

// EmbedderPinger probes an embedding backend by counting tokens in a short
// fixed string — a zero-network-call operation for local tokenizers, cheap
// enough to run on every readiness check without burning API quota.
type EmbedderPinger struct {
	counter tokenCounter
	name    string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given embedder and
// backend label.
func NewEmbedderPinger(counter tokenCounter, name string) *EmbedderPinger {
	return &EmbedderPinger{counter: counter, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping exercises the embedder's tokenizer. It never makes a network call, so
// a failure here only ever means the tokenizer itself is misconfigured.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	if n := p.counter.CountTokens("ping"); n <= 0 {
		return fmt.Errorf("tokenizer returned non-positive count")
	}
	return nil
}
