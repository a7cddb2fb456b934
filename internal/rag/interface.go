// Package rag defines the QDrant Manager (§4.9) and Embedding Client (§4.4)
// interfaces: collection lifecycle, batched upsert, filtered search, and
// filtered delete, plus the provider-neutral embedding façade. Concrete
// implementations (Qdrant, OpenAI/Azure/Ollama) satisfy these interfaces so
// the Ingestion Orchestrator and Search Service never depend on a specific
// backend.
package rag

import (
	"context"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

// SearchFilter composes the payload-equality and "in" conditions a §4.9
// search may apply. Empty fields are omitted from the composed filter.
// ProjectID is effectively mandatory in practice — every query the Search
// Service issues scopes to its configured project(s) — but is left a plain
// string here so Manager implementations, not this struct, enforce that.
type SearchFilter struct {
	ProjectID        string
	ProjectIDs       []string // "in" operator; ignored if ProjectID is set
	SourceType       string
	SourceTypes      []string // "in" operator; ignored if SourceType is set
	SourceName       string
	DocumentID       string
	Attachment       *bool // non-nil: metadata.attachment_of is-set / is-unset
	ParentDocumentID string
}

// SearchHit is one ranked result from Manager.Search: the payload fields
// required by spec §6's vector store payload schema, plus the similarity
// score and point id.
type SearchHit struct {
	Score       float32
	PointID     string
	ProjectID   string
	DocumentID  string
	ChunkIndex  int
	Content     string
	SourceType  string
	SourceName  string
	URL         string
	Title       string
	Metadata    map[string]string
}

// Manager is the QDrant Manager façade (§4.9). Implementations must be safe
// to call from multiple goroutines — the Orchestrator's embed/upsert pool
// calls Upsert concurrently across documents, and the Search Service calls
// Search concurrently across requests.
type Manager interface {
	// InitCollection creates the named collection if absent. If force is
	// true and the collection exists, it is deleted and recreated
	// (destructive) — used only by the `init --force` CLI path.
	InitCollection(ctx context.Context, name string, vectorSize uint64, force bool) error

	// Upsert writes records in sub-batches of at most batchSize, one
	// network call per sub-batch. point_id is a deterministic function of
	// each record's (ProjectID, Chunk.ID) — see PointID — so replays
	// overwrite rather than duplicate.
	Upsert(ctx context.Context, collection string, records []model.VectorRecord, batchSize int) error

	// Search issues one filtered similarity search, clamping limit to
	// [1, 100], and returns hits in descending similarity order.
	Search(ctx context.Context, collection string, queryVector []float32, limit int, filter SearchFilter) ([]SearchHit, error)

	// DeleteByDocument removes every point for documentID within
	// projectID. Best-effort under failure — the Orchestrator's orphan
	// sweep retries it on the next run if it fails.
	DeleteByDocument(ctx context.Context, collection, documentID, projectID string) error

	// AncestorTitles scans every point matching filter and returns the set
	// of titles appearing in any point's hierarchy_ancestors payload field,
	// independent of any similarity ranking. Backs hierarchy_search's
	// has_children filter (§4.11).
	AncestorTitles(ctx context.Context, collection string, filter SearchFilter) (map[string]bool, error)

	// Close releases the underlying connection.
	Close() error
}

// Embedder is the provider-neutral embedding façade (§4.4).
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice. Callers may pass
	// more texts than a provider's max batch size — implementations split
	// internally and concatenate results in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// CountTokens returns the token count of text under the configured
	// tokenizer, or a character-based estimate when no tokenizer is
	// registered for the model.
	CountTokens(text string) int

	// VectorSize returns the dimensionality of vectors this embedder
	// produces.
	VectorSize() int
}
