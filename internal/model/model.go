// Package model holds the data model shared by every stage of the
// ingestion pipeline (§3): Document, Chunk, and VectorRecord. These are
// transient values that flow from Source Adapters through the Orchestrator
// to the QDrant Manager — only StateRecord (internal/state) and
// VectorRecord's persisted form (inside Qdrant) survive a run.
package model

import "time"

// SourceType enumerates the supported upstream source kinds (§3).
type SourceType string

const (
	SourceGit        SourceType = "git"
	SourceConfluence SourceType = "confluence"
	SourceJira       SourceType = "jira"
	SourcePublicDocs SourceType = "publicdocs"
	SourceLocalFile  SourceType = "localfile"
)

// Document is the unit of ingestion (§3). id is deterministic: two ingests
// of the same upstream object yield the same id (internal/docid.DocumentID).
type Document struct {
	ID          string
	Title       string
	ContentType string
	Content     string
	Metadata    map[string]string
	SourceType  SourceType
	SourceName  string
	URL         string
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// VersionSignal is a cheap, adapter-specific change indicator (commit
	// SHA, ETag, Last-Modified, mtime+size) used by the Orchestrator to
	// skip a fetch before computing the authoritative content hash (§4.8
	// step 3).
	VersionSignal string
}

// Chunk is produced from a Document (§3). id = document_id + "#" + chunk_index.
// ContentHash (§3's invariant, "recomputed on load") is internal/docid.ContentHash
// applied to Content — callers compute it directly rather than through a
// method, since hashing is a pure function with no Document-specific state.
type Chunk struct {
	ID          string
	DocumentID  string
	ChunkIndex  int
	ChunkTotal  int
	Content     string
	TokenCount  int
	Metadata    map[string]string
	SectionPath []string
}

// VectorRecord is the unit stored in QDrant (§3).
type VectorRecord struct {
	PointID   string
	Vector    []float32
	ProjectID string
	Chunk     Chunk
	// SourceType/SourceName/DocumentID/URL/ContentType mirror Document for
	// payload filtering (§4.9 search filter composition).
	SourceType  SourceType
	SourceName  string
	DocumentID  string
	URL         string
	Title       string
	ContentType string
}
