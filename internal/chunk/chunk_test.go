package chunk

import (
	"strings"
	"testing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
)

func TestChunkEmptyContentYieldsNoChunks(t *testing.T) {
	doc := model.Document{ID: "d1", Content: "   "}
	got := Chunk(doc, Config{})
	if len(got) != 0 {
		t.Fatalf("expected zero chunks for empty content, got %d", len(got))
	}
}

func TestChunkFallbackIndicesAndIDs(t *testing.T) {
	words := strings.Repeat("word ", 300)
	doc := model.Document{ID: "doc-1", ContentType: "text/plain", Content: words}
	chunks := Chunk(doc, Config{ChunkSize: 50, ChunkOverlap: 5, MaxChunkBytes: 4096})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if c.DocumentID != doc.ID {
			t.Fatalf("chunk %d has document_id %q, want %q", i, c.DocumentID, doc.ID)
		}
		if c.ID != "doc-1#"+itoaForTest(i) {
			t.Fatalf("unexpected chunk id %q", c.ID)
		}
		if len(c.Content) > 4096 {
			t.Fatalf("chunk %d exceeds max_chunk_bytes: %d", i, len(c.Content))
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	doc := model.Document{ID: "doc-1", ContentType: "text/plain", Content: strings.Repeat("alpha beta gamma ", 100)}
	cfg := Config{ChunkSize: 20, ChunkOverlap: 3, MaxChunkBytes: 512}
	a := Chunk(doc, cfg)
	b := Chunk(doc, cfg)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Content != b[i].Content {
			t.Fatalf("non-deterministic content at chunk %d", i)
		}
	}
}

func TestChunkStructuredPreservesSectionPath(t *testing.T) {
	content := "# Title\n\nIntro text.\n\n## Sub\n\nSub body text that is reasonably long so it forms its own chunk.\n"
	doc := model.Document{ID: "doc-2", ContentType: "text/markdown", Content: content}
	chunks := Chunk(doc, Config{ChunkSize: 100, ChunkOverlap: 10, MaxChunkBytes: 4096})
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	var sawSub bool
	for _, c := range chunks {
		if len(c.SectionPath) > 0 && c.SectionPath[len(c.SectionPath)-1] == "Sub" {
			sawSub = true
		}
	}
	if !sawSub {
		t.Fatal("expected a chunk with section_path ending in \"Sub\"")
	}
}

func TestChunkStructuredNeverSplitsFence(t *testing.T) {
	content := "# Title\n\n```\nfenced code line 1\nfenced code line 2\n```\n"
	doc := model.Document{ID: "doc-3", ContentType: "text/markdown", Content: content}
	chunks := Chunk(doc, Config{ChunkSize: 5, ChunkOverlap: 1, MaxChunkBytes: 4096})
	joined := ""
	for _, c := range chunks {
		joined += c.Content + "\n"
	}
	if !strings.Contains(joined, "fenced code line 1") || !strings.Contains(joined, "fenced code line 2") {
		t.Fatalf("fence contents missing from chunks: %q", joined)
	}
}

// TestChunkFallbackPreservesWhitespace guards against the Fields/Join
// round-trip bug: a chunk's content must be a verbatim substring of the
// original text, not whitespace-normalized.
func TestChunkFallbackPreservesWhitespace(t *testing.T) {
	content := "alpha\nbeta  gamma\tdelta epsilon zeta\n\neta theta"
	doc := model.Document{ID: "doc-4", ContentType: "text/plain", Content: content}
	chunks := Chunk(doc, Config{ChunkSize: 2, ChunkOverlap: 0, MaxChunkBytes: 4096})
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for _, c := range chunks {
		if !strings.Contains(content, c.Content) {
			t.Fatalf("chunk content %q is not a verbatim substring of %q", c.Content, content)
		}
	}
	if strings.Contains(chunks[0].Content, "alpha beta") {
		t.Fatalf("expected original newline between alpha/beta to survive, got %q", chunks[0].Content)
	}
}

func itoaForTest(i int) string {
	if i == 0 {
		return "0"
	}
	s := ""
	for i > 0 {
		s = string(rune('0'+i%10)) + s
		i /= 10
	}
	return s
}
