package search

import (
	"context"
	"strings"
	"testing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
)

type fakeManager struct {
	hits []rag.SearchHit
}

func (m *fakeManager) InitCollection(ctx context.Context, name string, vectorSize uint64, force bool) error {
	return nil
}

func (m *fakeManager) Upsert(ctx context.Context, collection string, records []model.VectorRecord, batchSize int) error {
	return nil
}

func (m *fakeManager) Search(ctx context.Context, collection string, queryVector []float32, limit int, filter rag.SearchFilter) ([]rag.SearchHit, error) {
	out := m.hits
	if filter.DocumentID != "" {
		out = nil
		for _, h := range m.hits {
			if h.DocumentID == filter.DocumentID {
				out = append(out, h)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *fakeManager) DeleteByDocument(ctx context.Context, collection, documentID, projectID string) error {
	return nil
}

// AncestorTitles scans m.hits directly — the fake's full stored set, not
// just whatever a given test's Search call returns — mirroring the real
// Manager's independent scroll over the stored set.
func (m *fakeManager) AncestorTitles(ctx context.Context, collection string, filter rag.SearchFilter) (map[string]bool, error) {
	titles := map[string]bool{}
	for _, h := range m.hits {
		for _, anc := range strings.Split(h.Metadata["hierarchy_ancestors"], "|") {
			if anc != "" {
				titles[anc] = true
			}
		}
	}
	return titles, nil
}

func (m *fakeManager) Close() error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (fakeEmbedder) CountTokens(text string) int { return len(text) / 4 }
func (fakeEmbedder) VectorSize() int             { return 3 }

func TestSearchRanksByScoreThenUpdatedAtThenID(t *testing.T) {
	t.Parallel()
	mgr := &fakeManager{hits: []rag.SearchHit{
		{Score: 0.5, DocumentID: "b", Metadata: map[string]string{"updated_at": "2024-01-01"}},
		{Score: 0.9, DocumentID: "a", Metadata: map[string]string{"updated_at": "2024-01-01"}},
		{Score: 0.5, DocumentID: "c", Metadata: map[string]string{"updated_at": "2025-01-01"}},
	}}
	svc := New(mgr, fakeEmbedder{}, "docs", []string{"p1"})

	results, err := svc.Search(context.Background(), "hello", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].DocumentID != "a" || results[1].DocumentID != "c" || results[2].DocumentID != "b" {
		t.Fatalf("unexpected rank order: %+v", results)
	}
}
