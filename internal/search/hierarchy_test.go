package search

import (
	"context"
	"testing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
)

// TestHierarchySearchHasChildrenUsesStoredSetNotCandidateWindow guards
// against computing has_children only from the limit*3 candidates already
// fetched: a page whose only child ranks outside that window must still be
// reported as having children, since AncestorTitles scans the full stored
// set independently of the ranked candidates.
func TestHierarchySearchHasChildrenUsesStoredSetNotCandidateWindow(t *testing.T) {
	t.Parallel()

	hits := []rag.SearchHit{
		{Score: 0.9, DocumentID: "parent", SourceType: "confluence", Title: "Parent"},
	}
	// Fill the rest of the limit*3=3 candidate window with unrelated noise
	// so the child page never appears among the hits Search returns, while
	// still being present in the fake's full stored set scanned by
	// AncestorTitles.
	hits = append(hits,
		rag.SearchHit{Score: 0.8, DocumentID: "noise1", SourceType: "confluence", Title: "Noise"},
		rag.SearchHit{Score: 0.8, DocumentID: "noise2", SourceType: "confluence", Title: "Noise"},
	)
	hits = append(hits, rag.SearchHit{
		Score: 0.1, DocumentID: "child", SourceType: "confluence", Title: "Child",
		Metadata: map[string]string{"hierarchy_ancestors": "Parent"},
	})

	mgr := &fakeManager{hits: hits}
	svc := New(mgr, fakeEmbedder{}, "docs", []string{"proj"})

	results, err := svc.HierarchySearch(context.Background(), "query", 1, false, HierarchyFilter{HasChildren: true})
	if err != nil {
		t.Fatalf("HierarchySearch: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Parent" {
		t.Fatalf("expected Parent to survive has_children filtering, got %+v", results)
	}
}
