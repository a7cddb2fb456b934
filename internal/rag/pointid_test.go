package rag

import "testing"

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("proj-a", "doc1#0")
	b := PointID("proj-a", "doc1#0")
	if a != b {
		t.Fatalf("expected deterministic point id, got %q != %q", a, b)
	}
}

func TestPointIDDiffersAcrossProjects(t *testing.T) {
	a := PointID("proj-a", "doc1#0")
	b := PointID("proj-b", "doc1#0")
	if a == b {
		t.Fatalf("expected different point ids across projects sharing a chunk id")
	}
}

func TestPointIDDiffersAcrossChunks(t *testing.T) {
	a := PointID("proj-a", "doc1#0")
	b := PointID("proj-a", "doc1#1")
	if a == b {
		t.Fatalf("expected different point ids across chunk indices")
	}
}
