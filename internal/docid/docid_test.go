package docid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDocumentIDStable(t *testing.T) {
	a := DocumentID("GIT", "repo-a", "https://example.com/a%20b")
	b := DocumentID("git", "repo-a", "https://example.com/a b")
	if a != b {
		t.Fatalf("expected stable id across case/escaping, got %q != %q", a, b)
	}
}

func TestDocumentIDDiffersBySourceName(t *testing.T) {
	a := DocumentID("git", "repo-a", "https://example.com/x")
	b := DocumentID("git", "repo-b", "https://example.com/x")
	if a == b {
		t.Fatalf("expected different ids for different source names")
	}
}

func TestDocumentIDSymlinkStable(t *testing.T) {
	dir := t.TempDir()
	realFile := filepath.Join(dir, "real.md")
	if err := os.WriteFile(realFile, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.md")
	if err := os.Symlink(realFile, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	directID := DocumentID("localfile", "A", LocalFileURL(realFile))
	viaLinkID := DocumentID("localfile", "A", LocalFileURL(link))
	if directID != viaLinkID {
		t.Fatalf("expected identical ids through symlink, got %q != %q", directID, viaLinkID)
	}
}

func TestContentHashDeterministic(t *testing.T) {
	h1 := ContentHash("# Hello\nworld")
	h2 := ContentHash("# Hello\nworld")
	if h1 != h2 {
		t.Fatalf("expected deterministic hash")
	}
	h3 := ContentHash("# Hello\nWorld")
	if h1 == h3 {
		t.Fatalf("expected different hash for different content")
	}
}

func TestCanonicalizeURLTrailingSlash(t *testing.T) {
	a := DocumentID("confluence", "space", "https://wiki.example.com/pages/1/")
	b := DocumentID("confluence", "space", "https://wiki.example.com/pages/1")
	if a == b {
		t.Fatalf("expected trailing slash to be preserved as a distinguishing signal")
	}
}
