package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_QDRANT_URL", "http://localhost:6334")
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	doc := "global:\n  qdrant:\n    url: \"${TEST_QDRANT_URL}\"\n    collection_name: docs\nprojects: {}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, loaded, err := Load(path, testLogger())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded != path {
		t.Fatalf("expected loaded path %q, got %q", path, loaded)
	}
	if cfg.Global.Qdrant.URL != "http://localhost:6334" {
		t.Fatalf("expected expanded URL, got %q", cfg.Global.Qdrant.URL)
	}
}

func TestLoadUnresolvedVarIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	doc := "global:\n  qdrant:\n    url: \"${DEFINITELY_NOT_SET_XYZ}\"\nprojects: {}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Load(path, testLogger()); err == nil {
		t.Fatal("expected error for unresolved ${VAR} reference")
	}
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	cfg, loaded, err := Load("", testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != "" {
		t.Fatalf("expected no file loaded, got %q", loaded)
	}
	if cfg == nil {
		t.Fatal("expected non-nil empty config")
	}
}

func TestEnvOverlayWinsOverYAML(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://env-wins:6334")
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	doc := "global:\n  qdrant:\n    url: http://from-yaml:6334\nprojects: {}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Global.Qdrant.URL != "http://env-wins:6334" {
		t.Fatalf("expected env var to win, got %q", cfg.Global.Qdrant.URL)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path, testLogger()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadParsesProjects(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	doc := `
global:
  qdrant:
    url: http://localhost:6334
    collection_name: docs
projects:
  proj-a:
    display_name: "Project A"
    sources:
      localfile:
        A:
          path: /tmp/docs
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	proj, ok := cfg.Projects["proj-a"]
	if !ok {
		t.Fatal("expected project proj-a")
	}
	if proj.DisplayName != "Project A" {
		t.Fatalf("unexpected display name %q", proj.DisplayName)
	}
	if _, ok := proj.Sources["localfile"]["A"]; !ok {
		t.Fatal("expected localfile source A")
	}
}
