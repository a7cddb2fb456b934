package commands

import (
	"bytes"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
)

func withTestConfig(c *config.Config, fn func()) {
	prev := cfg
	cfg = c
	defer func() { cfg = prev }()
	fn()
}

func TestProjectIDsFiltersToOne(t *testing.T) {
	withTestConfig(&config.Config{Projects: map[string]config.Project{
		"a": {}, "b": {},
	}}, func() {
		ids, err := projectIDs("a")
		if err != nil || len(ids) != 1 || ids[0] != "a" {
			t.Fatalf("unexpected result: %v, %v", ids, err)
		}
	})
}

func TestProjectIDsUnknownErrors(t *testing.T) {
	withTestConfig(&config.Config{Projects: map[string]config.Project{"a": {}}}, func() {
		if _, err := projectIDs("missing"); err == nil {
			t.Fatal("expected error for unknown project_id")
		}
	})
}

func TestProjectIDsAllSorted(t *testing.T) {
	withTestConfig(&config.Config{Projects: map[string]config.Project{"b": {}, "a": {}}}, func() {
		ids, err := projectIDs("")
		if err != nil || len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Fatalf("unexpected result: %v, %v", ids, err)
		}
	})
}

func TestRenderFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := cmdStdout
	cmdStdout = &buf
	defer func() { cmdStdout = prev }()

	type row struct {
		ID string `json:"id"`
	}
	if err := renderFormat("json", []row{{ID: "x"}}, nil); err != nil {
		t.Fatalf("renderFormat: %v", err)
	}
	if !strings.Contains(buf.String(), `"id": "x"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}
}

func TestRenderFormatTable(t *testing.T) {
	var buf bytes.Buffer
	prev := cmdStdout
	cmdStdout = &buf
	defer func() { cmdStdout = prev }()

	type row struct{ ID string }
	err := renderFormat("table", []row{{ID: "x"}}, func(w *tabwriter.Writer) {
		w.Write([]byte("ID\nx\n"))
	})
	if err != nil {
		t.Fatalf("renderFormat: %v", err)
	}
	if !strings.Contains(buf.String(), "x") {
		t.Fatalf("expected table output, got %q", buf.String())
	}
}
