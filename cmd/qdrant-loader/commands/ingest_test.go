package commands

import (
	"testing"

	"github.com/qdrant-loader/qdrant-loader-go/internal/config"
)

func TestOrDefault(t *testing.T) {
	if got := orDefault(0, 30); got != 30 {
		t.Fatalf("expected default 30, got %d", got)
	}
	if got := orDefault(-1, 30); got != 30 {
		t.Fatalf("expected default 30 for negative input, got %d", got)
	}
	if got := orDefault(5, 30); got != 5 {
		t.Fatalf("expected explicit value 5, got %d", got)
	}
}

func TestResolveSourcesFiltersByKindAndName(t *testing.T) {
	withTestConfig(&config.Config{Projects: map[string]config.Project{
		"docs": {
			Sources: map[string]config.Source{
				"localfile": {
					"one": {"path": "/tmp/a"},
					"two": {"path": "/tmp/b"},
				},
				"git": {
					"repo": {"url": "https://example.com/repo.git", "local_path": "/tmp/repo"},
				},
			},
		},
	}}, func() {
		all, err := resolveSources("docs", "", "")
		if err != nil || len(all) != 3 {
			t.Fatalf("expected 3 source instances, got %d, err=%v", len(all), err)
		}

		onlyLocal, err := resolveSources("docs", "localfile", "")
		if err != nil || len(onlyLocal) != 2 {
			t.Fatalf("expected 2 localfile instances, got %d, err=%v", len(onlyLocal), err)
		}

		onlyOne, err := resolveSources("docs", "localfile", "one")
		if err != nil || len(onlyOne) != 1 || onlyOne[0].Name != "one" {
			t.Fatalf("expected exactly source 'one', got %+v, err=%v", onlyOne, err)
		}
	})
}

func TestResolveSourcesUnknownProject(t *testing.T) {
	withTestConfig(&config.Config{Projects: map[string]config.Project{}}, func() {
		if _, err := resolveSources("missing", "", ""); err == nil {
			t.Fatal("expected error for unknown project")
		}
	})
}

func TestIngestionConfigMapsSecondsToDuration(t *testing.T) {
	withTestConfig(&config.Config{
		Global: config.Global{
			Ingestion: config.IngestionConfig{DrainDeadlineS: 45, FetchConcurrency: 3},
			Qdrant:    config.QdrantConfig{CollectionName: "mycol", BatchSize: 10},
		},
	}, func() {
		ic := ingestionConfig()
		if ic.DrainDeadline.Seconds() != 45 {
			t.Fatalf("expected 45s drain deadline, got %v", ic.DrainDeadline)
		}
		if ic.FetchConcurrency != 3 {
			t.Fatalf("expected fetch concurrency 3, got %d", ic.FetchConcurrency)
		}
		if ic.Collection != "mycol" {
			t.Fatalf("expected collection mycol, got %s", ic.Collection)
		}
		if ic.UpsertBatchSize != 10 {
			t.Fatalf("expected upsert batch size 10, got %d", ic.UpsertBatchSize)
		}
	})
}
