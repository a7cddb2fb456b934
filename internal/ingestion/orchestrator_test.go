package ingestion

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
	"github.com/qdrant-loader/qdrant-loader-go/internal/source"
	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// fakeAdapter emits a fixed slice of Documents and closes with a fixed
// error (nil for success).
type fakeAdapter struct {
	docs []model.Document
	err  error
}

func (a *fakeAdapter) Enumerate(ctx context.Context, pc source.ProjectContext) (<-chan model.Document, <-chan error) {
	docCh := make(chan model.Document)
	errCh := make(chan error, 1)
	go func() {
		defer close(docCh)
		for _, d := range a.docs {
			select {
			case docCh <- d:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		errCh <- a.err
		close(errCh)
	}()
	return docCh, errCh
}

// fakeStore is an in-memory state.Store good enough to exercise classify,
// orphan sweep, and state-write ordering without a real database.
type fakeStore struct {
	mu      sync.Mutex
	records map[state.Key]state.StateRecord
	runs    []state.RunCounters
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[state.Key]state.StateRecord{}} }

func keyOf(r state.StateRecord) state.Key {
	return state.Key{ProjectID: r.ProjectID, SourceType: r.SourceType, SourceName: r.SourceName, DocumentID: r.DocumentID}
}

func (s *fakeStore) Upsert(ctx context.Context, rec state.StateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[keyOf(rec)] = rec
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key state.Key) (state.StateRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok, nil
}

func (s *fakeStore) List(ctx context.Context, projectID, sourceType, sourceName string) ([]state.StateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []state.StateRecord
	for _, r := range s.records {
		if r.ProjectID == projectID && r.SourceType == sourceType && r.SourceName == sourceName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) Tombstone(ctx context.Context, key state.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[key]
	r.IsDeleted = true
	s.records[key] = r
	return nil
}

func (s *fakeStore) BeginRun(ctx context.Context, projectID string) (int64, error) { return 1, nil }

func (s *fakeStore) FinishRun(ctx context.Context, runID int64, counters state.RunCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, counters)
	return nil
}

func (s *fakeStore) Close() error { return nil }

// fakeManager is an in-memory rag.Manager recording every Upsert/Delete call.
type fakeManager struct {
	mu       sync.Mutex
	upserted []model.VectorRecord
	deleted  []string
}

func (m *fakeManager) InitCollection(ctx context.Context, name string, vectorSize uint64, force bool) error {
	return nil
}

func (m *fakeManager) Upsert(ctx context.Context, collection string, records []model.VectorRecord, batchSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *fakeManager) Search(ctx context.Context, collection string, queryVector []float32, limit int, filter rag.SearchFilter) ([]rag.SearchHit, error) {
	return nil, nil
}

func (m *fakeManager) DeleteByDocument(ctx context.Context, collection, documentID, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, documentID)
	return nil
}

func (m *fakeManager) AncestorTitles(ctx context.Context, collection string, filter rag.SearchFilter) (map[string]bool, error) {
	return nil, nil
}

func (m *fakeManager) Close() error { return nil }

// fakeEmbedder returns one fixed-length vector per input text.
type fakeEmbedder struct{ calls int }

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (e *fakeEmbedder) CountTokens(text string) int { return len(text) / 4 }
func (e *fakeEmbedder) VectorSize() int             { return 3 }

func testOrchestrator(store state.Store, manager rag.Manager, embedder rag.Embedder) *Orchestrator {
	return New(store, manager, embedder, nil, Config{Collection: "test", DrainDeadline: time.Second}, nil)
}

func TestRunIngestsNewDocuments(t *testing.T) {
	store := newFakeStore()
	manager := &fakeManager{}
	embedder := &fakeEmbedder{}
	o := testOrchestrator(store, manager, embedder)

	// Git dispatch reads content straight off disk via local_path metadata,
	// so this exercises the fetch stage without a real HTTP server.
	dir := t.TempDir()
	path := dir + "/doc.md"
	if err := os.WriteFile(path, []byte("# Hello\nworld"), 0o644); err != nil {
		t.Fatal(err)
	}
	adapter := &fakeAdapter{docs: []model.Document{
		{
			ID: "d1", Title: "doc.md", SourceType: model.SourceGit, SourceName: "A",
			URL: "https://example.com/blob/main/doc.md", VersionSignal: "sha1",
			Metadata: map[string]string{"local_path": path},
		},
	}}

	sources := []SourceInstance{{Kind: "git", Name: "A", Adapter: adapter}}
	counters, err := o.Run(context.Background(), "proj", sources)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counters.DocumentsNew != 1 {
		t.Fatalf("expected 1 new document, got %+v", counters)
	}
	if counters.DocumentsSeen != 1 {
		t.Fatalf("expected documents_seen=1, got %d", counters.DocumentsSeen)
	}
	if len(manager.upserted) == 0 {
		t.Fatal("expected at least one vector record upserted")
	}

	rec, ok, err := store.Get(context.Background(), state.Key{ProjectID: "proj", SourceType: "git", SourceName: "A", DocumentID: "d1"})
	if err != nil || !ok {
		t.Fatalf("expected state record to be written, err=%v ok=%v", err, ok)
	}
	if rec.VersionSignal != "sha1" {
		t.Fatalf("expected version_signal sha1, got %q", rec.VersionSignal)
	}
}

func TestRunSkipsUnchangedByCheapSignal(t *testing.T) {
	store := newFakeStore()
	staleIngest := time.Now().Add(-24 * time.Hour)
	key := state.Key{ProjectID: "proj", SourceType: "git", SourceName: "A", DocumentID: "d1"}
	_ = store.Upsert(context.Background(), state.StateRecord{
		ProjectID: key.ProjectID, SourceType: key.SourceType, SourceName: key.SourceName, DocumentID: key.DocumentID,
		ContentHash: "irrelevant", VersionSignal: "sha1", LastIngestedAt: staleIngest,
	})
	manager := &fakeManager{}
	embedder := &fakeEmbedder{}
	o := testOrchestrator(store, manager, embedder)

	adapter := &fakeAdapter{docs: []model.Document{
		{ID: "d1", Title: "doc.md", SourceType: model.SourceGit, SourceName: "A", URL: "x", VersionSignal: "sha1"},
	}}
	sources := []SourceInstance{{Kind: "git", Name: "A", Adapter: adapter}}

	counters, err := o.Run(context.Background(), "proj", sources)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if counters.DocumentsUnchanged != 1 {
		t.Fatalf("expected 1 unchanged document, got %+v", counters)
	}
	if len(manager.upserted) != 0 {
		t.Fatalf("expected no vectors upserted for an unchanged document, got %d", len(manager.upserted))
	}

	rec, ok, err := store.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected state record to still exist, err=%v ok=%v", err, ok)
	}
	if !rec.LastIngestedAt.After(staleIngest) {
		t.Fatalf("expected last_ingested_at to be refreshed past %v, got %v", staleIngest, rec.LastIngestedAt)
	}
}

func TestRunOrphanSweepDeletesMissingDocuments(t *testing.T) {
	store := newFakeStore()
	_ = store.Upsert(context.Background(), state.StateRecord{
		ProjectID: "proj", SourceType: "git", SourceName: "A", DocumentID: "gone",
		ContentHash: "h", VersionSignal: "v0", LastIngestedAt: time.Now(),
	})
	manager := &fakeManager{}
	embedder := &fakeEmbedder{}
	o := testOrchestrator(store, manager, embedder)

	adapter := &fakeAdapter{docs: nil} // discovery sees nothing this run
	sources := []SourceInstance{{Kind: "git", Name: "A", Adapter: adapter}}

	if _, err := o.Run(context.Background(), "proj", sources); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(manager.deleted) != 1 || manager.deleted[0] != "gone" {
		t.Fatalf("expected orphan document 'gone' to be deleted, got %v", manager.deleted)
	}
	rec, ok, err := store.Get(context.Background(), state.Key{ProjectID: "proj", SourceType: "git", SourceName: "A", DocumentID: "gone"})
	if err != nil || !ok || !rec.IsDeleted {
		t.Fatalf("expected orphan record tombstoned, rec=%+v ok=%v err=%v", rec, ok, err)
	}
}

func TestRunSkipsOrphanSweepOnDiscoveryError(t *testing.T) {
	store := newFakeStore()
	_ = store.Upsert(context.Background(), state.StateRecord{
		ProjectID: "proj", SourceType: "git", SourceName: "A", DocumentID: "gone",
		ContentHash: "h", VersionSignal: "v0", LastIngestedAt: time.Now(),
	})
	manager := &fakeManager{}
	embedder := &fakeEmbedder{}
	o := testOrchestrator(store, manager, embedder)

	adapter := &fakeAdapter{docs: nil, err: fmt.Errorf("boom")}
	sources := []SourceInstance{{Kind: "git", Name: "A", Adapter: adapter}}

	counters, err := o.Run(context.Background(), "proj", sources)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(manager.deleted) != 0 {
		t.Fatalf("expected orphan sweep to be skipped after a discovery error, got deletes %v", manager.deleted)
	}
	if counters.SourcesFailed != 1 {
		t.Fatalf("expected sources_failed=1, got %d", counters.SourcesFailed)
	}
}
