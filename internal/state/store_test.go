package state

import (
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	key := Key{ProjectID: "p", SourceType: "localfile", SourceName: "A", DocumentID: "doc1"}
	rec := StateRecord{
		ProjectID: key.ProjectID, SourceType: key.SourceType, SourceName: key.SourceName, DocumentID: key.DocumentID,
		ContentHash: "h1", LastIngestedAt: time.Now(),
	}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected record to be present")
	}
	if got.ContentHash != "h1" {
		t.Fatalf("unexpected content hash %q", got.ContentHash)
	}
}

func TestUpsertOverwritesNotDuplicates(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	key := Key{ProjectID: "p", SourceType: "localfile", SourceName: "A", DocumentID: "doc1"}
	for _, hash := range []string{"h1", "h2"} {
		rec := StateRecord{ProjectID: key.ProjectID, SourceType: key.SourceType, SourceName: key.SourceName, DocumentID: key.DocumentID, ContentHash: hash, LastIngestedAt: time.Now()}
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	all, err := s.List(ctx, "p", "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(all))
	}
	if all[0].ContentHash != "h2" {
		t.Fatalf("expected overwritten hash h2, got %q", all[0].ContentHash)
	}
}

func TestUpsertPersistsVersionSignal(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	key := Key{ProjectID: "p", SourceType: "git", SourceName: "A", DocumentID: "doc1"}
	rec := StateRecord{
		ProjectID: key.ProjectID, SourceType: key.SourceType, SourceName: key.SourceName, DocumentID: key.DocumentID,
		ContentHash: "h1", VersionSignal: "abc123", LastIngestedAt: time.Now(),
	}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: err=%v ok=%v", err, ok)
	}
	if got.VersionSignal != "abc123" {
		t.Fatalf("expected version_signal to round-trip, got %q", got.VersionSignal)
	}
}

func TestGetAbsentReturnsFalse(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), Key{ProjectID: "p", SourceType: "git", SourceName: "B", DocumentID: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected absent record")
	}
}

func TestTombstone(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	key := Key{ProjectID: "p", SourceType: "localfile", SourceName: "A", DocumentID: "doc1"}
	rec := StateRecord{ProjectID: key.ProjectID, SourceType: key.SourceType, SourceName: key.SourceName, DocumentID: key.DocumentID, ContentHash: "h1", LastIngestedAt: time.Now()}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Tombstone(ctx, key); err != nil {
		t.Fatalf("tombstone: %v", err)
	}

	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected record still present after tombstone, err=%v ok=%v", err, ok)
	}
	if !got.IsDeleted {
		t.Fatal("expected is_deleted=true after tombstone")
	}
}

func TestListFiltersBySourceNameAndType(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	recs := []StateRecord{
		{ProjectID: "p", SourceType: "localfile", SourceName: "A", DocumentID: "d1", ContentHash: "h", LastIngestedAt: time.Now()},
		{ProjectID: "p", SourceType: "localfile", SourceName: "B", DocumentID: "d2", ContentHash: "h", LastIngestedAt: time.Now()},
		{ProjectID: "p", SourceType: "git", SourceName: "A", DocumentID: "d3", ContentHash: "h", LastIngestedAt: time.Now()},
	}
	for _, r := range recs {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, "p", "localfile", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DocumentID != "d1" {
		t.Fatalf("expected exactly d1, got %+v", got)
	}
}

func TestBeginAndFinishRun(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.BeginRun(ctx, "p")
	if err != nil {
		t.Fatalf("begin_run: %v", err)
	}
	counters := RunCounters{DocumentsSeen: 3, DocumentsNew: 3, ChunksWritten: 3, EmbeddingsMade: 3}
	if err := s.FinishRun(ctx, id, counters); err != nil {
		t.Fatalf("finish_run: %v", err)
	}
}

func TestOpenRejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, schemaVersion+1); err != nil {
		t.Fatal(err)
	}
	if err := s.migrate(); err == nil {
		t.Fatal("expected migrate to refuse a newer schema version")
	}
}
