// Package state provides the durable, embedded key-value store the
// orchestrator consults on every run: StateRecord rows keyed by
// (project_id, source_type, source_name, document_id), and an IngestionRun
// log for observability. A single SQLite file is the reference engine
// (§4.2), exactly as the teacher's conversation history store used
// modernc.org/sqlite — WAL mode, a single writer connection, and a
// migrate-on-open schema.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// schemaVersion is the current on-disk schema version. DefaultDBPath-backed
// databases refuse to open against a newer version than this binary knows
// about, per spec §6's versioning requirement.
const schemaVersion = 1

// StateRecord is the per-document durable row used to decide whether a
// document needs to be re-processed (§3, §4.2).
type StateRecord struct {
	ProjectID      string
	SourceType     string
	SourceName     string
	DocumentID     string
	ContentHash    string
	LastIngestedAt time.Time
	ParentID       string
	IsDeleted      bool

	// VersionSignal is the adapter-supplied cheap change indicator last
	// observed for this document (commit SHA, ETag, mtime+size, ...). The
	// Orchestrator compares it before fetching bytes (§4.8 step 3); it is
	// advisory only — ContentHash remains the authoritative comparison.
	VersionSignal string
}

// Key identifies a StateRecord.
type Key struct {
	ProjectID  string
	SourceType string
	SourceName string
	DocumentID string
}

// RunCounters holds the aggregate counters for one IngestionRun (§3).
type RunCounters struct {
	DocumentsSeen      int            `json:"documents_seen"`
	DocumentsNew       int            `json:"documents_new"`
	DocumentsUpdated   int            `json:"documents_updated"`
	DocumentsUnchanged int            `json:"documents_unchanged"`
	DocumentsFailed    int            `json:"documents_failed"`
	ChunksWritten      int            `json:"chunks_written"`
	EmbeddingsMade     int            `json:"embeddings_made"`
	SourcesFailed      int            `json:"sources_failed"`
	PerSource          map[string]int `json:"per_source,omitempty"`
}

// IngestionRun is the persisted record of one ingest invocation.
type IngestionRun struct {
	ID         int64
	ProjectID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Counters   RunCounters
}

// Store is the durable key-value interface the orchestrator depends on.
// Implementations must tolerate concurrent reads; writes are expected to
// come from a single writer (the orchestrator), per spec §4.2 and §5.
type Store interface {
	Upsert(ctx context.Context, rec StateRecord) error
	Get(ctx context.Context, key Key) (StateRecord, bool, error)
	List(ctx context.Context, projectID, sourceType, sourceName string) ([]StateRecord, error)
	Tombstone(ctx context.Context, key Key) error
	BeginRun(ctx context.Context, projectID string) (runID int64, err error)
	FinishRun(ctx context.Context, runID int64, counters RunCounters) error
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns ~/.qdrant-loader/state.db, creating the directory
// if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("state: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".qdrant-loader")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("state: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "state.db"), nil
}

// Open opens (or creates) a SQLiteStore at path and runs schema migration.
// Use ":memory:" for an in-memory database in tests. Per spec §4.2, a
// missing or unwritable parent directory is a Config-class failure, fast
// and fatal.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, fmt.Errorf("state: parent directory %s unavailable: %w", dir, err)
			}
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	// Single writer connection avoids SQLITE_BUSY under concurrent writes;
	// the orchestrator is the only writer per spec §5.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS state_records (
    project_id       TEXT    NOT NULL,
    source_type      TEXT    NOT NULL,
    source_name      TEXT    NOT NULL,
    document_id      TEXT    NOT NULL,
    content_hash     TEXT    NOT NULL,
    last_ingested_at INTEGER NOT NULL,
    parent_id        TEXT    NOT NULL DEFAULT '',
    is_deleted       INTEGER NOT NULL DEFAULT 0,
    version_signal   TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (project_id, source_type, source_name, document_id)
);
CREATE INDEX IF NOT EXISTS idx_state_records_project_source
    ON state_records (project_id, source_type, source_name);

CREATE TABLE IF NOT EXISTS ingestion_runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id  TEXT    NOT NULL,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    counters    TEXT
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("state: migrate: %w", err)
	}

	row := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`)
	var version int
	switch err := row.Scan(&version); {
	case err == sql.ErrNoRows:
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
			return fmt.Errorf("state: migrate: seed schema_version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("state: migrate: read schema_version: %w", err)
	case version > schemaVersion:
		return fmt.Errorf("state: database schema version %d is newer than this binary supports (%d); refusing to run", version, schemaVersion)
	}
	return nil
}

// Upsert creates or overwrites a StateRecord. Atomic: a single statement.
func (s *SQLiteStore) Upsert(ctx context.Context, rec StateRecord) error {
	const q = `
INSERT INTO state_records (project_id, source_type, source_name, document_id, content_hash, last_ingested_at, parent_id, is_deleted, version_signal)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_id, source_type, source_name, document_id) DO UPDATE SET
    content_hash     = excluded.content_hash,
    last_ingested_at = excluded.last_ingested_at,
    parent_id        = excluded.parent_id,
    is_deleted       = excluded.is_deleted,
    version_signal   = excluded.version_signal
`
	_, err := s.db.ExecContext(ctx, q,
		rec.ProjectID, rec.SourceType, rec.SourceName, rec.DocumentID,
		rec.ContentHash, rec.LastIngestedAt.Unix(), rec.ParentID, boolToInt(rec.IsDeleted), rec.VersionSignal,
	)
	if err != nil {
		return fmt.Errorf("state: upsert: %w", err)
	}
	return nil
}

// Get returns the StateRecord for key, or ok=false if absent.
func (s *SQLiteStore) Get(ctx context.Context, key Key) (StateRecord, bool, error) {
	const q = `
SELECT content_hash, last_ingested_at, parent_id, is_deleted, version_signal
FROM state_records
WHERE project_id = ? AND source_type = ? AND source_name = ? AND document_id = ?`

	row := s.db.QueryRowContext(ctx, q, key.ProjectID, key.SourceType, key.SourceName, key.DocumentID)

	var rec StateRecord
	var ts int64
	var isDeleted int
	switch err := row.Scan(&rec.ContentHash, &ts, &rec.ParentID, &isDeleted, &rec.VersionSignal); {
	case err == sql.ErrNoRows:
		return StateRecord{}, false, nil
	case err != nil:
		return StateRecord{}, false, fmt.Errorf("state: get: %w", err)
	}

	rec.ProjectID, rec.SourceType, rec.SourceName, rec.DocumentID = key.ProjectID, key.SourceType, key.SourceName, key.DocumentID
	rec.LastIngestedAt = time.Unix(ts, 0)
	rec.IsDeleted = isDeleted != 0
	return rec, true, nil
}

// List returns every StateRecord for projectID, optionally narrowed by
// sourceType and sourceName (empty string means "any"). Used by orphan
// sweep to snapshot known document IDs (§4.8 step 1).
func (s *SQLiteStore) List(ctx context.Context, projectID, sourceType, sourceName string) ([]StateRecord, error) {
	q := `SELECT source_type, source_name, document_id, content_hash, last_ingested_at, parent_id, is_deleted, version_signal
FROM state_records WHERE project_id = ?`
	args := []any{projectID}
	if sourceType != "" {
		q += " AND source_type = ?"
		args = append(args, sourceType)
	}
	if sourceName != "" {
		q += " AND source_name = ?"
		args = append(args, sourceName)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("state: list: %w", err)
	}
	defer rows.Close()

	var out []StateRecord
	for rows.Next() {
		var rec StateRecord
		var ts int64
		var isDeleted int
		if err := rows.Scan(&rec.SourceType, &rec.SourceName, &rec.DocumentID, &rec.ContentHash, &ts, &rec.ParentID, &isDeleted, &rec.VersionSignal); err != nil {
			return nil, fmt.Errorf("state: list scan: %w", err)
		}
		rec.ProjectID = projectID
		rec.LastIngestedAt = time.Unix(ts, 0)
		rec.IsDeleted = isDeleted != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: list rows: %w", err)
	}
	return out, nil
}

// Tombstone marks a StateRecord deleted and refreshes last_ingested_at.
func (s *SQLiteStore) Tombstone(ctx context.Context, key Key) error {
	const q = `
UPDATE state_records SET is_deleted = 1, last_ingested_at = ?
WHERE project_id = ? AND source_type = ? AND source_name = ? AND document_id = ?`
	_, err := s.db.ExecContext(ctx, q, time.Now().Unix(), key.ProjectID, key.SourceType, key.SourceName, key.DocumentID)
	if err != nil {
		return fmt.Errorf("state: tombstone: %w", err)
	}
	return nil
}

// BeginRun appends a new IngestionRun row and returns its id.
func (s *SQLiteStore) BeginRun(ctx context.Context, projectID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO ingestion_runs (project_id, started_at) VALUES (?, ?)`, projectID, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("state: begin_run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun records the final counters and finish time for runID.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, counters RunCounters) error {
	data, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("state: finish_run: marshal counters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE ingestion_runs SET finished_at = ?, counters = ? WHERE id = ?`, time.Now().Unix(), string(data), runID)
	if err != nil {
		return fmt.Errorf("state: finish_run: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("state: close: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive, satisfying the
// diagnostics package's Pinger interface for GET /readyz.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("state: ping: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
