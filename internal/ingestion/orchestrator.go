// Package ingestion implements the Ingestion Orchestrator (§4.8): the
// bounded, multi-stage pipeline that turns a project's configured Source
// Adapters into QDrant points. Three stage pools — discovery, fetch/convert,
// embed/upsert — connected by bounded channels, exactly as the teacher's
// Pipeline.Ingest ran a fetch-then-chunk-then-embed sequence per source, but
// generalized here to run those stages concurrently and across many
// sources at once, with change detection and orphan sweep the teacher's
// single-URL-per-source model never needed.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qdrant-loader/qdrant-loader-go/internal/chunk"
	"github.com/qdrant-loader/qdrant-loader-go/internal/convert"
	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
	"github.com/qdrant-loader/qdrant-loader-go/internal/rag"
	"github.com/qdrant-loader/qdrant-loader-go/internal/source"
	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// Config tunes the Orchestrator's stage pools and the components it drives
// for every document (§4.8, §4.5, §4.6, §4.9). Zero values are replaced by
// the documented defaults in withDefaults.
type Config struct {
	FetchConcurrency  int
	EmbedConcurrency  int
	EmbedBatch        int
	QueueCapacity     int
	DrainDeadline     time.Duration
	Chunk             chunk.Config
	MaxFileSize       int64
	ConversionTimeout time.Duration
	Collection        string
	UpsertBatchSize   int
}

func (c Config) withDefaults() Config {
	if c.FetchConcurrency <= 0 {
		c.FetchConcurrency = 8
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	if c.EmbedBatch <= 0 {
		c.EmbedBatch = 64
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 32
	}
	if c.DrainDeadline <= 0 {
		c.DrainDeadline = 30 * time.Second
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 20 * 1024 * 1024
	}
	if c.ConversionTimeout <= 0 {
		c.ConversionTimeout = 30 * time.Second
	}
	if c.UpsertBatchSize <= 0 {
		c.UpsertBatchSize = 64
	}
	return c
}

// SourceInstance is one configured `sources.<kind>.<name>` entry, already
// resolved to a concrete Adapter by internal/source.New.
type SourceInstance struct {
	Kind    string
	Name    string
	Adapter source.Adapter
}

// Orchestrator runs one ingestion per invocation of Run, coordinating the
// Source Adapters, Converter, Chunker, Embedder, and QDrant Manager for one
// project.
type Orchestrator struct {
	store    state.Store
	manager  rag.Manager
	embedder rag.Embedder
	hc       *httpclient.Client
	cfg      Config
	log      *slog.Logger
}

// New constructs an Orchestrator. hc is used for the fetch stage's HTTP-based
// adapters (publicdocs, confluence, jira); localfile and git read from disk
// directly.
func New(store state.Store, manager rag.Manager, embedder rag.Embedder, hc *httpclient.Client, cfg Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{store: store, manager: manager, embedder: embedder, hc: hc, cfg: cfg.withDefaults(), log: log}
}

// diffItem is one discovered document header paired with its prior
// StateRecord, ready for classification by the fetch/convert pool.
type diffItem struct {
	projectID string
	inst      SourceInstance
	doc       model.Document
	prior     state.StateRecord
	hadPrior  bool
}

// Run executes one ingestion for projectID over sources (§4.8's algorithm).
// It always returns the counters accumulated before ctx was cancelled or the
// drain deadline elapsed, alongside any fatal error (discovery failures for
// a source are recorded per-source and do not abort the whole run — see
// runSource).
func (o *Orchestrator) Run(ctx context.Context, projectID string, sources []SourceInstance) (state.RunCounters, error) {
	runID, err := o.store.BeginRun(ctx, projectID)
	if err != nil {
		return state.RunCounters{}, fmt.Errorf("ingestion: begin_run: %w", err)
	}

	counters := &counterSet{PerSource: map[string]int{}}
	diffCh := make(chan diffItem, o.cfg.QueueCapacity)
	convCh := make(chan convertedDoc, o.cfg.QueueCapacity)

	// Plain WaitGroup, not errgroup: one source's discovery failure must
	// never cancel its siblings (§4.8 step 4's per-source orphan-sweep
	// skip is the only consequence of a discovery error).
	var discWG sync.WaitGroup
	for _, inst := range sources {
		inst := inst
		discWG.Add(1)
		go func() {
			defer discWG.Done()
			if err := o.runSource(ctx, projectID, inst, diffCh, counters); err != nil {
				o.log.Warn("ingestion: source discovery failed", slog.String("source_type", inst.Kind), slog.String("source_name", inst.Name), slog.String("error", err.Error()))
			}
		}()
	}
	go func() {
		discWG.Wait()
		close(diffCh)
	}()

	go func() {
		fetchGroup, fetchCtx := errgroup.WithContext(ctx)
		fetchGroup.SetLimit(o.cfg.FetchConcurrency)
		for item := range diffCh {
			item := item
			fetchGroup.Go(func() error {
				o.classifyAndFetch(fetchCtx, item, convCh, counters)
				return nil
			})
		}
		_ = fetchGroup.Wait()
		close(convCh)
	}()

	if err := o.runEmbedUpsertPool(ctx, convCh, counters); err != nil {
		o.log.Warn("ingestion: embed/upsert pool ended early", slog.String("error", err.Error()))
	}

	final := counters.snapshot()
	if err := o.store.FinishRun(ctx, runID, final); err != nil {
		return final, fmt.Errorf("ingestion: finish_run: %w", err)
	}
	return final, nil
}

// runSource snapshots known document ids for (projectID, inst.Kind,
// inst.Name), runs discovery, classifies headers into the diff queue, and
// sweeps orphans once discovery completes cleanly (§4.8 steps 1, 2, 4).
func (o *Orchestrator) runSource(ctx context.Context, projectID string, inst SourceInstance, diffCh chan<- diffItem, counters *counterSet) error {
	priorRecords, err := o.store.List(ctx, projectID, inst.Kind, inst.Name)
	if err != nil {
		return fmt.Errorf("ingestion: list known records for %s/%s: %w", inst.Kind, inst.Name, err)
	}
	known := make(map[string]state.StateRecord, len(priorRecords))
	for _, r := range priorRecords {
		known[r.DocumentID] = r
	}

	docCh, errCh := inst.Adapter.Enumerate(ctx, source.ProjectContext{ProjectID: projectID, SourceName: inst.Name})
	seen := make(map[string]bool, len(known))

	for doc := range docCh {
		seen[doc.ID] = true
		counters.incSeen(inst.Name)

		prior, hadPrior := known[doc.ID]
		select {
		case diffCh <- diffItem{projectID: projectID, inst: inst, doc: doc, prior: prior, hadPrior: hadPrior}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := <-errCh; err != nil {
		o.log.Warn("ingestion: discovery failed, skipping orphan sweep for this source",
			slog.String("source_type", inst.Kind), slog.String("source_name", inst.Name), slog.String("error", err.Error()))
		counters.incSourceFailed()
		return fmt.Errorf("ingestion: discover %s/%s: %w", inst.Kind, inst.Name, err)
	}

	return o.sweepOrphans(ctx, projectID, inst, known, seen)
}

// sweepOrphans tombstones and deletes every StateRecord that was known
// before this run but not re-observed by discovery (§4.8 step 4). Only
// called when discovery for inst ended without error.
func (o *Orchestrator) sweepOrphans(ctx context.Context, projectID string, inst SourceInstance, known map[string]state.StateRecord, seen map[string]bool) error {
	for docID := range known {
		if seen[docID] {
			continue
		}
		if err := o.manager.DeleteByDocument(ctx, o.cfg.Collection, docID, projectID); err != nil {
			o.log.Warn("ingestion: orphan delete_by_document failed", slog.String("document_id", docID), slog.String("error", err.Error()))
			continue
		}
		key := state.Key{ProjectID: projectID, SourceType: inst.Kind, SourceName: inst.Name, DocumentID: docID}
		if err := o.store.Tombstone(ctx, key); err != nil {
			o.log.Warn("ingestion: orphan tombstone failed", slog.String("document_id", docID), slog.String("error", err.Error()))
		}
	}
	return nil
}

// counterSet accumulates RunCounters safely across the concurrent discovery
// and fetch/convert pools.
type counterSet struct {
	mu sync.Mutex
	state.RunCounters
}

func (c *counterSet) incSeen(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DocumentsSeen++
	c.PerSource[source]++
}

func (c *counterSet) incSourceFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SourcesFailed++
}

func (c *counterSet) add(delta state.RunCounters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DocumentsNew += delta.DocumentsNew
	c.DocumentsUpdated += delta.DocumentsUpdated
	c.DocumentsUnchanged += delta.DocumentsUnchanged
	c.DocumentsFailed += delta.DocumentsFailed
	c.ChunksWritten += delta.ChunksWritten
	c.EmbeddingsMade += delta.EmbeddingsMade
}

func (c *counterSet) snapshot() state.RunCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	perSource := make(map[string]int, len(c.PerSource))
	for k, v := range c.PerSource {
		perSource[k] = v
	}
	out := c.RunCounters
	out.PerSource = perSource
	return out
}

// fetchBytes retrieves the raw bytes for doc, dispatching on SourceType:
// localfile and git read straight off disk (their URL/metadata already
// names a local path — no second Adapter method needed, per §4.7's
// single-operation framing), every other source kind does a plain HTTP GET
// through the shared rate-limited, retrying client (§4.3).
func (o *Orchestrator) fetchBytes(ctx context.Context, doc model.Document) ([]byte, error) {
	switch doc.SourceType {
	case model.SourceLocalFile:
		path := strings.TrimPrefix(doc.URL, "file://")
		return os.ReadFile(path)

	case model.SourceGit:
		path := doc.Metadata["local_path"]
		if path == "" {
			return nil, fmt.Errorf("ingestion: git document %s missing local_path metadata", doc.ID)
		}
		return os.ReadFile(path)

	default:
		resp, err := o.hc.Do(ctx, http.MethodGet, doc.URL, http.Header{}, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		return convert.ReadAllBounded(resp.Body, o.cfg.MaxFileSize)
	}
}

// synthesizeFailureContent builds the fallback body §4.5 requires when
// conversion cannot produce usable text, so the document's existence, name,
// and parent remain searchable even though its real content was dropped.
func synthesizeFailureContent(doc model.Document, failure *convert.ConversionFailed) string {
	return fmt.Sprintf("[content unavailable: %s] %s (%s)", failure.Class, doc.Title, doc.URL)
}

