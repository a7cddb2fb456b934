package ingestion

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qdrant-loader/qdrant-loader-go/internal/chunk"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// pendingBatch accumulates whole documents (never splitting one document's
// chunks across two batches) up to roughly embed_batch total chunks before
// being handed to a worker (§4.8's "accumulate chunks across Documents up
// to embed_batch total").
type pendingBatch struct {
	docs       []convertedDoc
	docChunks  [][]model.Chunk
	totalChunk int
}

// runEmbedUpsertPool drains convCh, chunking each converted Document and
// grouping results into pendingBatches, then fans the batches out to
// cfg.EmbedConcurrency workers that embed, upsert, and write back
// StateRecords (§4.8's embed/upsert pool).
func (o *Orchestrator) runEmbedUpsertPool(ctx context.Context, convCh <-chan convertedDoc, counters *counterSet) error {
	batchCh := make(chan pendingBatch, o.cfg.QueueCapacity)

	go func() {
		defer close(batchCh)
		var current pendingBatch
		for cd := range convCh {
			chunks := chunk.Chunk(cd.doc, o.cfg.Chunk)
			if current.totalChunk > 0 && current.totalChunk+len(chunks) > o.cfg.EmbedBatch {
				batchCh <- current
				current = pendingBatch{}
			}
			current.docs = append(current.docs, cd)
			current.docChunks = append(current.docChunks, chunks)
			current.totalChunk += len(chunks)
		}
		if len(current.docs) > 0 {
			batchCh <- current
		}
	}()

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.EmbedConcurrency)
	for batch := range batchCh {
		batch := batch
		group.Go(func() error {
			o.processBatch(gctx, batch, counters)
			return nil
		})
	}
	return group.Wait()
}

// processBatch embeds every chunk in batch with a single Embed call, writes
// them to QDrant with a single Upsert call, and only then writes the
// StateRecord for each contributing document (§4.8: "write StateRecord
// updates after QDrant acknowledges"). A failure at either the embed or
// upsert step drops the whole batch for this run — no state record is
// written, so the next run retries it (§4.8's partial-failure policy).
func (o *Orchestrator) processBatch(ctx context.Context, batch pendingBatch, counters *counterSet) {
	// A batch already accepted from convCh is "in-flight" per §4.8's
	// cancellation contract: it gets up to drain_deadline to finish embedding
	// and upserting even after ctx is cancelled, rather than being abandoned
	// mid-write.
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.DrainDeadline)
	defer cancel()
	ctx = drainCtx

	var texts []string
	for _, chunks := range batch.docChunks {
		for _, c := range chunks {
			texts = append(texts, c.Content)
		}
	}

	if len(texts) == 0 {
		// Every document in this batch produced zero chunks (empty content);
		// still safe to record them as ingested.
		o.writeStateRecords(ctx, batch, counters)
		return
	}

	vectors, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		o.log.Warn("ingestion: embed failed, dropping batch", slog.Int("documents", len(batch.docs)), slog.String("error", err.Error()))
		counters.add(state.RunCounters{DocumentsFailed: len(batch.docs)})
		return
	}

	records := make([]model.VectorRecord, 0, len(texts))
	vi := 0
	for i, cd := range batch.docs {
		for _, c := range batch.docChunks[i] {
			records = append(records, model.VectorRecord{
				Vector:      vectors[vi],
				ProjectID:   cd.projectID,
				Chunk:       c,
				SourceType:  cd.doc.SourceType,
				SourceName:  cd.doc.SourceName,
				DocumentID:  cd.doc.ID,
				URL:         cd.doc.URL,
				Title:       cd.doc.Title,
				ContentType: cd.doc.ContentType,
			})
			vi++
		}
	}

	if err := o.manager.Upsert(ctx, o.cfg.Collection, records, o.cfg.UpsertBatchSize); err != nil {
		o.log.Warn("ingestion: upsert failed, dropping batch", slog.Int("documents", len(batch.docs)), slog.String("error", err.Error()))
		counters.add(state.RunCounters{DocumentsFailed: len(batch.docs)})
		return
	}

	o.writeStateRecords(ctx, batch, counters)
	counters.add(state.RunCounters{ChunksWritten: len(texts), EmbeddingsMade: len(texts)})
}

func (o *Orchestrator) writeStateRecords(ctx context.Context, batch pendingBatch, counters *counterSet) {
	now := time.Now()
	delta := state.RunCounters{}
	for _, cd := range batch.docs {
		rec := state.StateRecord{
			ProjectID:      cd.projectID,
			SourceType:     cd.inst.Kind,
			SourceName:     cd.inst.Name,
			DocumentID:     cd.doc.ID,
			ContentHash:    cd.contentHash,
			LastIngestedAt: now,
			ParentID:       cd.doc.Metadata["attachment_of"],
			VersionSignal:  cd.doc.VersionSignal,
		}
		if err := o.store.Upsert(ctx, rec); err != nil {
			o.log.Warn("ingestion: state upsert failed", slog.String("document_id", cd.doc.ID), slog.String("error", err.Error()))
			continue
		}
		if cd.classification == "new" {
			delta.DocumentsNew++
		} else {
			delta.DocumentsUpdated++
		}
	}
	counters.add(delta)
}
