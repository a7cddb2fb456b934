package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/qdrant-loader/qdrant-loader-go/internal/convert"
	"github.com/qdrant-loader/qdrant-loader-go/internal/docid"
	"github.com/qdrant-loader/qdrant-loader-go/internal/model"
	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// convertedDoc is a fully-fetched, converted Document ready for chunking,
// tagged with the classification that routed it here and the SourceInstance
// it belongs to so the embed/upsert pool can write back a StateRecord.
type convertedDoc struct {
	projectID      string
	inst           SourceInstance
	doc            model.Document
	contentHash    string
	classification string // "new" | "updated"
}

// classifyAndFetch implements §4.8 step 3: classify item against its prior
// StateRecord using the cheap version signal, and for anything not
// provably unchanged, fetch bytes, convert, and recompute the authoritative
// content hash — downgrading to Unchanged if that hash still matches the
// stored one. Terminal failures are counted, never fatal to the run.
func (o *Orchestrator) classifyAndFetch(ctx context.Context, item diffItem, convCh chan<- convertedDoc, counters *counterSet) {
	if item.doc.IsDeleted {
		o.handleInlineDelete(ctx, item)
		return
	}

	if item.hadPrior && item.prior.VersionSignal != "" && item.doc.VersionSignal != "" && item.prior.VersionSignal == item.doc.VersionSignal {
		// Content provably unchanged by the cheap signal alone — skip fetch
		// and conversion entirely, but still refresh last_ingested_at and the
		// stored version signal (§4.8 S2).
		o.refreshUnchanged(ctx, item, item.prior.ContentHash)
		counters.add(state.RunCounters{DocumentsUnchanged: 1})
		return
	}

	raw, err := o.fetchBytes(ctx, item.doc)
	if err != nil {
		o.log.Warn("ingestion: fetch failed", slog.String("document_id", item.doc.ID), slog.String("url", item.doc.URL), slog.String("error", err.Error()))
		counters.add(state.RunCounters{DocumentsFailed: 1})
		return
	}

	text, meta, failure := convert.Convert(ctx, raw, item.doc.ContentType, o.cfg.MaxFileSize, o.cfg.ConversionTimeout)
	if failure != nil {
		text = synthesizeFailureContent(item.doc, failure)
		meta = map[string]string{"content_type": "text/plain", "conversion_failure": string(failure.Class)}
	}

	hash := docid.ContentHash(text)
	if item.hadPrior && hash == item.prior.ContentHash {
		// Cheap signal changed but content didn't (§4.8 step 3's "downgrade
		// to Unchanged before embedding"). Still refresh the stored version
		// signal so the next run's cheap check is accurate.
		o.refreshUnchanged(ctx, item, hash)
		counters.add(state.RunCounters{DocumentsUnchanged: 1})
		return
	}

	doc := item.doc
	doc.Content = text
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}
	for k, v := range meta {
		doc.Metadata[k] = v
	}

	classification := "new"
	if item.hadPrior {
		classification = "updated"
	}

	select {
	case convCh <- convertedDoc{projectID: item.projectID, inst: item.inst, doc: doc, contentHash: hash, classification: classification}:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) refreshUnchanged(ctx context.Context, item diffItem, hash string) {
	rec := item.prior
	rec.ContentHash = hash
	rec.VersionSignal = item.doc.VersionSignal
	rec.LastIngestedAt = time.Now()
	if err := o.store.Upsert(ctx, rec); err != nil {
		o.log.Warn("ingestion: refresh unchanged record failed", slog.String("document_id", item.doc.ID), slog.String("error", err.Error()))
	}
}

// handleInlineDelete tombstones and removes vectors for a document an
// adapter has marked deleted directly, bypassing orphan sweep entirely
// (§4.8 step 4's parenthetical).
func (o *Orchestrator) handleInlineDelete(ctx context.Context, item diffItem) {
	projectID := item.prior.ProjectID
	if !item.hadPrior {
		return // never ingested, nothing to remove
	}
	if err := o.manager.DeleteByDocument(ctx, o.cfg.Collection, item.doc.ID, projectID); err != nil {
		o.log.Warn("ingestion: inline delete failed", slog.String("document_id", item.doc.ID), slog.String("error", err.Error()))
		return
	}
	key := state.Key{ProjectID: projectID, SourceType: item.inst.Kind, SourceName: item.inst.Name, DocumentID: item.doc.ID}
	if err := o.store.Tombstone(ctx, key); err != nil {
		o.log.Warn("ingestion: inline delete tombstone failed", slog.String("document_id", item.doc.ID), slog.String("error", err.Error()))
	}
}
