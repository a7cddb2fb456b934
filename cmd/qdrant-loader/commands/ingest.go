package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/qdrant-loader/qdrant-loader-go/internal/chunk"
	"github.com/qdrant-loader/qdrant-loader-go/internal/diagnostics"
	"github.com/qdrant-loader/qdrant-loader-go/internal/httpclient"
	"github.com/qdrant-loader/qdrant-loader-go/internal/ingestion"
	"github.com/qdrant-loader/qdrant-loader-go/internal/lifecycle"
	"github.com/qdrant-loader/qdrant-loader-go/internal/logging"
	"github.com/qdrant-loader/qdrant-loader-go/internal/source"
	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// NewIngestCmd constructs the `qdrant-loader ingest` command (§6): runs the
// Orchestrator for one or more configured projects/sources and prints a
// final summary.
func NewIngestCmd() *cobra.Command {
	var projectID, sourceType, sourceName, diagAddr string
	var profile bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest configured sources into the Qdrant vector store",
		Long: `Run the ingestion pipeline over every configured project (or a single
--project), across every configured source (or a single --source-type/
--source), tracking per-document state so repeat runs only process what
changed.

Exits 0 even when some documents fail, unless zero documents succeeded and
at least one source errored entirely, in which case it exits 5.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := cmd.Context()

			ids, err := projectIDs(projectID)
			if err != nil {
				return withExitCode(2, fmt.Errorf("ingest: %w", err))
			}

			store, err := openStore()
			if err != nil {
				return withExitCode(2, fmt.Errorf("ingest: %w", err))
			}
			defer store.Close()

			manager, err := openManager()
			if err != nil {
				return withExitCode(3, fmt.Errorf("ingest: %w", err))
			}
			defer manager.Close()

			if err := manager.InitCollection(ctx, collectionName(), vectorSize(), false); err != nil {
				return withExitCode(3, fmt.Errorf("ingest: %w", err))
			}

			emb, err := openEmbedder(log)
			if err != nil {
				return withExitCode(2, fmt.Errorf("ingest: %w", err))
			}

			hc := httpclient.NewClient(httpclient.Config{
				Timeout: time.Duration(orDefault(cfg.Global.Qdrant.TimeoutS, 30)) * time.Second,
				Logger:  log,
			})

			lc := lifecycle.New(ingestDrainDeadline(), log)
			runCtx, shutdown := lc.Run(ctx)
			defer shutdown()

			var diag *diagnostics.Server
			if diagAddr != "" {
				host, port := diagnostics.ParseAddr(diagAddr)
				diag = diagnostics.New(&diagnostics.Config{
					Host: host, Port: port, Logger: log,
					Pingers: []diagnostics.Pinger{
						diagnostics.NewQdrantPinger(manager),
						diagnostics.NewStorePinger(store),
						diagnostics.NewEmbedderPinger(emb, cfg.Global.LLM.Provider),
					},
				})
				go func() {
					if err := diag.Start(runCtx); err != nil {
						log.Error("ingest: diagnostics server error", slog.String("error", err.Error()))
					}
				}()
			}

			orch := ingestion.New(store, manager, emb, hc, ingestionConfig(), log)

			var anySucceeded, anySourceErrored bool

			for _, id := range ids {
				sources, err := resolveSources(id, sourceType, sourceName)
				if err != nil {
					return withExitCode(2, fmt.Errorf("ingest: %w", err))
				}
				if profile {
					log.Info("ingest: profile", slog.String("project_id", id), slog.Int("sources", len(sources)))
				}

				started := time.Now()
				counters, err := orch.Run(runCtx, id, sources)
				if diag != nil {
					diag.Metrics().ObserveRun(counters, time.Since(started).Seconds(), err)
				}
				if err != nil {
					log.Error("ingest: run failed", slog.String("project_id", id), slog.String("error", err.Error()))
					return withExitCode(5, fmt.Errorf("ingest: project %s: %w", id, err))
				}

				printSummary(id, counters)

				if counters.DocumentsNew+counters.DocumentsUpdated+counters.DocumentsUnchanged > 0 {
					anySucceeded = true
				}
				if counters.SourcesFailed > 0 {
					anySourceErrored = true
				}
			}

			if !anySucceeded && anySourceErrored {
				return withExitCode(5, fmt.Errorf("ingest: zero documents succeeded and at least one source errored"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Restrict to a single project_id")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "Restrict to a single source kind (git, confluence, jira, publicdocs, localfile)")
	cmd.Flags().StringVar(&sourceName, "source", "", "Restrict to a single named source instance")
	cmd.Flags().BoolVar(&profile, "profile", false, "Log per-project source counts before running")
	cmd.Flags().StringVar(&diagAddr, "diagnostics-addr", "", "If set, serve /healthz, /readyz, /metrics on this host:port while ingesting")

	return cmd
}

// resolveSources builds the ingestion.SourceInstance list for projectID,
// optionally narrowed by --source-type/--source.
func resolveSources(projectID, onlyKind, onlyName string) ([]ingestion.SourceInstance, error) {
	project, ok := cfg.Projects[projectID]
	if !ok {
		return nil, fmt.Errorf("unknown project_id %q", projectID)
	}

	var out []ingestion.SourceInstance
	for kind, instances := range project.Sources {
		if onlyKind != "" && kind != onlyKind {
			continue
		}
		for name, settings := range instances {
			if onlyName != "" && name != onlyName {
				continue
			}
			adapter, err := source.New(kind, settings)
			if err != nil {
				return nil, fmt.Errorf("project %s: source %s/%s: %w", projectID, kind, name, err)
			}
			out = append(out, ingestion.SourceInstance{Kind: kind, Name: name, Adapter: adapter})
		}
	}
	return out, nil
}

// ingestionConfig maps the YAML ingestion tuning knobs onto
// ingestion.Config, converting the documented *_s fields to time.Duration.
func ingestionConfig() ingestion.Config {
	ic := cfg.Global.Ingestion
	return ingestion.Config{
		FetchConcurrency:  ic.FetchConcurrency,
		EmbedConcurrency:  ic.EmbedConcurrency,
		EmbedBatch:        ic.EmbedBatch,
		QueueCapacity:     ic.QueueCapacity,
		DrainDeadline:     time.Duration(ic.DrainDeadlineS) * time.Second,
		MaxFileSize:       cfg.Global.FileConversion.MaxFileSize,
		ConversionTimeout: time.Duration(cfg.Global.FileConversion.ConversionTimeoutS) * time.Second,
		Collection:        collectionName(),
		UpsertBatchSize:   cfg.Global.Qdrant.BatchSize,
		Chunk: chunk.Config{
			ChunkSize:     cfg.Global.Chunking.ChunkSize,
			ChunkOverlap:  cfg.Global.Chunking.ChunkOverlap,
			MaxChunkBytes: cfg.Global.Chunking.MaxChunkBytes,
		},
	}
}

func ingestDrainDeadline() time.Duration {
	if cfg.Global.Ingestion.DrainDeadlineS > 0 {
		return time.Duration(cfg.Global.Ingestion.DrainDeadlineS) * time.Second
	}
	return 30 * time.Second
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// printSummary prints the CLI's mandatory per-run summary (§7): documents
// seen/new/updated/unchanged/failed, chunks written, sources with fatal
// errors.
func printSummary(projectID string, c state.RunCounters) {
	fmt.Printf("project %s: seen=%d new=%d updated=%d unchanged=%d failed=%d chunks_written=%d embeddings_made=%d sources_failed=%d\n",
		projectID, c.DocumentsSeen, c.DocumentsNew, c.DocumentsUpdated, c.DocumentsUnchanged, c.DocumentsFailed,
		c.ChunksWritten, c.EmbeddingsMade, c.SourcesFailed)
}
