// metrics.go registers the Prometheus metrics exposed by the diagnostics
// server's GET /metrics endpoint. Grounded on the teacher's
// internal/server/metrics.go (promauto.With(reg) against an injectable
// registry so tests stay hermetic), relabeled from chat/HTTP metrics to
// ingestion-run metrics.
package diagnostics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/qdrant-loader/qdrant-loader-go/internal/state"
)

// serverMetrics holds all Prometheus metrics owned by the diagnostics
// server. A single instance is created in New and stored on Server so tests
// can inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// ingestRunsTotal counts completed ingestion runs, partitioned by
	// outcome: "ok" or "error".
	ingestRunsTotal *prometheus.CounterVec

	// ingestDocumentsTotal counts documents processed across all runs,
	// partitioned by classification (new, updated, unchanged, failed).
	ingestDocumentsTotal *prometheus.CounterVec

	// ingestRunDurationSeconds records the wall-clock duration of each
	// project's ingestion run.
	ingestRunDurationSeconds prometheus.Histogram

	// httpRequestsTotal counts all HTTP requests handled by the diagnostics
	// mux, partitioned by path and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of diagnostics HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qdrant_loader",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestDocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qdrant_loader",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of documents processed across all runs, partitioned by classification.",
		}, []string{"classification"}),

		ingestRunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qdrant_loader",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a project's ingestion run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qdrant_loader",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the diagnostics server.",
		}, []string{"path", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qdrant_loader",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the diagnostics server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
}

// ObserveRun records one finished ingestion run's outcome, per-classification
// document counts, and duration. Called by the ingest CLI command after
// ingestion.Orchestrator.Run returns.
func (m *serverMetrics) ObserveRun(counters state.RunCounters, durationSeconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ingestRunsTotal.WithLabelValues(outcome).Inc()
	m.ingestRunDurationSeconds.Observe(durationSeconds)
	m.ingestDocumentsTotal.WithLabelValues("new").Add(float64(counters.DocumentsNew))
	m.ingestDocumentsTotal.WithLabelValues("updated").Add(float64(counters.DocumentsUpdated))
	m.ingestDocumentsTotal.WithLabelValues("unchanged").Add(float64(counters.DocumentsUnchanged))
	m.ingestDocumentsTotal.WithLabelValues("failed").Add(float64(counters.DocumentsFailed))
}
