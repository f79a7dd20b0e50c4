// Package metrics registers the Prometheus instruments shared by the query
// orchestrator and the ingestion pipeline. Exposition (a /metrics endpoint)
// belongs to the serving layer outside this core; this package only owns
// registration and counting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcome label values.
const (
	// OutcomeOK marks a query that produced a final answer.
	OutcomeOK = "ok"
	// OutcomeError marks a query that failed against the generation API.
	OutcomeError = "error"
)

// Skip reason label values for ingestion.
const (
	// SkipAlreadyIngested marks a document whose course title is already in
	// the catalog.
	SkipAlreadyIngested = "already_ingested"
	// SkipFormatError marks a document rejected by the parser.
	SkipFormatError = "format_error"
)

// Metrics holds all Prometheus instruments owned by the core.
type Metrics struct {
	// QueriesTotal counts completed user queries, partitioned by outcome.
	QueriesTotal *prometheus.CounterVec

	// ToolRoundsTotal counts tool-calling rounds across all queries.
	ToolRoundsTotal prometheus.Counter

	// ToolErrorsTotal counts tool executions converted to error observations.
	ToolErrorsTotal prometheus.Counter

	// CoursesIngestedTotal counts courses added to the catalog.
	CoursesIngestedTotal prometheus.Counter

	// ChunksIngestedTotal counts content chunks added to the store.
	ChunksIngestedTotal prometheus.Counter

	// DocumentsSkippedTotal counts documents skipped during ingestion,
	// partitioned by reason.
	DocumentsSkippedTotal *prometheus.CounterVec
}

// New registers all instruments against reg and returns them.
// promauto.With(reg) is used so tests can pass a fresh prometheus.Registry
// and stay hermetic.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursechat",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of user queries completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ToolRoundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coursechat",
			Subsystem: "query",
			Name:      "tool_rounds_total",
			Help:      "Total number of tool-calling rounds executed.",
		}),

		ToolErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coursechat",
			Subsystem: "query",
			Name:      "tool_errors_total",
			Help:      "Total number of tool executions converted to error observations.",
		}),

		CoursesIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coursechat",
			Subsystem: "ingest",
			Name:      "courses_total",
			Help:      "Total number of courses added to the catalog.",
		}),

		ChunksIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "coursechat",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of content chunks added to the store.",
		}),

		DocumentsSkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coursechat",
			Subsystem: "ingest",
			Name:      "documents_skipped_total",
			Help:      "Total number of documents skipped during ingestion, partitioned by reason.",
		}, []string{"reason"}),
	}
}
