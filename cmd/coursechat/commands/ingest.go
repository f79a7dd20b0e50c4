package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/coursechat/coursechat-go/internal/docparse"
	"github.com/coursechat/coursechat-go/internal/embedder"
	"github.com/coursechat/coursechat-go/internal/ingestion"
	"github.com/coursechat/coursechat-go/internal/logging"
	"github.com/coursechat/coursechat-go/internal/metrics"
)

// NewIngestCmd constructs the `coursechat ingest` command, which parses a
// folder of course transcripts and populates the vector store.
func NewIngestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest course documents into the vector store",
		Long: `Parse and index course transcript files into the Qdrant vector store.

Each .txt file in the folder is expected to start with three header lines
(Course Title, Course Link, Course Instructor) followed by "Lesson N:" marked
sections. Courses already present in the catalog are skipped, so re-running
against a growing folder is safe.

Required environment variables:
  QDRANT_HOST                 Qdrant server hostname (default: localhost)
  QDRANT_PORT                 Qdrant gRPC port (default: 6334)
  QDRANT_CATALOG_COLLECTION   Course metadata collection (default: course_catalog)
  QDRANT_CONTENT_COLLECTION   Content chunk collection (default: course_content)
  QDRANT_API_KEY              Optional API key for authenticated clusters
  MODEL_PROVIDER              Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*                 Provider-specific overrides (see README)

Chunking is tuned with CHUNK_SIZE (default: 800) and CHUNK_OVERLAP
(default: 100).

Examples:
  coursechat ingest --dir ./docs
  CHUNK_SIZE=1200 coursechat ingest --dir ./docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				return fmt.Errorf("ingest: --dir is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			store, err := buildStore(ctx)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(store, &ingestion.Config{
				ChunkSize:    getEnvInt("CHUNK_SIZE", docparse.DefaultChunkSize),
				ChunkOverlap: getEnvInt("CHUNK_OVERLAP", docparse.DefaultChunkOverlap),
				Metrics:      metrics.New(prometheus.NewRegistry()),
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			stats, err := pipeline.IngestFolder(ctx, dir)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			fmt.Printf("Ingested %d courses (%d chunks); skipped %d existing, %d malformed.\n",
				stats.CoursesAdded, stats.ChunksAdded, stats.SkippedExisting, stats.SkippedMalformed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Folder of course transcript files to ingest")

	return cmd
}
