// Package ingestion implements the course document ingestion pipeline.
// It walks a folder of course transcript files, parses each into course
// metadata and content chunks, and upserts the results into the dual
// vector-store collections. Already-known courses are skipped so the
// pipeline can be re-run against a growing folder without duplicating
// catalog entries or content. This pipeline is invoked by the
// `coursechat ingest` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coursechat/coursechat-go/internal/docparse"
	"github.com/coursechat/coursechat-go/internal/logging"
	"github.com/coursechat/coursechat-go/internal/metrics"
	"github.com/coursechat/coursechat-go/internal/vectorstore"
)

// Stats summarises one pipeline run.
type Stats struct {
	// CoursesAdded is the number of new courses written to the catalog.
	CoursesAdded int

	// ChunksAdded is the number of content chunks written for those courses.
	ChunksAdded int

	// SkippedExisting is the number of documents whose course was already
	// in the catalog.
	SkippedExisting int

	// SkippedMalformed is the number of documents rejected by the parser.
	SkippedMalformed int
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per content chunk.
	// Defaults to docparse.DefaultChunkSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters carried over between
	// consecutive chunks. Defaults to docparse.DefaultChunkOverlap if
	// negative or zero-valued via the zero Config.
	ChunkOverlap int

	// Metrics is the optional instrument set. If nil, counting is skipped.
	Metrics *metrics.Metrics
}

// Pipeline orchestrates the walk → parse → upsert flow for a course folder.
type Pipeline struct {
	// store persists course metadata and content chunks.
	store vectorstore.Store

	// extractor parses raw documents into a course and its chunks.
	extractor *docparse.Extractor

	// metrics is the optional instrument set.
	metrics *metrics.Metrics
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(store vectorstore.Store, cfg *Config) (*Pipeline, error) {
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	size := cfg.ChunkSize
	if size <= 0 {
		size = docparse.DefaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap <= 0 {
		overlap = docparse.DefaultChunkOverlap
	}

	return &Pipeline{
		store:     store,
		extractor: docparse.New(size, overlap),
		metrics:   cfg.Metrics,
	}, nil
}

// IngestFolder processes every course document directly under dir, in
// a deterministic filename order. A malformed document is logged and
// skipped, never fatal: one bad transcript must not block the rest of the
// folder. Store and embedding failures are fatal because continuing would
// leave the collections in an unpredictable partial state.
func (p *Pipeline) IngestFolder(ctx context.Context, dir string) (*Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading folder %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isCourseDocument(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	log := logging.FromContext(ctx)
	stats := &Stats{}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := p.ingestFile(ctx, path, stats); err != nil {
			return stats, err
		}
	}

	log.Info("ingestion complete",
		slog.Int("courses_added", stats.CoursesAdded),
		slog.Int("chunks_added", stats.ChunksAdded),
		slog.Int("skipped_existing", stats.SkippedExisting),
		slog.Int("skipped_malformed", stats.SkippedMalformed),
	)
	return stats, nil
}

// ingestFile parses and stores one course document, updating stats in place.
func (p *Pipeline) ingestFile(ctx context.Context, path string, stats *Stats) error {
	log := logging.FromContext(ctx)

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ingestion: reading %s: %w", path, err)
	}

	crs, chunks, err := p.extractor.Extract(string(raw))
	if err != nil {
		var formatErr *docparse.FormatError
		if errors.As(err, &formatErr) {
			log.Warn("skipping malformed course document",
				slog.String("file", path),
				slog.String("reason", formatErr.Reason),
			)
			stats.SkippedMalformed++
			p.countSkip(metrics.SkipFormatError)
			return nil
		}
		return fmt.Errorf("ingestion: parsing %s: %w", path, err)
	}

	added, err := p.store.UpsertCourse(ctx, crs)
	if err != nil {
		return fmt.Errorf("ingestion: storing course %q from %s: %w", crs.Title, path, err)
	}
	if !added {
		log.Info("course already ingested",
			slog.String("file", path),
			slog.String("course", crs.Title),
		)
		stats.SkippedExisting++
		p.countSkip(metrics.SkipAlreadyIngested)
		return nil
	}

	if err := p.store.AddChunks(ctx, chunks); err != nil {
		return fmt.Errorf("ingestion: storing chunks for %q from %s: %w", crs.Title, path, err)
	}

	log.Info("ingested course",
		slog.String("file", path),
		slog.String("course", crs.Title),
		slog.Int("lessons", len(crs.Lessons)),
		slog.Int("chunks", len(chunks)),
	)
	stats.CoursesAdded++
	stats.ChunksAdded += len(chunks)
	if p.metrics != nil {
		p.metrics.CoursesIngestedTotal.Inc()
		p.metrics.ChunksIngestedTotal.Add(float64(len(chunks)))
	}
	return nil
}

// countSkip increments the skipped-documents counter when metrics are wired.
func (p *Pipeline) countSkip(reason string) {
	if p.metrics != nil {
		p.metrics.DocumentsSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// isCourseDocument reports whether a filename looks like a course
// transcript. Hidden files and non-text formats are ignored.
func isCourseDocument(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.ToLower(filepath.Ext(name)) == ".txt"
}
