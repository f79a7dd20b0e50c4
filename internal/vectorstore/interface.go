// Package vectorstore persists course embeddings in two independent
// similarity collections: a catalog of course-level identity (used for fuzzy
// name resolution) and the chunked course content (used for answering
// queries). Both are cosine-similarity indexes; the embedding model identity
// is recorded alongside them so search stays reproducible across restarts.
package vectorstore

import (
	"context"

	"github.com/coursechat/coursechat-go/internal/course"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// CatalogMatch is one ranked hit from a catalog similarity query.
type CatalogMatch struct {
	// CourseID is the canonical course identifier.
	CourseID string
	// Title is the course title stored with the catalog entry.
	Title string
	// Score is the cosine similarity of the match.
	Score float32
}

// ContentMatch is one ranked hit from a content similarity query.
type ContentMatch struct {
	// Text is the chunk text.
	Text string
	// CourseID identifies the owning course.
	CourseID string
	// LessonNumber is the owning lesson, nil for preamble chunks.
	LessonNumber *int
	// Score is the cosine similarity of the match.
	Score float32
}

// ContentFilter optionally constrains a content query to an exact course
// and/or an exact lesson number. The zero value matches everything.
type ContentFilter struct {
	// CourseID, when non-empty, restricts matches to one course.
	CourseID string
	// LessonNumber, when non-nil, restricts matches to one lesson.
	LessonNumber *int
}

// Store is the dual-collection similarity store. Implementations must be
// safe for concurrent reads; writes happen only during the sequential
// ingestion phase.
type Store interface {
	// UpsertCourse stores a course's catalog entry. Idempotent by course ID:
	// a second call with the same ID is a no-op and reports added=false.
	UpsertCourse(ctx context.Context, c *course.Course) (added bool, err error)

	// HasCourse reports whether a catalog entry exists for the course ID.
	HasCourse(ctx context.Context, courseID string) (bool, error)

	// AddChunks appends content chunks. Existing chunk indexes for an
	// already-ingested course are never rewritten by this core.
	AddChunks(ctx context.Context, chunks []course.Chunk) error

	// QueryCatalog returns the k nearest catalog entries for the name text.
	// An empty catalog yields an empty slice, not an error.
	QueryCatalog(ctx context.Context, nameText string, k int) ([]CatalogMatch, error)

	// QueryContent returns the k nearest content chunks for the query text,
	// optionally constrained by filter. Unmatched filters yield an empty
	// slice, not an error.
	QueryContent(ctx context.Context, queryText string, k int, filter *ContentFilter) ([]ContentMatch, error)

	// GetCourse returns the full stored course record (title, instructor,
	// link, lessons) for exact-key lookups, or nil when absent.
	GetCourse(ctx context.Context, courseID string) (*course.Course, error)

	// CourseCount returns the number of catalog entries.
	CourseCount(ctx context.Context) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}
