// Package course defines the core data model shared across ingestion,
// storage, and retrieval: courses, their lessons, and the embeddable chunks
// derived from course documents. Course identity is derived from the title
// (titles are globally unique across the catalog), so re-ingesting a known
// document is always detectable by ID alone.
package course

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Course is one ingested course: a header plus its ordered lessons.
// Courses are created once per unique title during ingestion and never
// mutated afterwards.
type Course struct {
	// ID is the canonical identifier derived from Title via SlugID.
	ID string

	// Title is the course title exactly as it appears in the document header.
	Title string

	// Instructor is the course instructor name from the document header.
	Instructor string

	// Link is the optional course URL. Empty when the header carried no value.
	Link string

	// Lessons is the ordered lesson list parsed from the document.
	Lessons []Lesson
}

// Lesson is a single lesson within a course. Lesson numbers are unique
// within their course but not globally.
type Lesson struct {
	// Number is the lesson number from the `Lesson <n>:` marker.
	Number int

	// Title is the lesson title.
	Title string

	// Link is the optional lesson URL.
	Link string
}

// Chunk is a bounded span of course text prepared for embedding and
// retrieval. Chunks are immutable once stored.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// CourseID identifies the owning course.
	CourseID string

	// LessonNumber is the owning lesson's number, or nil for chunks drawn
	// from the course preamble (text before the first lesson marker).
	LessonNumber *int

	// Index is the chunk's position within the course. Indexes start at 0
	// and increase contiguously across the whole course — they never reset
	// per lesson.
	Index int
}

// SlugID derives the canonical course ID from a title: lowercased, with
// runs of non-alphanumeric characters collapsed to single hyphens.
func SlugID(title string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// PointID returns the deterministic UUID used as the qdrant point ID for a
// course's catalog entry. Derived from the course ID so that re-upserting
// the same course always targets the same point.
func PointID(courseID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("course:"+courseID)).String()
}

// ChunkPointID returns the deterministic UUID used as the qdrant point ID
// for one content chunk.
func ChunkPointID(courseID string, index int) string {
	key := fmt.Sprintf("chunk:%s#%d", courseID, index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// LessonLink returns the link for the given lesson number, or empty string
// when the lesson does not exist or carries no link.
func (c *Course) LessonLink(number int) string {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l.Link
		}
	}
	return ""
}
