// Package docparse turns one structured course document into a Course record
// and its ordered, embeddable chunks. Documents carry a three-line labeled
// header followed by lesson blocks introduced by `Lesson <n>: <title>`
// markers. Malformed documents fail with a *FormatError so the ingestion
// pipeline can skip them and continue with the rest of the batch.
package docparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coursechat/coursechat-go/internal/course"
)

// Default chunking parameters. The overlap budget is drawn at sentence
// granularity — a sentence is never split to fill it.
const (
	// DefaultChunkSize is the target chunk size in characters.
	DefaultChunkSize = 800
	// DefaultChunkOverlap is the character budget re-inserted from the tail
	// of the previous chunk at each chunk boundary.
	DefaultChunkOverlap = 100
)

// Header labels required at the top of every course document, in order.
const (
	titleLabel      = "Course Title:"
	linkLabel       = "Course Link:"
	instructorLabel = "Course Instructor:"
	lessonLinkLabel = "Lesson Link:"
)

// FormatError reports a malformed course document. The document is skipped
// by ingestion; the error is not fatal to the overall run.
type FormatError struct {
	// Reason describes what was missing or malformed.
	Reason string
}

func (e *FormatError) Error() string {
	return "docparse: malformed document: " + e.Reason
}

// lessonMarker matches `Lesson <number>: <title>` at the start of a line.
var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// sentenceEnd matches a run of sentence-terminating punctuation followed by
// whitespace or end of input.
var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// Extractor parses course documents and chunks their text for embedding.
// The zero value is not usable; construct with New.
type Extractor struct {
	// chunkSize is the target chunk size in characters.
	chunkSize int
	// chunkOverlap is the boundary overlap budget in characters.
	chunkOverlap int
}

// New constructs an Extractor. Non-positive size or negative overlap fall
// back to the defaults; an overlap at or above the chunk size is clamped to
// one tenth of the size, mirroring the ingestion defaults.
func New(chunkSize, chunkOverlap int) *Extractor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &Extractor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// section is one chunkable span of document text: the course preamble
// (lesson == nil) or a single lesson body.
type section struct {
	// lesson is the owning lesson number, nil for the preamble.
	lesson *int
	// body is the raw text of the section.
	body string
}

// Extract parses raw document text into a Course and its ordered chunk
// sequence. Chunk indexes start at 0 and increase contiguously across the
// whole course. Returns a *FormatError when the header is absent or
// malformed, or when lesson numbers collide within the document.
func (e *Extractor) Extract(raw string) (*course.Course, []course.Chunk, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	c, rest, err := parseHeader(lines)
	if err != nil {
		return nil, nil, err
	}

	sections, lessons, err := parseBody(rest)
	if err != nil {
		return nil, nil, err
	}
	c.Lessons = lessons

	var chunks []course.Chunk
	index := 0
	for _, sec := range sections {
		for _, text := range e.chunk(sec.body) {
			chunks = append(chunks, course.Chunk{
				Text:         text,
				CourseID:     c.ID,
				LessonNumber: sec.lesson,
				Index:        index,
			})
			index++
		}
	}

	return c, chunks, nil
}

// parseHeader consumes the three required labeled header lines and returns
// the partially populated Course plus the remaining lines.
func parseHeader(lines []string) (*course.Course, []string, error) {
	labels := []string{titleLabel, linkLabel, instructorLabel}
	values := make([]string, len(labels))

	i := 0
	for idx, label := range labels {
		// Skip blank lines between header fields.
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) || !strings.HasPrefix(lines[i], label) {
			return nil, nil, &FormatError{Reason: fmt.Sprintf("missing %q header line", label)}
		}
		values[idx] = strings.TrimSpace(strings.TrimPrefix(lines[i], label))
		i++
	}

	title := values[0]
	if title == "" {
		return nil, nil, &FormatError{Reason: "empty course title"}
	}
	instructor := values[2]
	if instructor == "" {
		return nil, nil, &FormatError{Reason: "empty course instructor"}
	}

	c := &course.Course{
		ID:         course.SlugID(title),
		Title:      title,
		Instructor: instructor,
		Link:       values[1],
	}
	return c, lines[i:], nil
}

// parseBody walks the post-header lines and splits them into the preamble
// section and one section per lesson block.
func parseBody(lines []string) ([]section, []course.Lesson, error) {
	var (
		sections []section
		lessons  []course.Lesson
		seen     = map[int]bool{}
		body     []string
		current  *int // nil while in the preamble
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if text == "" {
			return
		}
		sections = append(sections, section{lesson: current, body: text})
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		m := lessonMarker.FindStringSubmatch(line)
		if m == nil {
			body = append(body, line)
			continue
		}

		flush()

		number, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, nil, &FormatError{Reason: fmt.Sprintf("bad lesson number in %q", line)}
		}
		if seen[number] {
			return nil, nil, &FormatError{Reason: fmt.Sprintf("duplicate lesson number %d", number)}
		}
		seen[number] = true

		lesson := course.Lesson{Number: number, Title: strings.TrimSpace(m[2])}

		// An optional `Lesson Link:` line may directly follow the marker.
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], lessonLinkLabel) {
			lesson.Link = strings.TrimSpace(strings.TrimPrefix(lines[i+1], lessonLinkLabel))
			i++
		}

		lessons = append(lessons, lesson)
		n := number
		current = &n
	}
	flush()

	return sections, lessons, nil
}

// chunk splits a section body into chunks via sentence-aware greedy packing:
// sentences accumulate while the running length stays within the chunk size,
// and each new chunk re-inserts whole trailing sentences from its
// predecessor up to the overlap budget. A single sentence longer than the
// chunk size is emitted as its own chunk and contributes no overlap — the
// one permitted exception to the no-mid-sentence-cut rule.
func (e *Extractor) chunk(body string) []string {
	sentences := splitSentences(body)
	if len(sentences) == 0 {
		return nil
	}

	var (
		chunks []string
		cur    []string
		curLen int
	)

	emit := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
		}
	}

	for _, s := range sentences {
		if len(s) > e.chunkSize {
			emit()
			chunks = append(chunks, s)
			cur, curLen = nil, 0
			continue
		}

		need := len(s)
		if curLen > 0 {
			need++ // joining space
		}
		if curLen+need > e.chunkSize {
			emit()
			cur = e.overlapTail(cur, len(s))
			curLen = joinedLen(cur)
			if curLen > 0 {
				cur = append(cur, s)
				curLen += 1 + len(s)
			} else {
				cur = []string{s}
				curLen = len(s)
			}
			continue
		}

		cur = append(cur, s)
		curLen += need
	}
	emit()

	return chunks
}

// overlapTail selects whole sentences from the end of prev whose joined
// length fits the overlap budget and still leaves room for the next sentence
// within the chunk size. Sentences are returned in original order.
func (e *Extractor) overlapTail(prev []string, nextLen int) []string {
	room := e.chunkSize - nextLen - 1
	var tail []string
	total := 0
	for i := len(prev) - 1; i >= 0; i-- {
		need := len(prev[i])
		if total > 0 {
			need++
		}
		if total+need > e.chunkOverlap || total+need > room {
			break
		}
		tail = append([]string{prev[i]}, tail...)
		total += need
	}
	return tail
}

// splitSentences splits text on sentence-terminating punctuation, keeping
// the punctuation with its sentence. Trailing text with no terminator is
// returned as a final sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// joinedLen is the length of strings joined with single spaces.
func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += len(p)
	}
	return n
}
