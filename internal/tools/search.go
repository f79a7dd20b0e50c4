package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/coursechat/coursechat-go/internal/course"
	"github.com/coursechat/coursechat-go/internal/resolver"
	"github.com/coursechat/coursechat-go/internal/vectorstore"
)

// SearchToolName is the capability name bound to the chat model.
const SearchToolName = "search_course_content"

// defaultMaxResults caps the number of chunks returned per search.
const defaultMaxResults = 5

// CourseNameResolver resolves a free-text course name to a course ID.
type CourseNameResolver interface {
	Resolve(ctx context.Context, nameText string) (string, error)
}

// ContentSearcher is the slice of the vector store the search tool needs.
type ContentSearcher interface {
	QueryContent(ctx context.Context, queryText string, k int, filter *vectorstore.ContentFilter) ([]vectorstore.ContentMatch, error)
	GetCourse(ctx context.Context, courseID string) (*course.Course, error)
}

// SearchTool performs filtered semantic search over ingested course content
// and renders the results with citation metadata. Retrieval-level misses are
// reported as sentinel observation text, never as errors, so the model can
// react in natural language.
type SearchTool struct {
	// store performs the content query and exact-key course lookups.
	store ContentSearcher
	// resolver maps course_name arguments to canonical course IDs.
	resolver CourseNameResolver
	// maxResults caps the result count per search.
	maxResults int
	// lastSources holds the citations recorded by the most recent
	// invocation, taken and cleared via TakeSources.
	lastSources []Source
}

// searchInput is the JSON-serialisable input schema for SearchTool.
type searchInput struct {
	// Query is what to search for in the course content.
	Query string `json:"query"`

	// CourseName optionally scopes the search to one course (fuzzy-matched).
	CourseName string `json:"course_name,omitempty"`

	// LessonNumber optionally scopes the search to one lesson.
	LessonNumber *int `json:"lesson_number,omitempty"`
}

// NewSearchTool constructs a SearchTool. maxResults <= 0 selects the default.
func NewSearchTool(store ContentSearcher, res CourseNameResolver, maxResults int) (*SearchTool, error) {
	if store == nil {
		return nil, fmt.Errorf("tools: store must not be nil")
	}
	if res == nil {
		return nil, fmt.Errorf("tools: resolver must not be nil")
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &SearchTool{store: store, resolver: res, maxResults: maxResults}, nil
}

// Name returns the tool name registered with the model.
func (t *SearchTool) Name() string { return SearchToolName }

// Description returns the LLM-facing description of this tool.
func (t *SearchTool) Description() string {
	return "Search course materials with smart course name matching and lesson filtering. " +
		"Use for questions about specific course content or detailed educational materials."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *SearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to search for in the course content.",
				Required: true,
			},
			"course_name": {
				Type: schema.String,
				Desc: "Course title to scope the search to (partial matches work, e.g. 'MCP' or 'Introduction').",
			},
			"lesson_number": {
				Type: schema.Integer,
				Desc: "Specific lesson number to scope the search to (e.g. 1, 2, 3).",
			},
		}),
	}, nil
}

// InvokableRun executes the search given a JSON-encoded input string.
func (t *SearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	t.lastSources = nil

	var input searchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("%s: invalid input: %w", SearchToolName, err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("%s: query is required", SearchToolName)
	}

	filter := &vectorstore.ContentFilter{LessonNumber: input.LessonNumber}
	if input.CourseName != "" {
		courseID, err := t.resolver.Resolve(ctx, input.CourseName)
		var notFound *resolver.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Sprintf("No course found matching '%s'", input.CourseName), nil
		}
		if err != nil {
			return "", fmt.Errorf("%s: course resolution failed: %w", SearchToolName, err)
		}
		filter.CourseID = courseID
	}

	matches, err := t.store.QueryContent(ctx, input.Query, t.maxResults, filter)
	if err != nil {
		return "", fmt.Errorf("%s: search failed: %w", SearchToolName, err)
	}
	if len(matches) == 0 {
		return emptyResultText(input.CourseName, input.LessonNumber), nil
	}

	return t.render(ctx, matches)
}

// emptyResultText builds the no-results sentinel, appending a description of
// any active filters.
func emptyResultText(courseName string, lessonNumber *int) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *lessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// render formats matches as labeled blocks and records one source entry per
// match for citation. Lesson links fall back to the course link.
func (t *SearchTool) render(ctx context.Context, matches []vectorstore.ContentMatch) (string, error) {
	courses := map[string]*course.Course{}
	blocks := make([]string, 0, len(matches))

	for _, m := range matches {
		c, ok := courses[m.CourseID]
		if !ok {
			var err error
			c, err = t.store.GetCourse(ctx, m.CourseID)
			if err != nil {
				return "", fmt.Errorf("%s: course lookup failed: %w", SearchToolName, err)
			}
			courses[m.CourseID] = c
		}

		title := m.CourseID
		link := ""
		if c != nil {
			title = c.Title
			link = c.Link
		}

		label := title
		if m.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", title, *m.LessonNumber)
			if c != nil {
				if ll := c.LessonLink(*m.LessonNumber); ll != "" {
					link = ll
				}
			}
		}

		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, m.Text))
		t.lastSources = append(t.lastSources, Source{Text: label, Link: link})
	}

	return strings.Join(blocks, "\n\n"), nil
}

// TakeSources returns and clears the citations from the last invocation.
func (t *SearchTool) TakeSources() []Source {
	s := t.lastSources
	t.lastSources = nil
	return s
}
