package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/coursechat/coursechat-go/internal/resolver"
)

// OutlineToolName is the capability name bound to the chat model.
const OutlineToolName = "get_course_outline"

// OutlineTool returns a course's structure — title, link, and the complete
// numbered lesson list — for a fuzzily-matched course name. It shares the
// resolver and "no course found" sentinel with the search tool.
type OutlineTool struct {
	// store performs the exact-key course lookup after resolution.
	store ContentSearcher
	// resolver maps the course_name argument to a canonical course ID.
	resolver CourseNameResolver
	// lastSources holds the citation recorded by the most recent invocation.
	lastSources []Source
}

// outlineInput is the JSON-serialisable input schema for OutlineTool.
type outlineInput struct {
	// CourseName is the course to outline (fuzzy-matched).
	CourseName string `json:"course_name"`
}

// NewOutlineTool constructs an OutlineTool.
func NewOutlineTool(store ContentSearcher, res CourseNameResolver) (*OutlineTool, error) {
	if store == nil {
		return nil, fmt.Errorf("tools: store must not be nil")
	}
	if res == nil {
		return nil, fmt.Errorf("tools: resolver must not be nil")
	}
	return &OutlineTool{store: store, resolver: res}, nil
}

// Name returns the tool name registered with the model.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Description returns the LLM-facing description of this tool.
func (t *OutlineTool) Description() string {
	return "Get the outline of a course: its title, link, and complete lesson list with numbers and titles. " +
		"Use for questions about course structure, lesson lists, or syllabus information."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *OutlineTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"course_name": {
				Type:     schema.String,
				Desc:     "Course title to outline (partial matches work).",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the outline lookup given a JSON-encoded input string.
func (t *OutlineTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	t.lastSources = nil

	var input outlineInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("%s: invalid input: %w", OutlineToolName, err)
	}
	if input.CourseName == "" {
		return "", fmt.Errorf("%s: course_name is required", OutlineToolName)
	}

	courseID, err := t.resolver.Resolve(ctx, input.CourseName)
	var notFound *resolver.NotFoundError
	if errors.As(err, &notFound) {
		return fmt.Sprintf("No course found matching '%s'", input.CourseName), nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: course resolution failed: %w", OutlineToolName, err)
	}

	c, err := t.store.GetCourse(ctx, courseID)
	if err != nil {
		return "", fmt.Errorf("%s: course lookup failed: %w", OutlineToolName, err)
	}
	if c == nil {
		return fmt.Sprintf("No course found matching '%s'", input.CourseName), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", c.Title)
	if c.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", c.Link)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(c.Lessons))
	for _, l := range c.Lessons {
		fmt.Fprintf(&b, "%d. %s\n", l.Number, l.Title)
	}

	t.lastSources = []Source{{Text: c.Title, Link: c.Link}}
	return strings.TrimRight(b.String(), "\n"), nil
}

// TakeSources returns and clears the citation from the last invocation.
func (t *OutlineTool) TakeSources() []Source {
	s := t.lastSources
	t.lastSources = nil
	return s
}
