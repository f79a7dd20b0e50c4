package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coursechat/coursechat-go/internal/course"
	"github.com/coursechat/coursechat-go/internal/resolver"
	"github.com/coursechat/coursechat-go/internal/vectorstore"
)

// fakeStore serves canned content matches and course records.
type fakeStore struct {
	matches    []vectorstore.ContentMatch
	courses    map[string]*course.Course
	lastFilter *vectorstore.ContentFilter
}

func (f *fakeStore) QueryContent(_ context.Context, _ string, _ int, filter *vectorstore.ContentFilter) ([]vectorstore.ContentMatch, error) {
	f.lastFilter = filter
	return f.matches, nil
}

func (f *fakeStore) GetCourse(_ context.Context, courseID string) (*course.Course, error) {
	return f.courses[courseID], nil
}

// fakeResolver resolves every name to a fixed ID, or misses.
type fakeResolver struct {
	courseID string
	miss     bool
}

func (f *fakeResolver) Resolve(_ context.Context, nameText string) (string, error) {
	if f.miss {
		return "", &resolver.NotFoundError{Query: nameText}
	}
	return f.courseID, nil
}

func lessonPtr(n int) *int { return &n }

func ragCourse() *course.Course {
	return &course.Course{
		ID:    "intro-to-rag",
		Title: "Intro to RAG",
		Link:  "https://example.com/rag",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Getting Started", Link: "https://example.com/rag/1"},
			{Number: 2, Title: "Going Deeper"},
		},
	}
}

func TestSearchTool_RendersResultsAndSources(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		matches: []vectorstore.ContentMatch{
			{Text: "chunk about embeddings", CourseID: "intro-to-rag", LessonNumber: lessonPtr(1)},
			{Text: "chunk about retrieval", CourseID: "intro-to-rag", LessonNumber: lessonPtr(2)},
		},
		courses: map[string]*course.Course{"intro-to-rag": ragCourse()},
	}
	tool, err := NewSearchTool(store, &fakeResolver{courseID: "intro-to-rag"}, 0)
	if err != nil {
		t.Fatalf("NewSearchTool() failed: %v", err)
	}

	out, err := tool.InvokableRun(context.Background(), `{"query":"embeddings","course_name":"RAG"}`)
	if err != nil {
		t.Fatalf("InvokableRun() failed: %v", err)
	}

	blocks := strings.Split(out, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("result blocks = %d, want 2:\n%s", len(blocks), out)
	}
	if !strings.HasPrefix(blocks[0], "[Intro to RAG - Lesson 1]\n") {
		t.Errorf("block 0 header wrong: %q", blocks[0])
	}
	if !strings.Contains(blocks[0], "chunk about embeddings") {
		t.Errorf("block 0 missing chunk text: %q", blocks[0])
	}

	sources := tool.TakeSources()
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
	if sources[0].Text != "Intro to RAG - Lesson 1" || sources[0].Link != "https://example.com/rag/1" {
		t.Errorf("source 0 = %+v, want lesson link", sources[0])
	}
	// Lesson 2 has no lesson link, so the course link is used.
	if sources[1].Link != "https://example.com/rag" {
		t.Errorf("source 1 link = %q, want course link fallback", sources[1].Link)
	}

	// Sources are cleared once taken.
	if left := tool.TakeSources(); len(left) != 0 {
		t.Errorf("TakeSources() second call returned %d sources, want 0", len(left))
	}

	// The resolved course must reach the store as an exact filter.
	if store.lastFilter == nil || store.lastFilter.CourseID != "intro-to-rag" {
		t.Errorf("filter = %+v, want course_id intro-to-rag", store.lastFilter)
	}
}

func TestSearchTool_EmptyResultSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
		want string
	}{
		{
			name: "unfiltered",
			args: `{"query":"anything"}`,
			want: "No relevant content found.",
		},
		{
			name: "course filter",
			args: `{"query":"anything","course_name":"RAG"}`,
			want: "No relevant content found in course 'RAG'.",
		},
		{
			name: "course and lesson filter",
			args: `{"query":"anything","course_name":"RAG","lesson_number":3}`,
			want: "No relevant content found in course 'RAG' in lesson 3.",
		},
		{
			name: "lesson filter only",
			args: `{"query":"anything","lesson_number":2}`,
			want: "No relevant content found in lesson 2.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeStore{}
			tool, err := NewSearchTool(store, &fakeResolver{courseID: "intro-to-rag"}, 0)
			if err != nil {
				t.Fatalf("NewSearchTool() failed: %v", err)
			}
			out, err := tool.InvokableRun(context.Background(), tc.args)
			if err != nil {
				t.Fatalf("InvokableRun() failed: %v", err)
			}
			if out != tc.want {
				t.Errorf("observation = %q, want %q", out, tc.want)
			}
			if src := tool.TakeSources(); len(src) != 0 {
				t.Errorf("empty result recorded %d sources", len(src))
			}
		})
	}
}

func TestSearchTool_UnresolvedCourseName(t *testing.T) {
	t.Parallel()

	tool, err := NewSearchTool(&fakeStore{}, &fakeResolver{miss: true}, 0)
	if err != nil {
		t.Fatalf("NewSearchTool() failed: %v", err)
	}

	out, err := tool.InvokableRun(context.Background(), `{"query":"q","course_name":"Nonexistent"}`)
	if err != nil {
		t.Fatalf("InvokableRun() failed: %v", err)
	}
	if out != "No course found matching 'Nonexistent'" {
		t.Errorf("observation = %q", out)
	}
}

func TestSearchTool_RejectsMissingQuery(t *testing.T) {
	t.Parallel()

	tool, err := NewSearchTool(&fakeStore{}, &fakeResolver{courseID: "x"}, 0)
	if err != nil {
		t.Fatalf("NewSearchTool() failed: %v", err)
	}
	if _, err := tool.InvokableRun(context.Background(), `{}`); err == nil {
		t.Fatal("expected error for missing query")
	}
	if _, err := tool.InvokableRun(context.Background(), `not json`); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestOutlineTool_RendersOutline(t *testing.T) {
	t.Parallel()

	store := &fakeStore{courses: map[string]*course.Course{"intro-to-rag": ragCourse()}}
	tool, err := NewOutlineTool(store, &fakeResolver{courseID: "intro-to-rag"})
	if err != nil {
		t.Fatalf("NewOutlineTool() failed: %v", err)
	}

	out, err := tool.InvokableRun(context.Background(), `{"course_name":"RAG"}`)
	if err != nil {
		t.Fatalf("InvokableRun() failed: %v", err)
	}

	want := "Course: Intro to RAG\n" +
		"Course Link: https://example.com/rag\n" +
		"Lessons (2):\n" +
		"1. Getting Started\n" +
		"2. Going Deeper"
	if out != want {
		t.Errorf("outline:\n%s\nwant:\n%s", out, want)
	}

	sources := tool.TakeSources()
	if len(sources) != 1 || sources[0].Text != "Intro to RAG" || sources[0].Link != "https://example.com/rag" {
		t.Errorf("sources = %+v", sources)
	}
}

func TestOutlineTool_UnresolvedCourseName(t *testing.T) {
	t.Parallel()

	tool, err := NewOutlineTool(&fakeStore{}, &fakeResolver{miss: true})
	if err != nil {
		t.Fatalf("NewOutlineTool() failed: %v", err)
	}
	out, err := tool.InvokableRun(context.Background(), `{"course_name":"Ghost"}`)
	if err != nil {
		t.Fatalf("InvokableRun() failed: %v", err)
	}
	if out != "No course found matching 'Ghost'" {
		t.Errorf("observation = %q", out)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		matches: []vectorstore.ContentMatch{
			{Text: "chunk", CourseID: "intro-to-rag", LessonNumber: lessonPtr(1)},
		},
		courses: map[string]*course.Course{"intro-to-rag": ragCourse()},
	}
	search, err := NewSearchTool(store, &fakeResolver{courseID: "intro-to-rag"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	outline, err := NewOutlineTool(store, &fakeResolver{courseID: "intro-to-rag"})
	if err != nil {
		t.Fatal(err)
	}

	reg, err := NewRegistry(search, outline)
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}

	infos, err := reg.Infos(context.Background())
	if err != nil {
		t.Fatalf("Infos() failed: %v", err)
	}
	if len(infos) != 2 || infos[0].Name != SearchToolName || infos[1].Name != OutlineToolName {
		t.Errorf("Infos() order/names wrong: %+v", infos)
	}

	obs, sources, err := reg.Execute(context.Background(), SearchToolName, `{"query":"q"}`)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if !strings.Contains(obs, "chunk") {
		t.Errorf("observation = %q", obs)
	}
	if len(sources) != 1 {
		t.Errorf("sources = %d, want 1", len(sources))
	}

	_, _, err = reg.Execute(context.Background(), "no_such_tool", `{}`)
	var execErr *ExecutionError
	if !errors.As(err, &execErr) || execErr.Tool != "no_such_tool" {
		t.Errorf("Execute(unknown) error = %v, want *ExecutionError", err)
	}
}

func TestNewRegistry_DuplicateName(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	a, err := NewSearchTool(store, &fakeResolver{courseID: "x"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSearchTool(store, &fakeResolver{courseID: "x"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(a, b); err == nil {
		t.Fatal("NewRegistry() expected duplicate-name error")
	}
}
