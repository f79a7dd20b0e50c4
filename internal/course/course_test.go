package course

import "testing"

func TestSlugID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"MCP: Build Rich-Context AI Apps", "mcp-build-rich-context-ai-apps"},
		{"Introduction to RAG", "introduction-to-rag"},
		{"  Spaced   Out  ", "spaced-out"},
		{"Already-Slugged", "already-slugged"},
		{"Ends with punctuation!!!", "ends-with-punctuation"},
		{"123 Numbers First", "123-numbers-first"},
	}
	for _, tc := range tests {
		if got := SlugID(tc.title); got != tc.want {
			t.Errorf("SlugID(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestPointID_Deterministic(t *testing.T) {
	t.Parallel()

	a := PointID("intro-to-rag")
	b := PointID("intro-to-rag")
	if a != b {
		t.Errorf("PointID not deterministic: %q != %q", a, b)
	}
	if a == PointID("other-course") {
		t.Error("distinct courses produced the same point ID")
	}

	// Chunk IDs must not collide with course IDs or with each other.
	c0 := ChunkPointID("intro-to-rag", 0)
	c1 := ChunkPointID("intro-to-rag", 1)
	if c0 == c1 {
		t.Error("distinct chunk indexes produced the same point ID")
	}
	if c0 == a {
		t.Error("chunk point ID collided with course point ID")
	}
}

func TestLessonLink(t *testing.T) {
	t.Parallel()

	c := &Course{
		Lessons: []Lesson{
			{Number: 1, Title: "Intro", Link: "https://example.com/l1"},
			{Number: 2, Title: "Basics"},
		},
	}
	if got := c.LessonLink(1); got != "https://example.com/l1" {
		t.Errorf("LessonLink(1) = %q", got)
	}
	if got := c.LessonLink(2); got != "" {
		t.Errorf("LessonLink(2) = %q, want empty (lesson has no link)", got)
	}
	if got := c.LessonLink(9); got != "" {
		t.Errorf("LessonLink(9) = %q, want empty (no such lesson)", got)
	}
}
