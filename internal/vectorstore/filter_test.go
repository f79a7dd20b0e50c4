package vectorstore

import (
	"strings"
	"testing"
)

func TestBuildContentFilter(t *testing.T) {
	t.Parallel()

	lesson := 3

	t.Run("nil filter", func(t *testing.T) {
		t.Parallel()
		if got := buildContentFilter(nil); got != nil {
			t.Errorf("buildContentFilter(nil) = %v, want nil", got)
		}
	})

	t.Run("zero value filter", func(t *testing.T) {
		t.Parallel()
		if got := buildContentFilter(&ContentFilter{}); got != nil {
			t.Errorf("empty filter = %v, want nil", got)
		}
	})

	t.Run("course only", func(t *testing.T) {
		t.Parallel()
		got := buildContentFilter(&ContentFilter{CourseID: "intro-to-rag"})
		if got == nil || len(got.Must) != 1 {
			t.Fatalf("filter = %v, want one condition", got)
		}
	})

	t.Run("lesson only", func(t *testing.T) {
		t.Parallel()
		got := buildContentFilter(&ContentFilter{LessonNumber: &lesson})
		if got == nil || len(got.Must) != 1 {
			t.Fatalf("filter = %v, want one condition", got)
		}
	})

	t.Run("course and lesson", func(t *testing.T) {
		t.Parallel()
		got := buildContentFilter(&ContentFilter{CourseID: "intro-to-rag", LessonNumber: &lesson})
		if got == nil || len(got.Must) != 2 {
			t.Fatalf("filter = %v, want two conditions", got)
		}
	})
}

func TestSchemaMismatchError(t *testing.T) {
	t.Parallel()

	err := &SchemaMismatchError{Stored: "model-a", Configured: "model-b"}
	msg := err.Error()
	if !strings.Contains(msg, "model-a") || !strings.Contains(msg, "model-b") {
		t.Errorf("message does not name both models: %q", msg)
	}
	if !strings.Contains(msg, "re-ingest") {
		t.Errorf("message does not tell the operator to re-ingest: %q", msg)
	}
}
