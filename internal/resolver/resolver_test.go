package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/coursechat/coursechat-go/internal/vectorstore"
)

// fakeCatalog returns a canned match list for every query.
type fakeCatalog struct {
	matches []vectorstore.CatalogMatch
	err     error
}

func (f *fakeCatalog) QueryCatalog(_ context.Context, _ string, _ int) ([]vectorstore.CatalogMatch, error) {
	return f.matches, f.err
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		matches   []vectorstore.CatalogMatch
		threshold float32
		want      string
		wantMiss  bool
	}{
		{
			name: "best match above threshold",
			matches: []vectorstore.CatalogMatch{
				{CourseID: "intro-to-rag", Score: 0.91},
				{CourseID: "advanced-rag", Score: 0.55},
			},
			want: "intro-to-rag",
		},
		{
			name:     "empty catalog",
			matches:  nil,
			wantMiss: true,
		},
		{
			name: "best score below threshold",
			matches: []vectorstore.CatalogMatch{
				{CourseID: "intro-to-rag", Score: 0.12},
			},
			wantMiss: true,
		},
		{
			name: "exact tie breaks to smallest course ID",
			matches: []vectorstore.CatalogMatch{
				{CourseID: "zeta-course", Score: 0.8},
				{CourseID: "alpha-course", Score: 0.8},
			},
			want: "alpha-course",
		},
		{
			name: "custom threshold accepts a weak match",
			matches: []vectorstore.CatalogMatch{
				{CourseID: "intro-to-rag", Score: 0.12},
			},
			threshold: 0.1,
			want:      "intro-to-rag",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r, err := New(&fakeCatalog{matches: tc.matches}, tc.threshold)
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			got, err := r.Resolve(context.Background(), "some course")
			if tc.wantMiss {
				var notFound *NotFoundError
				if !errors.As(err, &notFound) {
					t.Fatalf("Resolve() error = %v, want *NotFoundError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("Resolve() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolve_CatalogError(t *testing.T) {
	t.Parallel()

	r, err := New(&fakeCatalog{err: errors.New("connection refused")}, 0)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = r.Resolve(context.Background(), "anything")
	if err == nil {
		t.Fatal("Resolve() expected error, got nil")
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		t.Error("infrastructure failure must not be reported as a miss")
	}
}

func TestNew_NilCatalog(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, 0.5); err == nil {
		t.Fatal("New(nil) expected error")
	}
}
