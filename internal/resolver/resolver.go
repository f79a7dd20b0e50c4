// Package resolver maps free-text course names to canonical course IDs via
// the catalog similarity collection. This is the only fuzzy-matching surface
// in the system — every other lookup is exact-key.
package resolver

import (
	"context"
	"fmt"

	"github.com/coursechat/coursechat-go/internal/vectorstore"
)

// DefaultThreshold is the minimum cosine similarity a catalog match needs
// before it is accepted as a resolution.
const DefaultThreshold = 0.3

// NotFoundError reports that no course matched a resolution query above the
// configured threshold, or that the catalog is empty.
type NotFoundError struct {
	// Query is the name text that failed to resolve.
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resolver: no course found matching %q", e.Query)
}

// CatalogQuerier is the slice of the vector store the resolver needs.
type CatalogQuerier interface {
	QueryCatalog(ctx context.Context, nameText string, k int) ([]vectorstore.CatalogMatch, error)
}

// CourseResolver resolves user-typed course names against the catalog.
type CourseResolver struct {
	// catalog performs the similarity query.
	catalog CatalogQuerier
	// threshold is the minimum acceptable similarity score.
	threshold float32
}

// New constructs a CourseResolver. A non-positive threshold falls back to
// DefaultThreshold.
func New(catalog CatalogQuerier, threshold float32) (*CourseResolver, error) {
	if catalog == nil {
		return nil, fmt.Errorf("resolver: catalog must not be nil")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &CourseResolver{catalog: catalog, threshold: threshold}, nil
}

// Resolve returns the course ID whose catalog entry is most similar to
// nameText. Fails with *NotFoundError when the catalog is empty or the best
// score falls below the threshold. Exact score ties break to the
// lexicographically smallest course ID so resolution is deterministic.
func (r *CourseResolver) Resolve(ctx context.Context, nameText string) (string, error) {
	// Ask for a couple of extra candidates so an exact tie at the top is
	// visible and can be broken deterministically.
	matches, err := r.catalog.QueryCatalog(ctx, nameText, 3)
	if err != nil {
		return "", fmt.Errorf("resolver: catalog query failed: %w", err)
	}
	if len(matches) == 0 {
		return "", &NotFoundError{Query: nameText}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.Score == best.Score && m.CourseID < best.CourseID {
			best = m
		}
	}
	if best.Score < r.threshold {
		return "", &NotFoundError{Query: nameText}
	}
	return best.CourseID, nil
}
