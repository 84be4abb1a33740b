package vecmatch

import (
	"context"

	"github.com/vecmatch/vecmatch/metadata"
)

// Search creates a new fluent search builder for the given query vector.
//
// Example:
//
//	results, err := c.Search(query).
//	    KNN(10).
//	    WithMetadata(metadata.NewFilterSet(metadata.Eq("category", metadata.String("tech")))).
//	    Execute(ctx)
func (c *Collection) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{
		c:     c,
		query: query,
		k:     10, // Default k
	}
}

// SearchBuilder is a fluent builder for constructing search queries.
type SearchBuilder struct {
	c     *Collection
	query []float32
	k     int

	// Filters
	filterFunc      func(id string) bool
	metadataFilters *metadata.FilterSet
}

// KNN sets the number of nearest neighbors to return.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// Filter sets a filter function for search results.
// Only records where filter(id) returns true are considered.
func (sb *SearchBuilder) Filter(fn func(id string) bool) *SearchBuilder {
	sb.filterFunc = fn
	return sb
}

// WithMetadata sets metadata filters for the search.
func (sb *SearchBuilder) WithMetadata(filters *metadata.FilterSet) *SearchBuilder {
	sb.metadataFilters = filters
	return sb
}

// Execute runs the search and returns the results.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]SearchResult, error) {
	return sb.c.KNNSearch(ctx, sb.query, sb.k, func(o *KNNSearchOptions) {
		o.Filter = sb.metadataFilters
		o.FilterFunc = sb.filterFunc
	})
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) []SearchResult {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// First returns only the nearest result, or ErrNotFound if none match.
func (sb *SearchBuilder) First(ctx context.Context) (SearchResult, error) {
	sb.k = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	if len(results) == 0 {
		return SearchResult{}, ErrNotFound
	}
	return results[0], nil
}

// Count executes the search and returns the number of results.
func (sb *SearchBuilder) Count(ctx context.Context) (int, error) {
	results, err := sb.Execute(ctx)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// Exists checks if at least one result matches the search.
func (sb *SearchBuilder) Exists(ctx context.Context) (bool, error) {
	sb.k = 1
	results, err := sb.Execute(ctx)
	if err != nil {
		return false, err
	}
	return len(results) > 0, nil
}
