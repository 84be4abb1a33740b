// Package index provides interfaces and types for similarity search over a
// vector collection.
package index

import (
	"context"
	"errors"

	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/metadata"
)

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// SearchResult represents a single nearest-neighbor match.
type SearchResult struct {
	// ID is the identifier of the matched vector.
	ID string

	// Distance is the distance between the query vector and the match,
	// under the index metric (smaller is closer).
	Distance float32
}

// SearchOptions controls the execution of a search query.
type SearchOptions struct {
	// Filter restricts candidates to records whose metadata matches.
	Filter *metadata.FilterSet

	// FilterFunc restricts candidates by identifier. Applied in addition
	// to Filter when both are set.
	FilterFunc func(id string) bool
}

// Index answers k-nearest-neighbor queries over a collection.
//
// Results are sorted ascending by distance with ties broken by ascending
// identifier, so a query over a fixed collection is fully deterministic.
// Mutations on the underlying store are visible to queries issued after the
// mutating call returns.
type Index interface {
	// Query returns up to k nearest neighbors of q. An empty collection
	// yields an empty result, not an error.
	Query(ctx context.Context, q []float32, k int, opts *SearchOptions) ([]SearchResult, error)

	// Metric returns the distance metric of the index.
	Metric() distance.Metric
}
