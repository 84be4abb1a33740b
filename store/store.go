// Package store provides vector storage keyed by opaque string identifiers.
//
// A store owns a single collection: a set of fixed-dimension vectors with
// typed metadata documents. All implementations enforce the collection
// dimension on every mutation and guarantee that BulkLoad is atomic.
package store

import (
	"context"
	"fmt"

	"github.com/vecmatch/vecmatch/metadata"
)

// Record is the stored unit: an opaque identifier, a fixed-dimension vector
// and an optional typed metadata document.
type Record struct {
	ID       string
	Vector   []float32
	Metadata metadata.Document
}

// Store is the contract a collection backend must satisfy.
//
// Mutations are serialized per collection; reads may run concurrently with
// writes and observe either the state before or after a mutation, never a
// partially applied one.
type Store interface {
	// Insert adds a new vector. It fails with ErrDuplicateID if the id
	// exists and ErrDimensionMismatch if the vector length does not match
	// the collection dimension.
	Insert(ctx context.Context, rec Record) error

	// Update replaces an existing vector's components and metadata in place.
	// It fails with ErrNotFound if the id is absent.
	Update(ctx context.Context, rec Record) error

	// Delete removes a vector. It fails with ErrNotFound if the id is
	// absent, including a second delete of the same id.
	Delete(ctx context.Context, id string) error

	// Get returns a copy of the stored vector and metadata.
	Get(ctx context.Context, id string) (Record, error)

	// BulkLoad inserts all records atomically: either every record commits
	// or the collection is left exactly as before the call. The returned
	// error identifies the first offending record.
	BulkLoad(ctx context.Context, recs []Record) error

	// Len returns the number of live records.
	Len(ctx context.Context) (int, error)

	// Dimension returns the collection dimension, or 0 if it has not been
	// fixed yet (empty collection created without an explicit dimension).
	Dimension() int
}

// ErrDimensionMismatch indicates a vector/collection dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimension
	Actual   int // Actual dimension
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrDuplicateID indicates an insert with an identifier that already exists.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("duplicate id: %q", e.ID)
}

// ErrNotFound indicates an operation on an identifier that does not exist.
type ErrNotFound struct {
	ID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("id not found: %q", e.ID)
}

// ErrEmptyID indicates a record with an empty identifier.
type ErrEmptyID struct{}

func (e *ErrEmptyID) Error() string {
	return "empty id"
}
