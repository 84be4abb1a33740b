package vecmatch

import (
	"errors"
	"fmt"

	"github.com/vecmatch/vecmatch/embedding"
	"github.com/vecmatch/vecmatch/index"
	"github.com/vecmatch/vecmatch/store"
)

var (
	// ErrNotFound is returned when an item is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrDuplicateID is returned when inserting an identifier that
	// already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrEmptyID is returned when an operation is given an empty
	// identifier.
	ErrEmptyID = errors.New("id must not be empty")

	// ErrNoEmbedder is returned by text operations when the collection
	// was built without an embedder.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrEmbeddingFailed indicates that the embedding provider rejected or
// failed a request.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrEmbeddingFailed struct {
	cause error
}

func (e *ErrEmbeddingFailed) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.cause)
}

func (e *ErrEmbeddingFailed) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var dup *store.ErrDuplicateID
	if errors.As(err, &dup) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}

	var empty *store.ErrEmptyID
	if errors.As(err, &empty) {
		return fmt.Errorf("%w: %w", ErrEmptyID, err)
	}

	// Dimension and argument normalization.
	var dm *store.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}

	var pe *embedding.ProviderError
	if errors.As(err, &pe) {
		return &ErrEmbeddingFailed{cause: err}
	}

	return err
}
