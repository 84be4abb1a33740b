package flat

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/index"
	"github.com/vecmatch/vecmatch/metadata"
	"github.com/vecmatch/vecmatch/store"
)

func newStore(t *testing.T, dimension int, recs ...store.Record) *store.Memory {
	t.Helper()
	m, err := store.NewMemory(dimension)
	require.NoError(t, err)
	require.NoError(t, m.BulkLoad(context.Background(), recs))
	return m
}

func TestFlatQueryOrdering(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 2,
		store.Record{ID: "a", Vector: []float32{0, 0}},
		store.Record{ID: "b", Vector: []float32{1, 0}},
		store.Record{ID: "c", Vector: []float32{0, 1}},
	)

	f, err := New(m)
	require.NoError(t, err)

	// Concrete scenario: under Euclidean distance, the query (0.1, 0.1)
	// is closest to a (~0.141), then c (0.9), then b (~0.906).
	results, err := f.Query(ctx, []float32{0.1, 0.1}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Equal(t, "b", results[2].ID)

	assert.InDelta(t, math.Sqrt(0.02), float64(results[0].Distance), 1e-5)
	assert.InDelta(t, 0.9, float64(results[1].Distance), 1e-5)
	assert.InDelta(t, math.Sqrt(0.82), float64(results[2].Distance), 1e-5)
}

func TestFlatTieBreakByID(t *testing.T) {
	ctx := context.Background()
	// b and c are exactly distance 1 from the origin.
	m := newStore(t, 2,
		store.Record{ID: "c", Vector: []float32{0, 1}},
		store.Record{ID: "b", Vector: []float32{1, 0}},
		store.Record{ID: "a", Vector: []float32{0, 0}},
	)

	f, err := New(m)
	require.NoError(t, err)

	results, err := f.Query(ctx, []float32{0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	// Equal distances: smaller identifier wins.
	assert.Equal(t, "b", results[1].ID)
}

func TestFlatKLargerThanCollection(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 1,
		store.Record{ID: "a", Vector: []float32{1}},
		store.Record{ID: "b", Vector: []float32{2}},
	)

	f, err := New(m)
	require.NoError(t, err)

	results, err := f.Query(ctx, []float32{0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	seen := map[string]bool{}
	for _, r := range results {
		assert.False(t, seen[r.ID], "duplicate result %s", r.ID)
		seen[r.ID] = true
	}
}

func TestFlatEmptyCollection(t *testing.T) {
	ctx := context.Background()
	m, err := store.NewMemory(2)
	require.NoError(t, err)

	f, err := New(m)
	require.NoError(t, err)

	results, err := f.Query(ctx, []float32{0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlatQueryErrors(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 2, store.Record{ID: "a", Vector: []float32{0, 0}})

	f, err := New(m)
	require.NoError(t, err)

	t.Run("InvalidK", func(t *testing.T) {
		_, err := f.Query(ctx, []float32{0, 0}, 0, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)

		_, err = f.Query(ctx, []float32{0, 0}, -3, nil)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := f.Query(ctx, []float32{0, 0, 0}, 1, nil)
		var dm *store.ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 3, dm.Actual)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.Query(cctx, []float32{0, 0}, 1, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFlatMetrics(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 2,
		store.Record{ID: "x", Vector: []float32{1, 0}},
		store.Record{ID: "y", Vector: []float32{0, 1}},
		store.Record{ID: "z", Vector: []float32{-1, 0}},
	)

	t.Run("Cosine", func(t *testing.T) {
		f, err := New(m, func(o *Options) { o.Metric = distance.MetricCosine })
		require.NoError(t, err)
		assert.Equal(t, distance.MetricCosine, f.Metric())

		results, err := f.Query(ctx, []float32{2, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "x", results[0].ID) // same direction, distance 0
		assert.Equal(t, "y", results[1].ID) // orthogonal, distance 1
		assert.Equal(t, "z", results[2].ID) // opposite, distance 2
		assert.InDelta(t, 0, float64(results[0].Distance), 1e-5)
		assert.InDelta(t, 1, float64(results[1].Distance), 1e-5)
		assert.InDelta(t, 2, float64(results[2].Distance), 1e-5)
	})

	t.Run("DotProduct", func(t *testing.T) {
		f, err := New(m, func(o *Options) { o.Metric = distance.MetricDotProduct })
		require.NoError(t, err)

		results, err := f.Query(ctx, []float32{3, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		// Highest dot product ranks first under the negation convention.
		assert.Equal(t, "x", results[0].ID)
		assert.Equal(t, float32(-3), results[0].Distance)
	})
}

func TestFlatSeesMutations(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 1, store.Record{ID: "a", Vector: []float32{0}})

	f, err := New(m)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, store.Record{ID: "b", Vector: []float32{0.5}}))
	results, err := f.Query(ctx, []float32{0.6}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)

	require.NoError(t, m.Delete(ctx, "b"))
	results, err = f.Query(ctx, []float32{0.6}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestFlatFilteredQueryUnderRowReuse(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 1)
	f, err := New(m)
	require.NoError(t, err)

	// "x-" records are always tech, "y-" records always food. The writer
	// replaces x records with y records, so deleted rows are reused for
	// documents of the other category. A tech query must never surface a
	// "y-" id, no matter which state it snapshots.
	const n = 32
	for i := 0; i < n; i++ {
		require.NoError(t, m.Insert(ctx, store.Record{
			ID:       fmt.Sprintf("x-%02d", i),
			Vector:   []float32{float32(i)},
			Metadata: metadata.Document{"category": metadata.String("tech")},
		}))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			if m.Delete(ctx, fmt.Sprintf("x-%02d", i)) != nil {
				return
			}
			if m.Insert(ctx, store.Record{
				ID:       fmt.Sprintf("y-%02d", i),
				Vector:   []float32{float32(i)},
				Metadata: metadata.Document{"category": metadata.String("food")},
			}) != nil {
				return
			}
		}
	}()

	filter := metadata.NewFilterSet(metadata.Eq("category", metadata.String("tech")))
	for i := 0; i < 500; i++ {
		results, err := f.Query(ctx, []float32{0}, n, &index.SearchOptions{Filter: filter})
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, byte('x'), r.ID[0], "filtered query returned %q", r.ID)
		}
	}
	<-done
}

func TestFlatFilters(t *testing.T) {
	ctx := context.Background()
	m := newStore(t, 1,
		store.Record{ID: "a", Vector: []float32{1}, Metadata: metadata.Document{"category": metadata.String("tech")}},
		store.Record{ID: "b", Vector: []float32{2}, Metadata: metadata.Document{"category": metadata.String("news")}},
		store.Record{ID: "c", Vector: []float32{3}, Metadata: metadata.Document{"category": metadata.String("tech"), "year": metadata.Int(2024)}},
	)

	f, err := New(m)
	require.NoError(t, err)

	t.Run("MetadataEq", func(t *testing.T) {
		results, err := f.Query(ctx, []float32{0}, 10, &index.SearchOptions{
			Filter: metadata.NewFilterSet(metadata.Eq("category", metadata.String("tech"))),
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
	})

	t.Run("MetadataRangeFallback", func(t *testing.T) {
		// Gt is not servable by the inverted index; falls back to doc matching.
		results, err := f.Query(ctx, []float32{0}, 10, &index.SearchOptions{
			Filter: metadata.NewFilterSet(metadata.Gt("year", metadata.Int(2020))),
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "c", results[0].ID)
	})

	t.Run("FilterFunc", func(t *testing.T) {
		results, err := f.Query(ctx, []float32{0}, 10, &index.SearchOptions{
			FilterFunc: func(id string) bool { return id != "a" },
		})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("NoMatch", func(t *testing.T) {
		results, err := f.Query(ctx, []float32{0}, 10, &index.SearchOptions{
			Filter: metadata.NewFilterSet(metadata.Eq("category", metadata.String("sports"))),
		})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestFlatParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()

	const n = 5000
	recs := make([]store.Record, n)
	for i := range recs {
		recs[i] = store.Record{
			ID: fmt.Sprintf("doc-%05d", i),
			// Coarse grid provokes distance ties across partitions.
			Vector: []float32{float32(i % 50), float32(i % 7)},
		}
	}

	m, err := store.NewMemory(2)
	require.NoError(t, err)
	require.NoError(t, m.BulkLoad(ctx, recs))

	seqIdx, err := New(m, func(o *Options) { o.ParallelThreshold = n * 2 })
	require.NoError(t, err)
	parIdx, err := New(m, func(o *Options) { o.ParallelThreshold = 1; o.Procs = 8 })
	require.NoError(t, err)

	for _, k := range []int{1, 10, 100} {
		q := []float32{25.3, 3.1}
		seq, err := seqIdx.Query(ctx, q, k, nil)
		require.NoError(t, err)
		par, err := parIdx.Query(ctx, q, k, nil)
		require.NoError(t, err)
		assert.Equal(t, seq, par, "k=%d", k)
	}
}
