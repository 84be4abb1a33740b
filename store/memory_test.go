package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecmatch/vecmatch/metadata"
)

func TestMemoryInsertGet(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(3)
	require.NoError(t, err)

	rec := Record{
		ID:       "doc-1",
		Vector:   []float32{1, 2, 3},
		Metadata: metadata.Document{"title": metadata.String("first")},
	}
	require.NoError(t, m.Insert(ctx, rec))

	got, err := m.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, got.Vector)
	assert.Equal(t, "first", got.Metadata["title"].StringValue())

	// The returned record is a copy; mutating it must not affect the store.
	got.Vector[0] = 99
	again, err := m.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Vector[0])

	// Inserted vector is copied too.
	rec.Vector[1] = 99
	again, err = m.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, float32(2), again.Vector[1])
}

func TestMemoryInsertErrors(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, Record{ID: "a", Vector: []float32{1, 2}}))

	t.Run("DuplicateID", func(t *testing.T) {
		err := m.Insert(ctx, Record{ID: "a", Vector: []float32{3, 4}})
		var dup *ErrDuplicateID
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "a", dup.ID)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := m.Insert(ctx, Record{ID: "b", Vector: []float32{1, 2, 3}})
		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 2, dm.Expected)
		assert.Equal(t, 3, dm.Actual)

		// Collection unchanged.
		n, err := m.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("EmptyID", func(t *testing.T) {
		err := m.Insert(ctx, Record{ID: "", Vector: []float32{1, 2}})
		var empty *ErrEmptyID
		assert.ErrorAs(t, err, &empty)
	})

	t.Run("InvalidMetadata", func(t *testing.T) {
		err := m.Insert(ctx, Record{
			ID:       "c",
			Vector:   []float32{1, 2},
			Metadata: metadata.Document{"tags": metadata.Array([]metadata.Value{metadata.String("x")})},
		})
		assert.Error(t, err)
	})
}

func TestMemoryDimensionFromFirstInsert(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(0)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Dimension())

	require.NoError(t, m.Insert(ctx, Record{ID: "a", Vector: []float32{1, 2, 3, 4}}))
	assert.Equal(t, 4, m.Dimension())

	err = m.Insert(ctx, Record{ID: "b", Vector: []float32{1}})
	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)
}

func TestMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, Record{
		ID:       "a",
		Vector:   []float32{1, 0},
		Metadata: metadata.Document{"v": metadata.Int(1)},
	}))

	require.NoError(t, m.Update(ctx, Record{
		ID:       "a",
		Vector:   []float32{0, 1},
		Metadata: metadata.Document{"v": metadata.Int(2)},
	}))

	got, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got.Vector)
	i, _ := got.Metadata["v"].AsInt64()
	assert.Equal(t, int64(2), i)

	t.Run("NotFound", func(t *testing.T) {
		err := m.Update(ctx, Record{ID: "missing", Vector: []float32{1, 1}})
		var nf *ErrNotFound
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		err := m.Update(ctx, Record{ID: "a", Vector: []float32{1}})
		var dm *ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, Record{ID: "a", Vector: []float32{1, 0}}))
	require.NoError(t, m.Delete(ctx, "a"))

	_, err = m.Get(ctx, "a")
	var nf *ErrNotFound
	assert.ErrorAs(t, err, &nf)

	// Second delete in a row fails with NotFound again.
	err = m.Delete(ctx, "a")
	assert.ErrorAs(t, err, &nf)

	// Deleting a never-existing id fails too.
	err = m.Delete(ctx, "ghost")
	assert.ErrorAs(t, err, &nf)
}

func TestMemoryRowReuse(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(1)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, Record{ID: "a", Vector: []float32{1}}))
	require.NoError(t, m.Insert(ctx, Record{ID: "b", Vector: []float32{2}}))
	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Insert(ctx, Record{ID: "c", Vector: []float32{3}}))

	// Row of "a" was reused; dense row space did not grow.
	sn := m.Snapshot()
	assert.Equal(t, 2, sn.Rows())
	assert.Equal(t, 2, sn.Len())
}

func TestSnapshotMetaIndexVersioned(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(1)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, Record{
		ID:       "a",
		Vector:   []float32{1},
		Metadata: metadata.Document{"category": metadata.String("tech")},
	}))

	sn := m.Snapshot()

	// Delete "a" and insert "b" with different metadata; the dense row of
	// "a" is reused.
	require.NoError(t, m.Delete(ctx, "a"))
	require.NoError(t, m.Insert(ctx, Record{
		ID:       "b",
		Vector:   []float32{2},
		Metadata: metadata.Document{"category": metadata.String("food")},
	}))
	require.Equal(t, 1, m.Snapshot().Rows())

	// The old snapshot's index still describes the old row contents: row 0
	// matches "tech", never "food".
	tech, ok := sn.MetaIndex().Compile(metadata.NewFilterSet(metadata.Eq("category", metadata.String("tech"))))
	require.True(t, ok)
	assert.True(t, tech(0))

	food, ok := sn.MetaIndex().Compile(metadata.NewFilterSet(metadata.Eq("category", metadata.String("food"))))
	require.True(t, ok)
	assert.False(t, food(0))

	// The published index sees the new world.
	food, ok = m.MetaIndex().Compile(metadata.NewFilterSet(metadata.Eq("category", metadata.String("food"))))
	require.True(t, ok)
	assert.True(t, food(0))
}

func TestMemoryBulkLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("AllOrNothing", func(t *testing.T) {
		m, err := NewMemory(2)
		require.NoError(t, err)
		require.NoError(t, m.Insert(ctx, Record{ID: "seed", Vector: []float32{0, 0}}))

		recs := []Record{
			{ID: "a", Vector: []float32{1, 0}},
			{ID: "b", Vector: []float32{0, 1}},
			{ID: "c", Vector: []float32{1, 2, 3}}, // wrong dimension
			{ID: "d", Vector: []float32{1, 1}},
		}
		err = m.BulkLoad(ctx, recs)
		require.Error(t, err)

		var dm *ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Contains(t, err.Error(), `entry 2 ("c")`)

		// Collection exactly as before: only the seed record.
		n, err := m.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = m.Get(ctx, "a")
		assert.Error(t, err)
	})

	t.Run("DuplicateWithinBatch", func(t *testing.T) {
		m, err := NewMemory(1)
		require.NoError(t, err)

		err = m.BulkLoad(ctx, []Record{
			{ID: "x", Vector: []float32{1}},
			{ID: "x", Vector: []float32{2}},
		})
		var dup *ErrDuplicateID
		require.ErrorAs(t, err, &dup)

		n, err := m.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Success", func(t *testing.T) {
		m, err := NewMemory(0)
		require.NoError(t, err)

		recs := make([]Record, 10)
		for i := range recs {
			recs[i] = Record{ID: fmt.Sprintf("doc-%d", i), Vector: []float32{float32(i), 0}}
		}
		require.NoError(t, m.BulkLoad(ctx, recs))

		n, err := m.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, 2, m.Dimension())
	})
}

func TestMemorySnapshotStability(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(1)
	require.NoError(t, err)

	require.NoError(t, m.Insert(ctx, Record{ID: "a", Vector: []float32{1}}))
	sn := m.Snapshot()

	require.NoError(t, m.Insert(ctx, Record{ID: "b", Vector: []float32{2}}))
	require.NoError(t, m.Delete(ctx, "a"))

	// The snapshot still sees the old world.
	assert.Equal(t, 1, sn.Len())
	_, ok := sn.Get("a")
	assert.True(t, ok)
	_, ok = sn.Get("b")
	assert.False(t, ok)

	// A fresh snapshot sees the new world.
	sn2 := m.Snapshot()
	_, ok = sn2.Get("a")
	assert.False(t, ok)
	_, ok = sn2.Get("b")
	assert.True(t, ok)
}

func TestMemoryConcurrentReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(1)
	require.NoError(t, err)

	for i := range 100 {
		require.NoError(t, m.Insert(ctx, Record{ID: fmt.Sprintf("doc-%d", i), Vector: []float32{float32(i)}}))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 100; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = m.Insert(ctx, Record{ID: fmt.Sprintf("doc-%d", i), Vector: []float32{float32(i)}})
			_ = m.Delete(ctx, fmt.Sprintf("doc-%d", i-100))
		}
	}()

	for range 1000 {
		sn := m.Snapshot()
		count := 0
		for _, rec := range sn.All() {
			require.Len(t, rec.Vector, 1)
			count++
		}
		// Live count of the snapshot must be internally consistent.
		require.Equal(t, sn.Len(), count)
	}

	close(stop)
	wg.Wait()
}
