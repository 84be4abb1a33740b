package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecmatch/vecmatch/distance"
	"github.com/vecmatch/vecmatch/index"
	"github.com/vecmatch/vecmatch/metadata"
	"github.com/vecmatch/vecmatch/store"
)

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[]", formatVector(nil))
	assert.Equal(t, "[1,2.5,-3]", formatVector([]float32{1, 2.5, -3}))
}

func TestParseVector(t *testing.T) {
	vec, err := parseVector("[1,2.5,-3]")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2.5, -3}, vec)

	vec, err = parseVector("[]")
	require.NoError(t, err)
	assert.Nil(t, vec)

	_, err = parseVector("[1,abc]")
	require.Error(t, err)
}

func TestFormatParseRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.125, 3.5, 0}
	out, err := parseVector(formatVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMigrationStatements(t *testing.T) {
	exact := &Store{dimension: 3, opts: DefaultOptions}
	for _, stmt := range exact.migrationStatements() {
		assert.NotContains(t, stmt, "hnsw", "exact store must not create an approximate index")
	}

	approx := &Store{dimension: 3, opts: DefaultOptions}
	approx.opts.ApproximateIndex = true
	stmts := approx.migrationStatements()
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[len(stmts)-1], "USING hnsw")
	assert.Contains(t, stmts[len(stmts)-1], "vector_l2_ops")

	approx.opts.Metric = distance.MetricCosine
	stmts = approx.migrationStatements()
	assert.Contains(t, stmts[len(stmts)-1], "vector_cosine_ops")
}

// openTestStore connects to the database named by VECMATCH_POSTGRES_DSN.
// The test is skipped when the variable is unset.
func openTestStore(t *testing.T, dimension int, optFns ...func(o *Options)) *Store {
	t.Helper()

	dsn := os.Getenv("VECMATCH_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VECMATCH_POSTGRES_DSN not set")
	}

	ctx := context.Background()

	s, err := New(ctx, dsn, dimension, append([]func(o *Options){func(o *Options) {
		o.Table = "vectors_test"
	}}, optFns...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.db.ExecContext(ctx, `DROP TABLE IF EXISTS vectors_test`)
		s.Close()
	})

	return s
}

func TestIntegrationCRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	rec := store.Record{
		ID:       "a",
		Vector:   []float32{1, 2},
		Metadata: metadata.Document{"category": metadata.String("tech")},
	}

	require.NoError(t, s.Insert(ctx, rec))

	var dup *store.ErrDuplicateID
	require.ErrorAs(t, s.Insert(ctx, rec), &dup)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec.Vector, got.Vector)
	category, ok := got.Metadata["category"].AsString()
	require.True(t, ok)
	assert.Equal(t, "tech", category)

	rec.Vector = []float32{3, 4}
	require.NoError(t, s.Update(ctx, rec))

	require.NoError(t, s.Delete(ctx, "a"))

	var nf *store.ErrNotFound
	require.ErrorAs(t, s.Delete(ctx, "a"), &nf)
}

func TestIntegrationQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 2)

	require.NoError(t, s.BulkLoad(ctx, []store.Record{
		{ID: "a", Vector: []float32{0, 0}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: metadata.Document{"category": metadata.String("tech")}},
		{ID: "c", Vector: []float32{0, 1}},
	}))

	results, err := s.Query(ctx, []float32{0.1, 0.1}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Equal(t, "b", results[2].ID)

	filtered, err := s.Query(ctx, []float32{0, 0}, 3, &index.SearchOptions{
		Filter: metadata.NewFilterSet(metadata.Eq("category", metadata.String("tech"))),
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "b", filtered[0].ID)
}
