package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, s.Put(ctx, "snapshots/a", []byte("first")))
	require.NoError(t, s.Put(ctx, "snapshots/b", []byte("second")))
	require.NoError(t, s.Put(ctx, "other/c", []byte("third")))

	data, err := s.Get(ctx, "snapshots/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), data)

	// Overwrite replaces content.
	require.NoError(t, s.Put(ctx, "snapshots/a", []byte("updated")))
	data, err = s.Get(ctx, "snapshots/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("updated"), data)

	names, err := s.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"snapshots/a", "snapshots/b"}, names)

	require.NoError(t, s.Delete(ctx, "snapshots/a"))
	_, err = s.Get(ctx, "snapshots/a")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Deleting a missing blob is not an error.
	require.NoError(t, s.Delete(ctx, "snapshots/a"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("hello")
	require.NoError(t, s.Put(ctx, "a", data))
	data[0] = 'X'

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}
