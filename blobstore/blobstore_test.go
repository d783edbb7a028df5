package blobstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write("a.jpg", []byte("image bytes")))

	exists, err := store.Exists("a.jpg")
	require.NoError(t, err)
	require.True(t, exists)

	data, err := store.Read("a.jpg")
	require.NoError(t, err)
	require.Equal(t, []byte("image bytes"), data)

	require.NoError(t, store.Remove("a.jpg"))

	exists, err = store.Exists("a.jpg")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRemoveIsIdempotent(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write("a.jpg", []byte("x")))
	require.NoError(t, store.Remove("a.jpg"))
	// Second remove of the same name must be a no-op, not an error.
	require.NoError(t, store.Remove("a.jpg"))
}

func TestExistsOnMissingFile(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	exists, err := store.Exists("never-written.png")
	require.NoError(t, err)
	require.False(t, exists)
}
