package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/izure1/mvcc-api/backend"
	"github.com/izure1/mvcc-api/engine"
)

func TestFileStoreReadWriteDeleteExists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := backend.NewFileStore[string](dir)
	require.NoError(t, err)

	_, err = fs.Read(ctx, "greeting")
	require.ErrorIs(t, err, engine.ErrBackendKeyNotFound)

	require.NoError(t, fs.Write(ctx, "greeting", "hello"))
	ok, err := fs.Exists(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	v, err := fs.Read(ctx, "greeting")
	require.NoError(t, err)
	require.Equal(t, "hello", v)

	require.NoError(t, fs.Delete(ctx, "greeting"))
	ok, err = fs.Exists(ctx, "greeting")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStoreSurvivesReopenAtSameDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	first, err := backend.NewFileStore[int](dir)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, "count", 42))

	second, err := backend.NewFileStore[int](dir)
	require.NoError(t, err)
	v, err := second.Read(ctx, "count")
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestFileStoreEscapesKeysUnsafeForFilenames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := backend.NewFileStore[string](dir)
	require.NoError(t, err)
	require.NoError(t, fs.Write(ctx, "a/b/../c", "v"))
	v, err := fs.Read(ctx, "a/b/../c")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestFileStoreDeleteOnMissingKeyIsNoOp(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs, err := backend.NewFileStore[string](dir)
	require.NoError(t, err)
	require.NoError(t, fs.Delete(ctx, "absent"))
}
