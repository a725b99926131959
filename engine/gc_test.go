package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// memBackend is a tiny in-package stand-in so these white-box tests don't
// need to import the backend package (which imports engine, and would be a
// needless indirection for exercising unexported internals).
type memBackend[K comparable, V any] struct {
	data map[K]V
}

func newMemBackend[K comparable, V any]() *memBackend[K, V] {
	return &memBackend[K, V]{data: make(map[K]V)}
}

func (m *memBackend[K, V]) Read(_ context.Context, k K) (V, error) {
	v, ok := m.data[k]
	if !ok {
		var zero V
		return zero, ErrBackendKeyNotFound
	}
	return v, nil
}
func (m *memBackend[K, V]) Write(_ context.Context, k K, v V) error { m.data[k] = v; return nil }
func (m *memBackend[K, V]) Delete(_ context.Context, k K) error     { delete(m.data, k); return nil }
func (m *memBackend[K, V]) Exists(_ context.Context, k K) (bool, error) {
	_, ok := m.data[k]
	return ok, nil
}

// TestGCPrunesUndoCacheBelowOldestLiveSnapshot checks the "GC safety"
// property directly against the undo cache and version index.
func TestGCPrunesUndoCacheBelowOldestLiveSnapshot(t *testing.T) {
	ctx := context.Background()
	root := NewRoot[string, string](newMemBackend[string, string]())

	require.NoError(t, root.Create(ctx, "h", "v0"))
	res, err := root.Commit(ctx)
	require.NoError(t, err)
	require.True(t, res.Success)

	reader, err := root.CreateNested(ctx)
	require.NoError(t, err)
	readerSnapshot := reader.SnapshotVersion()

	for i := 0; i < 10; i++ {
		w, err := root.CreateNested(ctx)
		require.NoError(t, err)
		require.NoError(t, w.Write(ctx, "h", "next"))
		res, err := w.Commit(ctx)
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	// The reader's snapshot must still resolve correctly: an undo cache
	// entry superseding it at a version > readerSnapshot must survive GC.
	val, ok, err := root.snapshotRead(ctx, "h", readerSnapshot)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v0", val)

	// Every undo entry at or below the oldest live snapshot should have
	// been collected.
	root.undo.mu.Lock()
	for _, e := range root.undo.entries["h"] {
		require.Greater(t, e.supersededAt, readerSnapshot)
	}
	root.undo.mu.Unlock()

	reader.Rollback(ctx)

	// With the reader gone, the next commit collects every entry at or
	// below the new oldest live snapshot (the committing writer's own).
	w, err := root.CreateNested(ctx)
	require.NoError(t, err)
	wSnapshot := w.SnapshotVersion()
	require.NoError(t, w.Write(ctx, "h", "last"))
	res, err = w.Commit(ctx)
	require.NoError(t, err)
	require.True(t, res.Success)

	root.undo.mu.Lock()
	require.Len(t, root.undo.entries["h"], 1)
	require.Greater(t, root.undo.entries["h"][0].supersededAt, wSnapshot)
	root.undo.mu.Unlock()
}

func TestVersionIndexResolve(t *testing.T) {
	vi := newVersionIndex[string]()
	vi.append("k", 1, true)
	vi.append("k", 3, false)
	vi.append("k", 5, true)

	target, next, hasEntries := vi.resolve("k", 2)
	require.True(t, hasEntries)
	require.NotNil(t, target)
	require.Equal(t, uint64(1), target.version)
	require.True(t, target.exists)
	require.NotNil(t, next)
	require.Equal(t, uint64(3), next.version)

	target, next, hasEntries = vi.resolve("k", 10)
	require.True(t, hasEntries)
	require.NotNil(t, target)
	require.Equal(t, uint64(5), target.version)
	require.Nil(t, next)

	_, _, hasEntries = vi.resolve("missing", 10)
	require.False(t, hasEntries)
}

func TestVersionIndexPruneKeepsWatermark(t *testing.T) {
	vi := newVersionIndex[string]()
	vi.append("k", 1, true)
	vi.append("k", 2, false)
	vi.append("k", 3, true)
	vi.append("k", 4, true)

	vi.prune(2)

	recs := vi.entries["k"]
	require.Len(t, recs, 3)
	require.Equal(t, uint64(2), recs[0].version) // watermark retained
	require.Equal(t, uint64(3), recs[1].version)
	require.Equal(t, uint64(4), recs[2].version)
}

func TestUndoCacheGCDropsEmptyKeys(t *testing.T) {
	u := newUndoCache[string, string]()
	u.push("k", "v1", 2)
	u.push("k", "v2", 4)

	u.gc(3)
	require.True(t, u.hasKey("k"))
	v, ok := u.lookup("k", 4)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	u.gc(4)
	require.False(t, u.hasKey("k"))
}
