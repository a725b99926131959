package engine

import (
	"context"
	"fmt"
)

// snapshotRead implements Root's snapshot reader for (key, snapshot).
func (r *Root[K, V]) snapshotRead(ctx context.Context, key K, snapshot uint64) (V, bool, error) {
	target, next, hasEntries := r.versionIndex.resolve(key, snapshot)
	if !hasEntries && !r.undo.hasKey(key) {
		// Unmanaged: the key exists on disk but never passed through the
		// engine (e.g. after a restart) — defer to the backend's live state.
		return r.backendRead(ctx, key)
	}
	if target == nil || !target.exists {
		var zero V
		return zero, false, nil
	}
	if next == nil {
		// No later record: the live backend value is correct.
		return r.backendRead(ctx, key)
	}
	value, ok := r.undo.lookup(key, next.version)
	if !ok {
		var zero V
		return zero, false, fmt.Errorf("engine: missing undo cache entry for superseding version %d", next.version)
	}
	return value, true, nil
}

// snapshotExists implements exists(k): the same resolution as snapshotRead,
// but it never needs an undo cache lookup.
func (r *Root[K, V]) snapshotExists(ctx context.Context, key K, snapshot uint64) (bool, error) {
	target, _, hasEntries := r.versionIndex.resolve(key, snapshot)
	if !hasEntries && !r.undo.hasKey(key) {
		return r.backendExists(ctx, key)
	}
	return target != nil && target.exists, nil
}

func (r *Root[K, V]) backendRead(ctx context.Context, key K) (V, bool, error) {
	exists, err := r.backend.Exists(ctx, key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	if !exists {
		var zero V
		return zero, false, nil
	}
	v, err := r.backend.Read(ctx, key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return v, true, nil
}

func (r *Root[K, V]) backendExists(ctx context.Context, key K) (bool, error) {
	return r.backend.Exists(ctx, key)
}
