package engine

// KV is a reported (key, value) pair in a Result's created/updated/deleted
// lists.
type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// Conflict is the {key, parent_value, child_value} triple reported for a
// write-write clash detected at merge.
type Conflict[K comparable, V any] struct {
	Key         K
	ParentValue V
	ChildValue  V
}

// Result is returned by every Commit and Rollback. Label is opaque: callers
// of Commit may pass a string, a uuid.UUID, or nothing, in which case the
// Root's configured label generator fills one in. Rollback results carry a
// nil Label.
type Result[K comparable, V any] struct {
	Label   any
	Success bool
	Error   *ResultError

	// Conflict is set only when Error.Kind == KindConflict.
	Conflict *Conflict[K, V]

	Created []KV[K, V]
	Updated []KV[K, V]
	Deleted []KV[K, V]
}

func newResult[K comparable, V any](label any) *Result[K, V] {
	return &Result[K, V]{
		Label:   label,
		Created: []KV[K, V]{},
		Updated: []KV[K, V]{},
		Deleted: []KV[K, V]{},
	}
}

// classify implements the created/updated/deleted classification rule: a
// Write Buffer key is "created" if it is in the Created Set, else
// "updated"; a Delete Buffer key is "deleted" only if it is in the
// Originally-Existed Set (create-then-delete inside the same scope must
// not be reported).
func classify[K comparable, V any](s *scope[K, V]) ([]KV[K, V], []KV[K, V], []KV[K, V]) {
	created := make([]KV[K, V], 0, len(s.createdSet))
	updated := make([]KV[K, V], 0, len(s.writeBuf))
	for k, v := range s.writeBuf {
		if _, ok := s.createdSet[k]; ok {
			created = append(created, KV[K, V]{Key: k, Value: v})
		} else {
			updated = append(updated, KV[K, V]{Key: k, Value: v})
		}
	}

	deleted := make([]KV[K, V], 0, len(s.deleteBuf))
	for k := range s.deleteBuf {
		if _, ok := s.origExisted[k]; ok {
			deleted = append(deleted, KV[K, V]{Key: k, Value: s.deletedVal[k]})
		}
	}
	return created, updated, deleted
}
