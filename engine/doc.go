// Package engine implements a snapshot-isolated MVCC transaction overlay on
// top of a pluggable key/value backend.
//
// A single long-lived Root owns the backend, the global version counter, the
// per-key version index and the undo cache. Nested transactions form a tree
// under the Root; each sees an immutable snapshot of the backend as of its
// creation and merges its buffered writes upward into its parent (or into the
// backend, for a direct child of Root) on Commit.
package engine
