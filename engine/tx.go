package engine

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Transaction is the operation surface shared by Root and Nested — the same
// signatures serve both the long-lived root and any nested scope in its
// tree.
type Transaction[K comparable, V any] interface {
	Create(ctx context.Context, key K, value V) error
	Write(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
	Read(ctx context.Context, key K) (V, bool, error)
	Exists(ctx context.Context, key K) (bool, error)
	Commit(ctx context.Context, label ...any) (*Result[K, V], error)
	Rollback(ctx context.Context) *Result[K, V]
	CreateNested(ctx context.Context) (*Nested[K, V], error)

	// SnapshotVersion returns the global version this transaction's reads
	// are pinned to. For Root this tracks the current global version live;
	// for a Nested transaction it is fixed at creation.
	SnapshotVersion() uint64
}

// txState is the per-transaction state machine: Open -> Closed.
type txState uint32

const (
	txOpen txState = iota
	txClosed
)

// mergeParent is the internal view a merge needs of whatever a child is
// merging into: its buffers, its own buffer-aware read (for reporting a
// conflict's parent_value), whether it is already closed, and its own
// parent (to walk the AncestorCommitted chain). Both *Root and *Nested
// implement it.
type mergeParent[K comparable, V any] interface {
	mergeScope() *scope[K, V]
	mergeRead(ctx context.Context, key K) (V, bool, error)
	isClosed() bool
	parentOf() (mergeParent[K, V], bool)
}

// ancestorClosed walks p and its ancestors looking for one already Closed,
// implementing the check required before any commit work begins: no
// ancestor may have already transitioned to closed. Root is never Closed by
// its own Commit, so the walk naturally stops being able to fail once it
// reaches Root.
func ancestorClosed[K comparable, V any](p mergeParent[K, V]) bool {
	for {
		if p.isClosed() {
			return true
		}
		next, ok := p.parentOf()
		if !ok {
			return false
		}
		p = next
	}
}

// Nested is a single-shot child transaction: it becomes Closed on Commit or
// Rollback. Its snapshot version and snapshot local version are fixed at
// creation and never change thereafter.
type Nested[K comparable, V any] struct {
	id     uint64
	root   *Root[K, V]
	parent mergeParent[K, V]

	snapshotVersion      uint64
	snapshotLocalVersion uint64

	scope *scope[K, V]
	state atomic.Uint32
}

func newNested[K comparable, V any](root *Root[K, V], parent mergeParent[K, V], snapshotVersion, snapshotLocalVersion uint64) *Nested[K, V] {
	id := root.nextTxID.Add(1)
	n := &Nested[K, V]{
		id:                   id,
		root:                 root,
		parent:               parent,
		snapshotVersion:      snapshotVersion,
		snapshotLocalVersion: snapshotLocalVersion,
		scope:                newScope[K, V](),
	}
	root.registerActive(n)
	return n
}

func (n *Nested[K, V]) isClosed() bool { return txState(n.state.Load()) == txClosed }

func (n *Nested[K, V]) fallbackRead(ctx context.Context, key K) (V, bool, error) {
	return n.root.snapshotRead(ctx, key, n.snapshotVersion)
}

func (n *Nested[K, V]) fallbackExists(ctx context.Context, key K) (bool, error) {
	return n.root.snapshotExists(ctx, key, n.snapshotVersion)
}

func (n *Nested[K, V]) mergeScope() *scope[K, V] { return n.scope }

func (n *Nested[K, V]) mergeRead(ctx context.Context, key K) (V, bool, error) {
	return readValue(ctx, n.scope, n.fallbackRead, key)
}

func (n *Nested[K, V]) parentOf() (mergeParent[K, V], bool) { return n.parent, true }

// SnapshotVersion implements Transaction.
func (n *Nested[K, V]) SnapshotVersion() uint64 { return n.snapshotVersion }

func (n *Nested[K, V]) Create(ctx context.Context, key K, value V) error {
	if n.isClosed() {
		return ErrAlreadyCommitted
	}
	return gateCreate(ctx, n.scope, n.fallbackRead, key, value)
}

func (n *Nested[K, V]) Write(ctx context.Context, key K, value V) error {
	if n.isClosed() {
		return ErrAlreadyCommitted
	}
	return gateWrite(ctx, n.scope, n.fallbackRead, key, value)
}

func (n *Nested[K, V]) Delete(ctx context.Context, key K) error {
	if n.isClosed() {
		return ErrAlreadyCommitted
	}
	return gateDelete(ctx, n.scope, n.fallbackRead, key)
}

func (n *Nested[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	if n.isClosed() {
		var zero V
		return zero, false, ErrAlreadyCommitted
	}
	return readValue(ctx, n.scope, n.fallbackRead, key)
}

func (n *Nested[K, V]) Exists(ctx context.Context, key K) (bool, error) {
	if n.isClosed() {
		return false, ErrAlreadyCommitted
	}
	return existsValue(ctx, n.scope, n.fallbackExists, key)
}

func (n *Nested[K, V]) CreateNested(ctx context.Context) (*Nested[K, V], error) {
	if n.isClosed() {
		return nil, ErrAlreadyCommitted
	}
	return newNested[K, V](n.root, n, n.snapshotVersion, n.scope.localVersion), nil
}

// Commit implements the nested-merge path. It always transitions the scope
// to Closed, even when the merge fails with Conflict or AncestorCommitted —
// a Nested transaction is single-shot and must not be retried at the same
// snapshot.
func (n *Nested[K, V]) Commit(ctx context.Context, label ...any) (*Result[K, V], error) {
	if !n.state.CompareAndSwap(uint32(txOpen), uint32(txClosed)) {
		return nil, ErrAlreadyCommitted
	}
	defer n.root.unregisterActive(n.id)

	if err := n.root.section.Lock(ctx); err != nil {
		return nil, err
	}
	defer n.root.section.Unlock()

	res := newResult[K, V](pickLabel(n.root, label))
	created, updated, deleted := classify(n.scope)

	if ancestorClosed[K, V](n.parent) {
		res.Success = false
		res.Error = &ResultError{Kind: KindAncestorCommitted, Message: "ancestor transaction already committed"}
		res.Created, res.Updated, res.Deleted = created, updated, deleted
		return res, nil
	}

	// A direct child of Root merges straight into the backend (global
	// conflict detection, version bump, GC); any deeper nested child folds
	// its buffers up into its parent's, pending that parent's own commit.
	var outcome *mergeOutcome[K, V]
	var err error
	root, isRootChild := n.parent.(*Root[K, V])
	if isRootChild {
		outcome, err = root.mergeRoot(ctx, n.scope, n.snapshotVersion)
		if err != nil {
			return nil, err // already a *ResultError via backendError
		}
	} else {
		outcome, err = mergeNested(ctx, n.parent.mergeScope(), n.parent.mergeRead, n.scope, n.snapshotLocalVersion)
		if err != nil {
			return nil, backendError(err)
		}
	}

	if outcome.conflict != nil {
		res.Success = false
		res.Error = &ResultError{Kind: KindConflict, Message: fmt.Sprintf("conflict on key %v", outcome.conflict.Key)}
		res.Conflict = outcome.conflict
		n.root.logger.Warn("commit conflict", "key", outcome.conflict.Key)
		if !isRootChild {
			// On conflict against a Nested parent, the classified lists
			// equal the child's would-be contribution, so callers can see
			// what was lost. A Root-level conflict reports empty lists.
			res.Created, res.Updated, res.Deleted = created, updated, deleted
		}
		return res, nil
	}

	res.Success = true
	res.Created, res.Updated, res.Deleted = created, updated, deleted
	return res, nil
}

// Rollback discards all local buffers. It never performs backend I/O and
// never fails.
func (n *Nested[K, V]) Rollback(ctx context.Context) *Result[K, V] {
	if n.state.CompareAndSwap(uint32(txOpen), uint32(txClosed)) {
		n.root.unregisterActive(n.id)
	}
	res := newResult[K, V](nil)
	res.Success = true
	return res
}

func pickLabel[K comparable, V any](r *Root[K, V], label []any) any {
	if len(label) > 0 {
		return label[0]
	}
	if r.labelGen != nil {
		return r.labelGen()
	}
	return nil
}
