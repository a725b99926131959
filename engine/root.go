package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Root owns the persistent Backend, the global version counter, the version
// index, the undo cache and the set of active (nested) transactions. It
// never transitions to Closed: its own Commit persists buffered changes and
// resets its buffers, but Root itself remains open and usable.
type Root[K comparable, V any] struct {
	backend Backend[K, V]

	globalVersion atomic.Uint64
	versionIndex  *versionIndex[K]
	undo          *undoCache[K, V]

	active   map[uint64]*Nested[K, V]
	activeMu sync.RWMutex
	nextTxID atomic.Uint64

	section  criticalSection
	logger   *slog.Logger
	labelGen func() any

	scope *scope[K, V]
}

// NewRoot constructs a Root over the given Backend. The caller owns its
// lifecycle; there is nothing to Close, since the engine starts no
// background goroutines (GC runs inline, opportunistically, after each
// successful commit — see gc.go).
func NewRoot[K comparable, V any](backend Backend[K, V], opts ...Option) *Root[K, V] {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	var section criticalSection = syncSection{}
	if cfg.async {
		section = newAsyncSection()
	}

	return &Root[K, V]{
		backend:      backend,
		versionIndex: newVersionIndex[K](),
		undo:         newUndoCache[K, V](),
		active:       make(map[uint64]*Nested[K, V]),
		section:      section,
		logger:       cfg.logger,
		labelGen:     cfg.labelGen,
		scope:        newScope[K, V](),
	}
}

func (r *Root[K, V]) registerActive(n *Nested[K, V]) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	r.active[n.id] = n
}

func (r *Root[K, V]) unregisterActive(id uint64) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	delete(r.active, id)
}

// SnapshotVersion implements Transaction: for Root it tracks the current
// global version live, since Root always sees the latest committed state.
func (r *Root[K, V]) SnapshotVersion() uint64 { return r.globalVersion.Load() }

func (r *Root[K, V]) isClosed() bool { return false }

func (r *Root[K, V]) parentOf() (mergeParent[K, V], bool) { return nil, false }

func (r *Root[K, V]) mergeScope() *scope[K, V] { return r.scope }

func (r *Root[K, V]) mergeRead(ctx context.Context, key K) (V, bool, error) {
	return readValue(ctx, r.scope, r.liveRead, key)
}

func (r *Root[K, V]) liveRead(ctx context.Context, key K) (V, bool, error) {
	return r.snapshotRead(ctx, key, r.globalVersion.Load())
}

func (r *Root[K, V]) liveExists(ctx context.Context, key K) (bool, error) {
	return r.snapshotExists(ctx, key, r.globalVersion.Load())
}

func (r *Root[K, V]) Create(ctx context.Context, key K, value V) error {
	return gateCreate(ctx, r.scope, r.liveRead, key, value)
}

func (r *Root[K, V]) Write(ctx context.Context, key K, value V) error {
	return gateWrite(ctx, r.scope, r.liveRead, key, value)
}

func (r *Root[K, V]) Delete(ctx context.Context, key K) error {
	return gateDelete(ctx, r.scope, r.liveRead, key)
}

func (r *Root[K, V]) Read(ctx context.Context, key K) (V, bool, error) {
	return readValue(ctx, r.scope, r.liveRead, key)
}

func (r *Root[K, V]) Exists(ctx context.Context, key K) (bool, error) {
	return existsValue(ctx, r.scope, r.liveExists, key)
}

func (r *Root[K, V]) CreateNested(ctx context.Context) (*Nested[K, V], error) {
	return newNested[K, V](r, r, r.globalVersion.Load(), r.scope.localVersion), nil
}

// Commit implements the Root merge: global conflict detection against the
// version index, then apply to the backend under the write critical
// section. A BackendError propagates out as an exceptional failure; a
// Conflict is reported inside the returned Result with empty classified
// lists, per the "empty at the Root" rule. Either way Root's buffers are
// reset — except on BackendError, where the backend is treated as the sole
// atomicity boundary and already-applied Version Index entries are left in
// place (see DESIGN.md, Open Question 1).
func (r *Root[K, V]) Commit(ctx context.Context, label ...any) (*Result[K, V], error) {
	if err := r.section.Lock(ctx); err != nil {
		return nil, err
	}
	defer r.section.Unlock()

	res := newResult[K, V](pickLabel(r, label))
	created, updated, deleted := classify(r.scope)

	snapshotVersion := r.globalVersion.Load()
	outcome, err := r.mergeRoot(ctx, r.scope, snapshotVersion)
	if err != nil {
		return nil, err
	}

	if outcome.conflict != nil {
		res.Success = false
		res.Error = &ResultError{Kind: KindConflict, Message: "write-write conflict against persisted state"}
		res.Conflict = outcome.conflict
		r.logger.Warn("commit conflict", "key", outcome.conflict.Key)
		r.scope.reset()
		return res, nil
	}

	res.Success = true
	res.Created, res.Updated, res.Deleted = created, updated, deleted
	r.scope.reset()
	return res, nil
}

// Rollback discards Root's buffers and resets its state, without touching
// the backend. Unlike a Nested transaction, Root itself is never marked
// Closed.
func (r *Root[K, V]) Rollback(ctx context.Context) *Result[K, V] {
	r.scope.reset()
	res := newResult[K, V](nil)
	res.Success = true
	return res
}
