package engine

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// criticalSection is the single write critical section a Root's commits
// serialize through. Reads never acquire it — a reader's snapshot is
// pinned to its own snapshot version and the undo cache holds whatever
// pre-images it needs, so it never contends with an in-flight commit.
type criticalSection interface {
	Lock(ctx context.Context) error
	Unlock()
}

// syncSection backs the synchronous flavour: single-threaded cooperative,
// no internal locking. Correctness under concurrent callers is the
// caller's own responsibility.
type syncSection struct{}

func (syncSection) Lock(ctx context.Context) error { return ctx.Err() }
func (syncSection) Unlock()                        {}

// asyncSection backs the asynchronous flavour: a binary semaphore every
// commit acquires before touching the Root's shared state (active-tx set,
// version index, undo cache, backend). A weighted semaphore of 1 rather
// than a plain sync.Mutex because Lock must honor ctx cancellation — a
// commit blocked behind another commit can still be abandoned via its
// context, which a Mutex.Lock cannot do.
type asyncSection struct {
	sem *semaphore.Weighted
}

func newAsyncSection() *asyncSection {
	return &asyncSection{sem: semaphore.NewWeighted(1)}
}

func (s *asyncSection) Lock(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

func (s *asyncSection) Unlock() {
	s.sem.Release(1)
}
