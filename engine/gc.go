package engine

import "math"

// minLiveSnapshot is the oldest live snapshot version: the minimum
// snapshot version over the active-transaction set, or the current global
// version if that set is empty.
func (r *Root[K, V]) minLiveSnapshot() uint64 {
	r.activeMu.RLock()
	defer r.activeMu.RUnlock()

	if len(r.active) == 0 {
		return r.globalVersion.Load()
	}

	min := uint64(math.MaxUint64)
	for _, tx := range r.active {
		if tx.snapshotVersion < min {
			min = tx.snapshotVersion
		}
	}
	return min
}

// gc runs after a successful Root commit: drop undo cache entries no live
// snapshot can still need, and prune version index entries down to the
// single watermark record each key needs to answer visibility for the
// oldest live snapshot. Called opportunistically, inline, at the end of
// every successful mergeRoot — there is no background goroutine.
func (r *Root[K, V]) gc() {
	minLive := r.minLiveSnapshot()
	r.undo.gc(minLive)
	r.versionIndex.prune(minLive)
	r.logger.Debug("gc completed", "minLiveSnapshot", minLive)
}
