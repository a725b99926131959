package engine

import "context"

// mergeOutcome carries either a detected conflict or the classified
// contribution of a successful merge. The classified lists always reflect
// the committing scope's OWN buffers (via classify), independent of how the
// merge folded them into its target.
type mergeOutcome[K comparable, V any] struct {
	conflict *Conflict[K, V]

	created []KV[K, V]
	updated []KV[K, V]
	deleted []KV[K, V]
}

// mergeNested implements the nested-merge-into-parent protocol: sibling
// conflict detection against the parent's per-key local version map,
// followed by buffer integration under a single freshly allocated parent
// local-version tick.
func mergeNested[K comparable, V any](
	ctx context.Context,
	parent *scope[K, V],
	parentRead snapshotReadFunc[K, V],
	child *scope[K, V],
	childSnapshotLocalVersion uint64,
) (*mergeOutcome[K, V], error) {
	touched := make(map[K]struct{}, len(child.writeBuf)+len(child.deleteBuf))
	for k := range child.writeBuf {
		touched[k] = struct{}{}
	}
	for k := range child.deleteBuf {
		touched[k] = struct{}{}
	}

	for k := range touched {
		lastTouch, ok := parent.localVerMap[k]
		if !ok || lastTouch <= childSnapshotLocalVersion {
			continue
		}
		// Some later sibling, or the parent itself, touched k after this
		// child forked: fail with Conflict, no partial merge.
		parentValue, _, err := parentRead(ctx, k)
		if err != nil {
			return nil, err
		}
		childValue := child.writeBuf[k] // zero value for a pure delete
		return &mergeOutcome[K, V]{
			conflict: &Conflict[K, V]{Key: k, ParentValue: parentValue, ChildValue: childValue},
		}, nil
	}

	vstar := parent.localVersion + 1

	for k, v := range child.writeBuf {
		parent.writeBuf[k] = v
		delete(parent.deleteBuf, k)
		parent.localVerMap[k] = vstar
		if _, createdInChild := child.createdSet[k]; createdInChild {
			parent.createdSet[k] = struct{}{}
		}
	}
	for k := range child.deleteBuf {
		parent.deleteBuf[k] = struct{}{}
		delete(parent.writeBuf, k)
		delete(parent.createdSet, k)
		parent.localVerMap[k] = vstar
		if dv, ok := child.deletedVal[k]; ok {
			parent.deletedVal[k] = dv
		}
		if _, ok := child.origExisted[k]; ok {
			parent.origExisted[k] = struct{}{}
		}
	}
	parent.localVersion = vstar

	created, updated, deleted := classify(child)
	return &mergeOutcome[K, V]{created: created, updated: updated, deleted: deleted}, nil
}

// mergeRoot implements the Root merge: global conflict detection against
// the version index, then atomic apply to the backend — new version
// allocation, undo-cache rotation of superseded pre-images, the backend
// write/delete itself, and a version-index append — followed by an
// opportunistic GC pass.
func (r *Root[K, V]) mergeRoot(ctx context.Context, committer *scope[K, V], snapshotVersion uint64) (*mergeOutcome[K, V], error) {
	for k := range committer.writeBuf {
		if conflict, err := r.detectGlobalConflict(ctx, committer, k, snapshotVersion); err != nil {
			return nil, backendError(err)
		} else if conflict != nil {
			return &mergeOutcome[K, V]{conflict: conflict}, nil
		}
	}
	for k := range committer.deleteBuf {
		if conflict, err := r.detectGlobalConflict(ctx, committer, k, snapshotVersion); err != nil {
			return nil, backendError(err)
		} else if conflict != nil {
			return &mergeOutcome[K, V]{conflict: conflict}, nil
		}
	}

	newVersion := r.globalVersion.Load() + 1

	for k, v := range committer.writeBuf {
		if err := r.rotateAndApplyWrite(ctx, k, v, newVersion); err != nil {
			return nil, backendError(err)
		}
	}
	for k := range committer.deleteBuf {
		if err := r.rotateAndApplyDelete(ctx, k, newVersion); err != nil {
			return nil, backendError(err)
		}
	}

	r.globalVersion.Store(newVersion)

	created, updated, deleted := classify(committer)
	r.logger.Debug("root commit applied",
		"version", newVersion,
		"created", len(created),
		"updated", len(updated),
		"deleted", len(deleted),
	)

	r.gc()

	return &mergeOutcome[K, V]{created: created, updated: updated, deleted: deleted}, nil
}

// detectGlobalConflict implements the Root-level conflict check: if the
// version index's last recorded version for k exceeds the committer's
// snapshot version, another transaction persisted a change since this
// snapshot.
func (r *Root[K, V]) detectGlobalConflict(ctx context.Context, committer *scope[K, V], key K, snapshotVersion uint64) (*Conflict[K, V], error) {
	last, ok := r.versionIndex.lastVersion(key)
	if !ok || last <= snapshotVersion {
		return nil, nil
	}

	var parentValue V
	if exists, err := r.backend.Exists(ctx, key); err != nil {
		return nil, err
	} else if exists {
		v, err := r.backend.Read(ctx, key)
		if err != nil {
			return nil, err
		}
		parentValue = v
	}

	childValue := committer.writeBuf[key] // zero value for a delete
	return &Conflict[K, V]{Key: key, ParentValue: parentValue, ChildValue: childValue}, nil
}

// rotateAndApplyWrite pushes the backend's current value (if any) into the
// undo cache under the new version, writes the new value, and appends the
// version-index record.
func (r *Root[K, V]) rotateAndApplyWrite(ctx context.Context, key K, value V, newVersion uint64) error {
	if err := r.rotatePreImage(ctx, key, newVersion); err != nil {
		return err
	}
	if err := r.backend.Write(ctx, key, value); err != nil {
		return err
	}
	r.versionIndex.append(key, newVersion, true)
	return nil
}

func (r *Root[K, V]) rotateAndApplyDelete(ctx context.Context, key K, newVersion uint64) error {
	if err := r.rotatePreImage(ctx, key, newVersion); err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, key); err != nil {
		return err
	}
	r.versionIndex.append(key, newVersion, false)
	return nil
}

func (r *Root[K, V]) rotatePreImage(ctx context.Context, key K, newVersion uint64) error {
	exists, err := r.backend.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	old, err := r.backend.Read(ctx, key)
	if err != nil {
		return err
	}
	r.undo.push(key, old, newVersion)
	return nil
}
