package callframe

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/heap"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

// LockHandle identifies a lock held by a frame.
type LockHandle = uint32

type LockInfo struct {
	NodeId    substate.NodeId
	Partition substate.PartitionNumber
	Key       substate.SubstateKey
	Flags     substate.LockFlags
}

type openLock struct {
	LockInfo

	onHeap      bool
	trackHandle track.LockHandle
	// children are the nodes owned by the locked value
	children []substate.NodeId
}

// AcquireLock locks a substate of a visible node, in the heap if the node
// is there and in the track otherwise. virtualize is passed on to the track.
// Nodes owned by the locked value are visible while the lock is open.
func (f *CallFrame) AcquireLock(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
	virtualize func() (codec.IndexedValue, bool),
) (LockHandle, error) {
	if _, ok := f.NodeVisibility(id); !ok {
		return 0, errors.NewNodeNotVisibleError(id)
	}

	l := &openLock{
		LockInfo: LockInfo{
			NodeId:    id,
			Partition: partition,
			Key:       key,
			Flags:     flags,
		},
		onHeap: h.Contains(id),
	}

	var value codec.IndexedValue
	if l.onHeap {
		err := h.AcquireLock(id, partition, key, flags)
		if err != nil {
			return 0, err
		}
		value, err = h.GetSubstate(id, partition, key)
		if err != nil {
			return 0, err
		}
	} else {
		handle, err := tr.AcquireLockVirtualize(id, partition, key, flags, virtualize)
		if err != nil {
			return 0, err
		}
		l.trackHandle = handle
		value, err = tr.ReadSubstate(handle)
		if err != nil {
			return 0, err
		}
	}

	l.children = slices.Clone(value.OwnedNodes())
	for _, child := range l.children {
		f.lockedChildren[child]++
	}
	f.absorbReferences(value)

	f.nextLock++
	f.locks[f.nextLock] = l
	return f.nextLock, nil
}

func (f *CallFrame) lock(handle LockHandle) (*openLock, error) {
	l, ok := f.locks[handle]
	if !ok {
		return nil, errors.NewLockNotFoundError(handle)
	}
	return l, nil
}

// LockInfo returns what a lock was opened on.
func (f *CallFrame) LockInfo(handle LockHandle) (LockInfo, error) {
	l, err := f.lock(handle)
	if err != nil {
		return LockInfo{}, err
	}
	return l.LockInfo, nil
}

// OpenLocks returns the number of locks held by the frame.
func (f *CallFrame) OpenLocks() int {
	return len(f.locks)
}

// ReadSubstate returns the current value of a locked substate.
func (f *CallFrame) ReadSubstate(h *heap.Heap, tr *track.Track, handle LockHandle) (codec.IndexedValue, error) {
	l, err := f.lock(handle)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	return l.read(h, tr)
}

func (l *openLock) read(h *heap.Heap, tr *track.Track) (codec.IndexedValue, error) {
	if l.onHeap {
		return h.GetSubstate(l.NodeId, l.Partition, l.Key)
	}
	return tr.ReadSubstate(l.trackHandle)
}

// WriteSubstate replaces the value of a substate locked as mutable.
//
// Nodes the new value owns that the old one did not must be owned by the
// frame; they move into the substate, and to the track if the substate is
// stored. Nodes the old value owned that the new one does not return to the
// frame, which is only possible for heap substates.
func (f *CallFrame) WriteSubstate(
	h *heap.Heap,
	tr *track.Track,
	handle LockHandle,
	value codec.IndexedValue,
) error {
	l, err := f.lock(handle)
	if err != nil {
		return err
	}
	if !l.Flags.IsMutable() {
		return errors.NewLockNotMutableError(handle)
	}

	current, err := l.read(h, tr)
	if err != nil {
		return err
	}

	added := difference(value.OwnedNodes(), current.OwnedNodes())
	removed := difference(current.OwnedNodes(), value.OwnedNodes())

	err = f.checkMovable(h, added)
	if err != nil {
		return err
	}
	if !l.onHeap && len(removed) > 0 {
		return errors.NewStoredNodeChangedError(l.NodeId, removed[0])
	}
	err = f.checkReferences(value.References(), current.References())
	if err != nil {
		return err
	}

	for _, id := range added {
		delete(f.owned, id)
		if !l.onHeap {
			err = persist(h, tr, id)
			if err != nil {
				return err
			}
		}
	}
	for _, id := range removed {
		f.owned[id] = struct{}{}
	}

	if l.onHeap {
		err = h.SetSubstate(l.NodeId, l.Partition, l.Key, value)
	} else {
		err = tr.UpdateSubstate(l.trackHandle, value)
	}
	if err != nil {
		return err
	}

	f.releaseChildren(l)
	l.children = slices.Clone(value.OwnedNodes())
	for _, child := range l.children {
		f.lockedChildren[child]++
	}
	return nil
}

func (f *CallFrame) releaseChildren(l *openLock) {
	for _, child := range l.children {
		f.lockedChildren[child]--
		if f.lockedChildren[child] <= 0 {
			delete(f.lockedChildren, child)
		}
	}
	l.children = nil
}

// ReleaseLock releases a lock held by the frame.
func (f *CallFrame) ReleaseLock(h *heap.Heap, tr *track.Track, handle LockHandle) error {
	l, err := f.lock(handle)
	if err != nil {
		return err
	}
	delete(f.locks, handle)
	f.releaseChildren(l)

	if l.onHeap {
		return h.ReleaseLock(l.NodeId, l.Partition, l.Key, l.Flags)
	}
	return tr.ReleaseLock(l.trackHandle)
}

// ReleaseAll releases every lock held by the frame in handle order.
func (f *CallFrame) ReleaseAll(h *heap.Heap, tr *track.Track) error {
	handles := maps.Keys(f.locks)
	slices.Sort(handles)
	for _, handle := range handles {
		err := f.ReleaseLock(h, tr, handle)
		if err != nil {
			return err
		}
	}
	return nil
}

// difference returns the ids of a not in b.
func difference(a []substate.NodeId, b []substate.NodeId) []substate.NodeId {
	var out []substate.NodeId
	for _, id := range a {
		if !slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}
