package idalloc

import (
	"encoding/binary"
	"math"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// Allocator issues node ids for one transaction. Ids are derived from the
// transaction hash and a transaction wide counter, so the same transaction
// produces the same sequence of ids on every execution.
//
// Every call frame depth keeps the ids allocated in it that were not used
// yet; a frame must use every id it allocated before it is popped.
type Allocator struct {
	txHash    [32]byte
	next      uint64
	frames    []map[substate.NodeId]struct{}
	allocated []substate.NodeId
}

func New(txHash [32]byte) *Allocator {
	return &Allocator{
		txHash: txHash,
		frames: []map[substate.NodeId]struct{}{{}},
	}
}

// AllocateNodeId returns a fresh node id of the given entity type.
func (a *Allocator) AllocateNodeId(entityType substate.EntityType) (substate.NodeId, error) {
	if !entityType.IsValid() {
		return substate.NodeId{}, errors.NewIdAllocationErrorf("unknown entity type %s", entityType)
	}
	if a.next > math.MaxUint32 {
		return substate.NodeId{}, errors.NewIdAllocationErrorf("node id space exhausted")
	}

	var seed [32 + 4]byte
	copy(seed[:32], a.txHash[:])
	binary.LittleEndian.PutUint32(seed[32:], uint32(a.next))
	a.next++

	hash := blake2b.Sum256(seed[:])
	var rid [substate.NodeIdRIDLength]byte
	copy(rid[:], hash[:substate.NodeIdRIDLength])

	id := substate.NewNodeId(entityType, rid)
	a.track(id)
	return id, nil
}

// AllocateVirtualNodeId registers an id derived outside the allocator, such
// as a virtual address, so that it can be used to create a node in the
// current frame.
func (a *Allocator) AllocateVirtualNodeId(id substate.NodeId) {
	a.track(id)
}

func (a *Allocator) track(id substate.NodeId) {
	a.frames[len(a.frames)-1][id] = struct{}{}
	a.allocated = append(a.allocated, id)
}

// TakeNodeId consumes an id allocated in the current frame.
func (a *Allocator) TakeNodeId(id substate.NodeId) error {
	current := a.frames[len(a.frames)-1]
	if _, ok := current[id]; !ok {
		return errors.NewInvalidIdErrorf(id, "not allocated in the current call frame")
	}
	delete(current, id)
	return nil
}

// Push opens a new call frame depth.
func (a *Allocator) Push() {
	a.frames = append(a.frames, map[substate.NodeId]struct{}{})
}

// Pop closes the current call frame depth. It fails if ids allocated in this
// depth were never used. The root depth cannot be popped.
func (a *Allocator) Pop() error {
	if len(a.frames) == 1 {
		return errors.NewIdAllocationErrorf("cannot pop the root frame")
	}

	unused := a.Unused()
	a.frames = a.frames[:len(a.frames)-1]
	if len(unused) > 0 {
		return errors.NewIdAllocationErrorf("%d node ids left unused: %v", len(unused), unused)
	}
	return nil
}

// Depth returns the number of pushed call frames. It is zero at transaction
// root.
func (a *Allocator) Depth() int {
	return len(a.frames) - 1
}

// Unused returns the ids allocated in the current frame that were not
// taken yet, in ascending order.
func (a *Allocator) Unused() []substate.NodeId {
	current := a.frames[len(a.frames)-1]
	unused := make([]substate.NodeId, 0, len(current))
	for id := range current {
		unused = append(unused, id)
	}
	slices.SortFunc(unused, func(x, y substate.NodeId) int { return x.Compare(y) })
	return unused
}

// Allocated returns every id handed out so far, in allocation order.
func (a *Allocator) Allocated() []substate.NodeId {
	return slices.Clone(a.allocated)
}
