package heap

import (
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// Node is a node held in memory.
type Node struct {
	Substates codec.NodeSubstates
}

type lockState struct {
	readers int
	writer  bool
}

// Heap holds the nodes created in the transaction that were not pushed to
// the track. It is not safe for concurrent use; the kernel accesses it from
// a single call frame at a time.
type Heap struct {
	nodes map[substate.NodeId]*Node
	locks map[string]*lockState
	// lockedNodes counts the open locks per node
	lockedNodes map[substate.NodeId]int
}

func New() *Heap {
	return &Heap{
		nodes:       make(map[substate.NodeId]*Node),
		locks:       make(map[string]*lockState),
		lockedNodes: make(map[substate.NodeId]int),
	}
}

// CreateNode adds a node with all its substates.
func (h *Heap) CreateNode(id substate.NodeId, substates codec.NodeSubstates) error {
	if _, ok := h.nodes[id]; ok {
		return errors.NewNodeAlreadyExistsError(id)
	}
	if substates == nil {
		substates = codec.NodeSubstates{}
	}
	h.nodes[id] = &Node{Substates: substates}
	return nil
}

// Node returns a node without removing it.
func (h *Heap) Node(id substate.NodeId) (*Node, error) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, errors.NewNodeNotFoundError(id)
	}
	return node, nil
}

// Contains returns true if the node is held by the heap.
func (h *Heap) Contains(id substate.NodeId) bool {
	_, ok := h.nodes[id]
	return ok
}

func (h *Heap) partition(
	id substate.NodeId,
	partition substate.PartitionNumber,
) (codec.PartitionSubstates, error) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, errors.NewNodeNotFoundError(id)
	}
	substates, ok := node.Substates[partition]
	if !ok {
		return nil, errors.NewPartitionNotFoundError(id, partition)
	}
	return substates, nil
}

// GetSubstate returns the value of a substate.
func (h *Heap) GetSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) (codec.IndexedValue, error) {
	substates, err := h.partition(id, partition)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	value, ok := substates[string(key.DBKey())]
	if !ok {
		return codec.IndexedValue{}, errors.NewSubstateNotFoundError(substate.NewSubstateId(id, partition, key))
	}
	return value, nil
}

// SetSubstate writes a substate of an existing partition.
func (h *Heap) SetSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	value codec.IndexedValue,
) error {
	substates, err := h.partition(id, partition)
	if err != nil {
		return err
	}
	substates[string(key.DBKey())] = value
	return nil
}

// DeleteSubstate removes a substate and returns its value, or nil if it did
// not exist.
func (h *Heap) DeleteSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) (*codec.IndexedValue, error) {
	substates, err := h.partition(id, partition)
	if err != nil {
		return nil, err
	}
	dbKey := string(key.DBKey())
	value, ok := substates[dbKey]
	if !ok {
		return nil, nil
	}
	delete(substates, dbKey)
	return &value, nil
}

// ScanSubstates returns at most count values of the partition in key order.
func (h *Heap) ScanSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	substates, err := h.partition(id, partition)
	if err != nil {
		return nil, err
	}

	keys := substates.SortedKeys()
	if uint32(len(keys)) > count {
		keys = keys[:count]
	}

	values := make([]codec.IndexedValue, 0, len(keys))
	for _, key := range keys {
		values = append(values, substates[key])
	}
	return values, nil
}

// TakeSubstates removes and returns at most count values of the partition in
// key order. Locked substates cannot be taken.
func (h *Heap) TakeSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	substates, err := h.partition(id, partition)
	if err != nil {
		return nil, err
	}

	keys := substates.SortedKeys()
	if uint32(len(keys)) > count {
		keys = keys[:count]
	}

	for _, key := range keys {
		if _, locked := h.locks[lockKey(id, partition, key)]; locked {
			return nil, errors.NewSubstateLockedError(
				substate.NewSubstateId(id, partition, substate.MustSubstateKeyFromDBKey([]byte(key))))
		}
	}

	values := make([]codec.IndexedValue, 0, len(keys))
	for _, key := range keys {
		values = append(values, substates[key])
		delete(substates, key)
	}
	return values, nil
}

// RemoveNode takes a node out of the heap, to drop it or to persist it.
func (h *Heap) RemoveNode(id substate.NodeId) (*Node, error) {
	node, ok := h.nodes[id]
	if !ok {
		return nil, errors.NewNodeNotFoundError(id)
	}
	if h.lockedNodes[id] > 0 {
		return nil, errors.NewCantMoveLockedNodeError(id)
	}
	delete(h.nodes, id)
	return node, nil
}

// Nodes returns the ids of all nodes in the heap in ascending order.
func (h *Heap) Nodes() []substate.NodeId {
	ids := make([]substate.NodeId, 0, len(h.nodes))
	for id := range h.nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b substate.NodeId) int { return a.Compare(b) })
	return ids
}

// IsNodeLocked returns true if any substate of the node is locked.
func (h *Heap) IsNodeLocked(id substate.NodeId) bool {
	return h.lockedNodes[id] > 0
}

// IsSubstateLocked returns true if the substate has an open lock.
func (h *Heap) IsSubstateLocked(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) bool {
	_, ok := h.locks[lockKey(id, partition, string(key.DBKey()))]
	return ok
}

// AcquireLock records a lock on a substate of a heap node. A write lock
// excludes any other lock; a read lock excludes a write lock.
func (h *Heap) AcquireLock(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) error {
	if _, err := h.GetSubstate(id, partition, key); err != nil {
		return err
	}

	lk := lockKey(id, partition, string(key.DBKey()))
	state, ok := h.locks[lk]
	if !ok {
		state = &lockState{}
	}

	if state.writer || (flags.IsMutable() && state.readers > 0) {
		return errors.NewSubstateLockedError(substate.NewSubstateId(id, partition, key))
	}

	if flags.IsMutable() {
		state.writer = true
	} else {
		state.readers++
	}
	h.locks[lk] = state
	h.lockedNodes[id]++
	return nil
}

// ReleaseLock releases a lock recorded with AcquireLock.
func (h *Heap) ReleaseLock(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) error {
	lk := lockKey(id, partition, string(key.DBKey()))
	state, ok := h.locks[lk]
	if !ok {
		return errors.NewInvariantViolationf("releasing unlocked heap substate %s", substate.NewSubstateId(id, partition, key))
	}

	if flags.IsMutable() {
		state.writer = false
	} else {
		state.readers--
	}
	if !state.writer && state.readers == 0 {
		delete(h.locks, lk)
	}

	h.lockedNodes[id]--
	if h.lockedNodes[id] == 0 {
		delete(h.lockedNodes, id)
	}
	return nil
}

func lockKey(id substate.NodeId, partition substate.PartitionNumber, dbKey string) string {
	return string(substate.EncodeSubstateId(id, partition, []byte(dbKey)))
}
