// Package callframe keeps the activation record of one invocation: the
// nodes it owns, the nodes it can see and the locks it holds.
package callframe

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/heap"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

// RefKind tells how a frame sees a node it does not own.
type RefKind uint8

const (
	// RefNormal references can be used by any operation and copied to other
	// frames.
	RefNormal RefKind = iota + 1
	// RefDirectAccess references were granted for a narrow set of
	// operations on an internal node.
	RefDirectAccess
)

func (k RefKind) String() string {
	switch k {
	case RefNormal:
		return "Normal"
	case RefDirectAccess:
		return "DirectAccess"
	}
	return fmt.Sprintf("RefKind(%d)", uint8(k))
}

// CallFrame is not safe for concurrent use.
type CallFrame struct {
	depth int

	// owned holds the nodes owned directly by the frame. Nodes owned by
	// those nodes are not listed.
	owned map[substate.NodeId]struct{}
	// refs only grows
	refs map[substate.NodeId]RefKind

	locks    map[LockHandle]*openLock
	nextLock LockHandle
	// lockedChildren counts the open locks through which a child node is
	// reachable
	lockedChildren map[substate.NodeId]int
}

func newFrame(depth int) *CallFrame {
	return &CallFrame{
		depth:          depth,
		owned:          make(map[substate.NodeId]struct{}),
		refs:           make(map[substate.NodeId]RefKind),
		locks:          make(map[LockHandle]*openLock),
		lockedChildren: make(map[substate.NodeId]int),
	}
}

// NewRootFrame creates the frame spanning the transaction.
func NewRootFrame() *CallFrame {
	return newFrame(0)
}

// NewChildFrame creates the frame of an invocation made from parent. The
// nodes listed in msg move from parent to the child, the references are
// copied with the kind the parent holds them with.
func NewChildFrame(parent *CallFrame, h *heap.Heap, msg Message) (*CallFrame, error) {
	child := newFrame(parent.depth + 1)

	for _, id := range msg.NodeRefsToCopy {
		kind, ok := parent.NodeVisibility(id)
		if !ok {
			return nil, errors.NewNodeNotVisibleError(id)
		}
		child.AddRef(id, kind)
	}

	err := moveNodes(parent, child, h, msg.NodesToMove)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// UpdateUpstream moves the nodes listed in msg from a returning frame to its
// caller. Global references are handed to the caller as Normal; internal
// references the caller cannot already see are rejected.
func UpdateUpstream(from *CallFrame, to *CallFrame, h *heap.Heap, msg Message) error {
	for _, id := range msg.NodeRefsToCopy {
		if _, ok := from.NodeVisibility(id); !ok {
			return errors.NewNodeNotVisibleError(id)
		}
	}

	err := moveNodes(from, to, h, msg.NodesToMove)
	if err != nil {
		return err
	}

	for _, id := range msg.NodeRefsToCopy {
		if _, ok := to.NodeVisibility(id); ok {
			continue
		}
		if !id.IsGlobal() {
			return errors.NewInvalidUpstreamReferenceError(id)
		}
		to.AddRef(id, RefNormal)
	}
	return nil
}

func moveNodes(from *CallFrame, to *CallFrame, h *heap.Heap, ids []substate.NodeId) error {
	for _, id := range ids {
		if !from.IsOwned(id) {
			return errors.NewNodeNotOwnedError(id)
		}
		if h.IsNodeLocked(id) {
			return errors.NewCantMoveLockedNodeError(id)
		}
		delete(from.owned, id)
		to.owned[id] = struct{}{}
	}
	return nil
}

// Depth returns the call depth. The root frame is at depth 0.
func (f *CallFrame) Depth() int {
	return f.depth
}

// IsOwned returns true if the frame owns id directly.
func (f *CallFrame) IsOwned(id substate.NodeId) bool {
	_, ok := f.owned[id]
	return ok
}

// OwnedNodes returns the nodes owned directly by the frame in ascending
// order.
func (f *CallFrame) OwnedNodes() []substate.NodeId {
	ids := maps.Keys(f.owned)
	slices.SortFunc(ids, func(a, b substate.NodeId) int { return a.Compare(b) })
	return ids
}

// NodeVisibility returns how the frame sees id. Owned nodes and children
// reachable through an open lock are seen as Normal.
func (f *CallFrame) NodeVisibility(id substate.NodeId) (RefKind, bool) {
	if f.IsOwned(id) || f.lockedChildren[id] > 0 {
		return RefNormal, true
	}
	kind, ok := f.refs[id]
	return kind, ok
}

// IsOwnedOrLocked returns true for nodes the frame owns directly or reaches
// through one of its open locks.
func (f *CallFrame) IsOwnedOrLocked(id substate.NodeId) bool {
	return f.IsOwned(id) || f.lockedChildren[id] > 0
}

// AddRef makes id visible. A node that is already visible keeps the kind it
// was first seen with.
func (f *CallFrame) AddRef(id substate.NodeId, kind RefKind) {
	if _, ok := f.NodeVisibility(id); ok {
		return
	}
	f.refs[id] = kind
}

// absorbReferences makes the global nodes referenced by a value read by the
// frame visible.
func (f *CallFrame) absorbReferences(value codec.IndexedValue) {
	for _, id := range value.References() {
		if id.IsGlobal() {
			f.AddRef(id, RefNormal)
		}
	}
}

// checkReferences verifies that state written by the frame only references
// visible global nodes. References in skip were already held by the
// substate.
func (f *CallFrame) checkReferences(refs []substate.NodeId, skip []substate.NodeId) error {
	for _, id := range refs {
		if slices.Contains(skip, id) {
			continue
		}
		if !id.IsGlobal() {
			return errors.NewNonGlobalReferenceNotValidError(id)
		}
		if _, ok := f.NodeVisibility(id); !ok {
			return errors.NewNodeNotVisibleError(id)
		}
	}
	return nil
}

func (f *CallFrame) checkMovable(h *heap.Heap, ids []substate.NodeId) error {
	for _, id := range ids {
		if !f.IsOwned(id) {
			return errors.NewNodeNotOwnedError(id)
		}
		if h.IsNodeLocked(id) {
			return errors.NewCantMoveLockedNodeError(id)
		}
	}
	return nil
}

// CreateNode creates a node out of substates. Nodes owned by the substates
// must be owned by the frame and move into the new node. With pushToStore
// the node and everything it owns is written to the track and the frame
// keeps a reference to it; otherwise the node goes to the heap, owned by the
// frame.
func (f *CallFrame) CreateNode(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	substates codec.NodeSubstates,
	pushToStore bool,
) error {
	children := substates.OwnedNodes()
	err := f.checkMovable(h, children)
	if err != nil {
		return err
	}
	err = f.checkReferences(substates.References(), nil)
	if err != nil {
		return err
	}

	for _, child := range children {
		delete(f.owned, child)
	}

	if !pushToStore {
		err = h.CreateNode(id, substates)
		if err != nil {
			return err
		}
		f.owned[id] = struct{}{}
		return nil
	}

	for _, child := range children {
		err = persist(h, tr, child)
		if err != nil {
			return err
		}
	}
	err = tr.CreateNode(id, substates)
	if err != nil {
		return err
	}
	f.AddRef(id, RefNormal)
	return nil
}

// persist moves a heap node and everything it owns to the track.
func persist(h *heap.Heap, tr *track.Track, id substate.NodeId) error {
	node, err := h.RemoveNode(id)
	if err != nil {
		return err
	}
	for _, child := range node.Substates.OwnedNodes() {
		err = persist(h, tr, child)
		if err != nil {
			return err
		}
	}
	return tr.CreateNode(id, node.Substates)
}

// DropNode removes a node owned by the frame from the heap. The node must
// not be locked and must not own other nodes.
func (f *CallFrame) DropNode(h *heap.Heap, id substate.NodeId) (*heap.Node, error) {
	if !f.IsOwned(id) {
		return nil, errors.NewNodeNotOwnedError(id)
	}
	if h.IsNodeLocked(id) {
		return nil, errors.NewCantDropLockedNodeError(id)
	}

	node, err := h.Node(id)
	if err != nil {
		return nil, err
	}
	if children := node.Substates.OwnedNodes(); len(children) > 0 {
		return nil, errors.NewDropNodeOwnsChildrenError(id, children)
	}

	node, err = h.RemoveNode(id)
	if err != nil {
		return nil, err
	}
	delete(f.owned, id)
	return node, nil
}
