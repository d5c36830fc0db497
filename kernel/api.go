package kernel

import (
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/model/substate"
)

// NodeAPI creates and drops nodes of the current frame.
type NodeAPI interface {
	// AllocateNodeId returns a fresh id the current frame must use to create
	// a node before it returns.
	AllocateNodeId(entityType substate.EntityType) (substate.NodeId, error)

	// AllocateVirtualNodeId registers an id derived from a virtual address.
	// It is only available to virtualizers.
	AllocateVirtualNodeId(id substate.NodeId) error

	// CreateNode creates a node owned by the current frame. Nodes with a
	// global id are pushed to the store, and the frame keeps a reference to
	// them instead.
	CreateNode(id substate.NodeId, substates codec.NodeSubstates) error

	// DropNode removes a node owned by the current frame and returns its
	// substates.
	DropNode(id substate.NodeId) (codec.NodeSubstates, error)

	// TypeInfo returns the type info of a node.
	TypeInfo(id substate.NodeId) (codec.TypeInfo, error)

	NodeVisibility(id substate.NodeId) (callframe.RefKind, bool)
}

// SubstateAPI reads and writes substates of the nodes visible to the current
// frame.
type SubstateAPI interface {
	LockSubstate(
		id substate.NodeId,
		partition substate.PartitionNumber,
		key substate.SubstateKey,
		flags substate.LockFlags,
	) (callframe.LockHandle, error)
	ReadSubstate(handle callframe.LockHandle) (codec.IndexedValue, error)
	WriteSubstate(handle callframe.LockHandle, value codec.IndexedValue) error
	DropLock(handle callframe.LockHandle) error
	LockInfo(handle callframe.LockHandle) (callframe.LockInfo, error)

	SetSubstate(
		id substate.NodeId,
		partition substate.PartitionNumber,
		key substate.SubstateKey,
		value codec.IndexedValue,
	) error
	TakeSubstate(
		id substate.NodeId,
		partition substate.PartitionNumber,
		key substate.SubstateKey,
	) (*codec.IndexedValue, error)
	ScanSubstates(id substate.NodeId, partition substate.PartitionNumber, count uint32) ([]codec.IndexedValue, error)
	TakeSubstates(id substate.NodeId, partition substate.PartitionNumber, count uint32) ([]codec.IndexedValue, error)
	ScanSortedSubstates(id substate.NodeId, partition substate.PartitionNumber, count uint32) ([]codec.IndexedValue, error)
}

// KernelAPI is what executors can do with the kernel.
type KernelAPI interface {
	module.API
	NodeAPI
	SubstateAPI

	// Invoke runs an invocation in a new frame and returns its output.
	Invoke(invocation Invocation) (codec.IndexedValue, error)

	// ExecuteInMode runs f in mode. Client code may only enter the system
	// mode.
	ExecuteInMode(mode ExecutionMode, f func() error) error

	// TransactionHash returns the hash of the running transaction.
	TransactionHash() [32]byte
}
