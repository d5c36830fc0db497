// Package module defines the hooks the kernel calls around every state
// transition and the pipeline running them.
package module

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/model/substate"
)

// API is the part of the kernel modules can query from their hooks.
type API interface {
	CurrentDepth() int
	CurrentActor() (actor.Actor, bool)
	ExecutionMode() actor.ExecutionMode
	Modules() *Pipeline
}

// Module observes kernel operations. Returning an error from a hook aborts
// the operation and the transaction. Hooks must not assume they run after
// another module's hook unless that module comes first in the pipeline.
type Module interface {
	Name() string

	OnInit(api API) error
	OnTeardown(api API) error

	BeforeInvoke(api API, identifier string, inputSize int) error
	AfterInvoke(api API, outputSize int) error

	BeforePushFrame(api API, callee actor.Actor, msg callframe.Message, args codec.IndexedValue) error
	OnExecutionStart(api API, caller *actor.Actor) error
	OnExecutionFinish(api API, caller *actor.Actor, msg callframe.Message) error
	AfterPopFrame(api API) error

	OnAllocateNodeId(api API, entityType substate.EntityType) error
	BeforeCreateNode(api API, id substate.NodeId, substates codec.NodeSubstates) error
	AfterCreateNode(api API, id substate.NodeId) error
	BeforeDropNode(api API, id substate.NodeId) error
	AfterDropNode(api API) error

	BeforeLockSubstate(
		api API,
		id substate.NodeId,
		partition substate.PartitionNumber,
		key substate.SubstateKey,
		flags substate.LockFlags,
	) error
	AfterLockSubstate(api API, handle callframe.LockHandle, size int) error
	OnDropLock(api API, handle callframe.LockHandle) error
	OnReadSubstate(api API, handle callframe.LockHandle, size int) error
	OnWriteSubstate(api API, handle callframe.LockHandle, size int) error

	// Bulk operations bypass locks. Sizes are the number of bytes written,
	// or read back, by the operation.
	BeforeSetSubstate(
		api API,
		id substate.NodeId,
		partition substate.PartitionNumber,
		key substate.SubstateKey,
		size int,
	) error
	OnTakeSubstates(api API, id substate.NodeId, partition substate.PartitionNumber, count int, size int) error
	OnScanSubstates(api API, id substate.NodeId, partition substate.PartitionNumber, count int, size int) error
}

// NoopModule implements every hook as a no-op. Modules embed it and
// override the hooks they need.
type NoopModule struct{}

var _ Module = NoopModule{}

func (NoopModule) Name() string { return "noop" }

func (NoopModule) OnInit(API) error     { return nil }
func (NoopModule) OnTeardown(API) error { return nil }

func (NoopModule) BeforeInvoke(API, string, int) error { return nil }
func (NoopModule) AfterInvoke(API, int) error          { return nil }

func (NoopModule) BeforePushFrame(API, actor.Actor, callframe.Message, codec.IndexedValue) error {
	return nil
}
func (NoopModule) OnExecutionStart(API, *actor.Actor) error                     { return nil }
func (NoopModule) OnExecutionFinish(API, *actor.Actor, callframe.Message) error { return nil }
func (NoopModule) AfterPopFrame(API) error                                      { return nil }

func (NoopModule) OnAllocateNodeId(API, substate.EntityType) error                  { return nil }
func (NoopModule) BeforeCreateNode(API, substate.NodeId, codec.NodeSubstates) error { return nil }
func (NoopModule) AfterCreateNode(API, substate.NodeId) error                       { return nil }
func (NoopModule) BeforeDropNode(API, substate.NodeId) error                        { return nil }
func (NoopModule) AfterDropNode(API) error                                          { return nil }

func (NoopModule) BeforeLockSubstate(
	API,
	substate.NodeId,
	substate.PartitionNumber,
	substate.SubstateKey,
	substate.LockFlags,
) error {
	return nil
}
func (NoopModule) AfterLockSubstate(API, callframe.LockHandle, int) error { return nil }
func (NoopModule) OnDropLock(API, callframe.LockHandle) error             { return nil }
func (NoopModule) OnReadSubstate(API, callframe.LockHandle, int) error    { return nil }
func (NoopModule) OnWriteSubstate(API, callframe.LockHandle, int) error   { return nil }

func (NoopModule) BeforeSetSubstate(
	API,
	substate.NodeId,
	substate.PartitionNumber,
	substate.SubstateKey,
	int,
) error {
	return nil
}
func (NoopModule) OnTakeSubstates(API, substate.NodeId, substate.PartitionNumber, int, int) error {
	return nil
}
func (NoopModule) OnScanSubstates(API, substate.NodeId, substate.PartitionNumber, int, int) error {
	return nil
}
