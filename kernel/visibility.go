package kernel

import (
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// VisibilityChecker decides which locks and drops code running in a mode may
// request, on top of the visibility rules of the call frame.
type VisibilityChecker interface {
	CheckLock(
		mode ExecutionMode,
		actor *Actor,
		frame *callframe.CallFrame,
		id substate.NodeId,
		partition substate.PartitionNumber,
		key substate.SubstateKey,
		flags substate.LockFlags,
	) error

	// CheckPartition is called for bulk operations, which address a whole
	// partition rather than one locked substate. Set and take operations
	// check with mutable flags, scans read only.
	CheckPartition(
		mode ExecutionMode,
		actor *Actor,
		frame *callframe.CallFrame,
		id substate.NodeId,
		partition substate.PartitionNumber,
		flags substate.LockFlags,
	) error

	CheckDrop(mode ExecutionMode, actor *Actor, id substate.NodeId, info codec.TypeInfo) error
}

// DefaultVisibility restricts client code only.
//
// Client code may lock mutably the receiver of its method, the nodes it
// owns or reaches through its open locks, and key value stores. Nodes seen
// through a direct access reference can only be locked by their receiver.
// Client code may only drop the nodes of its own blueprint.
type DefaultVisibility struct{}

var _ VisibilityChecker = DefaultVisibility{}

func (v DefaultVisibility) CheckLock(
	mode ExecutionMode,
	actor *Actor,
	frame *callframe.CallFrame,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) error {
	if v.allowed(mode, actor, frame, id, partition, flags) {
		return nil
	}
	return errors.NewInvalidSubstateAccessError(mode.String(), actorName(actor), id, partition, key, flags)
}

func (v DefaultVisibility) CheckPartition(
	mode ExecutionMode,
	actor *Actor,
	frame *callframe.CallFrame,
	id substate.NodeId,
	partition substate.PartitionNumber,
	flags substate.LockFlags,
) error {
	if v.allowed(mode, actor, frame, id, partition, flags) {
		return nil
	}
	return errors.NewInvalidPartitionAccessError(mode.String(), actorName(actor), id, partition, flags)
}

func (DefaultVisibility) allowed(
	mode ExecutionMode,
	actor *Actor,
	frame *callframe.CallFrame,
	id substate.NodeId,
	partition substate.PartitionNumber,
	flags substate.LockFlags,
) bool {
	if mode != ModeClient {
		return true
	}

	isReceiver := actor != nil && actor.IsReceiver(id)
	if kind, ok := frame.NodeVisibility(id); ok && kind == callframe.RefDirectAccess && !isReceiver {
		return false
	}
	if !flags.IsMutable() {
		return true
	}
	if partition == substate.TypeInfoPartition {
		return false
	}
	return isReceiver || frame.IsOwnedOrLocked(id) || id.EntityType().IsKeyValueStore()
}

func actorName(actor *Actor) string {
	if actor == nil {
		return "root"
	}
	return actor.String()
}

func (DefaultVisibility) CheckDrop(mode ExecutionMode, actor *Actor, id substate.NodeId, info codec.TypeInfo) error {
	if mode != ModeClient || info.Kind == codec.ObjectKindKeyValueStore {
		return nil
	}
	if actor != nil && actor.Blueprint == info.Blueprint {
		return nil
	}
	return errors.NewInvalidDropNodeAccessError(id, actorName(actor))
}
