package errors

import (
	"github.com/onflow/flow-kernel/model/substate"
)

// NewNodeNotVisibleError indicates a node the current call frame can neither
// own nor see.
func NewNodeNotVisibleError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeNodeNotVisible,
		"node %s is not visible to the current call frame",
		id)
}

func IsNodeNotVisibleError(err error) bool {
	return HasErrorCode(err, ErrCodeNodeNotVisible)
}

func NewLockNotFoundError(handle uint32) CodedError {
	return NewCodedError(
		ErrCodeLockNotFound,
		"lock handle %d not found in the current call frame",
		handle)
}

func IsLockNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodeLockNotFound)
}

// NewNodeNotOwnedError indicates an ownership transfer of a node the frame
// does not own.
func NewNodeNotOwnedError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeNodeNotOwned,
		"node %s is not owned by the current call frame",
		id)
}

func IsNodeNotOwnedError(err error) bool {
	return HasErrorCode(err, ErrCodeNodeNotOwned)
}

func NewCantMoveLockedNodeError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeCantMoveLockedNode,
		"node %s has open locks and cannot be moved",
		id)
}

func IsCantMoveLockedNodeError(err error) bool {
	return HasErrorCode(err, ErrCodeCantMoveLockedNode)
}

func NewLockNotMutableError(handle uint32) CodedError {
	return NewCodedError(
		ErrCodeLockNotMutable,
		"lock handle %d is read only",
		handle)
}

func IsLockNotMutableError(err error) bool {
	return HasErrorCode(err, ErrCodeLockNotMutable)
}

// NewStoredNodeChangedError indicates an attempt to take an owned child out
// of a persisted node.
func NewStoredNodeChangedError(id substate.NodeId, child substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeStoredNodeChanged,
		"owned node %s cannot be removed from stored node %s",
		child,
		id)
}

func IsStoredNodeChangedError(err error) bool {
	return HasErrorCode(err, ErrCodeStoredNodeChanged)
}

// NewOwnedNodeInBulkOperationError indicates a value owning nodes passed to,
// or returned from, an operation that bypasses locking.
func NewOwnedNodeInBulkOperationError(id substate.NodeId, operation string) CodedError {
	return NewCodedError(
		ErrCodeOwnedNodeInBulkOperation,
		"%s on node %s cannot move owned nodes",
		operation,
		id)
}

func IsOwnedNodeInBulkOperationError(err error) bool {
	return HasErrorCode(err, ErrCodeOwnedNodeInBulkOperation)
}

// NewInvalidUpstreamReferenceError indicates that a callee returned a
// reference its caller can not see and that is not a global address.
func NewInvalidUpstreamReferenceError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeInvalidUpstreamReference,
		"reference to %s cannot be returned to the caller",
		id)
}

func IsInvalidUpstreamReferenceError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidUpstreamReference)
}

// NewPartitionNotFoundError indicates an access to a partition the node was
// not created with.
func NewPartitionNotFoundError(id substate.NodeId, partition substate.PartitionNumber) CodedError {
	return NewCodedError(
		ErrCodePartitionNotFound,
		"node %s has no partition %d",
		id,
		partition)
}

func IsPartitionNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodePartitionNotFound)
}

func NewNodeAlreadyExistsError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeNodeAlreadyExists,
		"node %s already exists",
		id)
}

func IsNodeAlreadyExistsError(err error) bool {
	return HasErrorCode(err, ErrCodeNodeAlreadyExists)
}

// NewDropNodeOwnsChildrenError indicates a drop of a node whose substates
// still own other nodes.
func NewDropNodeOwnsChildrenError(id substate.NodeId, children []substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeDropNodeOwnsChildren,
		"node %s still owns %d nodes and cannot be dropped: %v",
		id,
		len(children),
		children)
}

func IsDropNodeOwnsChildrenError(err error) bool {
	return HasErrorCode(err, ErrCodeDropNodeOwnsChildren)
}

func NewCantDropLockedNodeError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeCantDropLockedNode,
		"node %s has open locks and cannot be dropped",
		id)
}

func IsCantDropLockedNodeError(err error) bool {
	return HasErrorCode(err, ErrCodeCantDropLockedNode)
}

// NewNonGlobalReferenceNotValidError indicates a value holding a reference to
// an internal node. Internal nodes can only be owned, never referenced from
// a substate.
func NewNonGlobalReferenceNotValidError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeNonGlobalReferenceNotValid,
		"substate values cannot reference internal node %s",
		id)
}

func IsNonGlobalReferenceNotValidError(err error) bool {
	return HasErrorCode(err, ErrCodeNonGlobalReferenceNotValid)
}
