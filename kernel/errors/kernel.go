package errors

import (
	"github.com/onflow/flow-kernel/model/substate"
)

// NewInvalidModeTransitionError indicates a switch between execution modes
// that the kernel does not allow.
func NewInvalidModeTransitionError(from, to string) CodedError {
	return NewCodedError(
		ErrCodeInvalidModeTransition,
		"invalid execution mode transition from %s to %s",
		from,
		to)
}

func IsInvalidModeTransitionError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidModeTransition)
}

// NewInvalidIdErrorf indicates a node id that was not allocated, or does not
// match the substates supplied for it.
func NewInvalidIdErrorf(id substate.NodeId, msg string, args ...interface{}) CodedError {
	return NewCodedError(
		ErrCodeInvalidId,
		"invalid node id %s: "+msg,
		append([]interface{}{id}, args...)...)
}

func IsInvalidIdError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidId)
}

// NewIdAllocationErrorf indicates that the id allocator is exhausted or was
// left with unused ids at the end of a call frame.
func NewIdAllocationErrorf(msg string, args ...interface{}) CodedError {
	return NewCodedError(
		ErrCodeIdAllocationError,
		"id allocation failed: "+msg,
		args...)
}

func IsIdAllocationError(err error) bool {
	return HasErrorCode(err, ErrCodeIdAllocationError)
}

// NewDropNodeFailure indicates a node that is still owned when its call frame
// ends and cannot be dropped automatically.
func NewDropNodeFailure(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeDropNodeFailure,
		"node %s (%s) is left owned at the end of the call frame",
		id,
		id.EntityType())
}

func IsDropNodeFailure(err error) bool {
	return HasErrorCode(err, ErrCodeDropNodeFailure)
}

// NewInvalidDropNodeAccessError indicates that the current actor is not
// allowed to drop the node.
func NewInvalidDropNodeAccessError(id substate.NodeId, actor string) CodedError {
	return NewCodedError(
		ErrCodeInvalidDropNodeAccess,
		"actor %s cannot drop node %s",
		actor,
		id)
}

func IsInvalidDropNodeAccessError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidDropNodeAccess)
}

// NewInvalidSubstateAccessError indicates that the current mode and actor
// are not allowed to lock the substate with the requested flags.
func NewInvalidSubstateAccessError(
	mode string,
	actor string,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) CodedError {
	return NewCodedError(
		ErrCodeInvalidSubstateAccess,
		"actor %s in %s mode cannot lock %s/%d/%s with flags %s",
		actor,
		mode,
		id,
		partition,
		key,
		flags)
}

func IsInvalidSubstateAccessError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidSubstateAccess)
}

// NewInvalidPartitionAccessError indicates that the current mode and actor
// are not allowed to run a bulk operation on the partition.
func NewInvalidPartitionAccessError(
	mode string,
	actor string,
	id substate.NodeId,
	partition substate.PartitionNumber,
	flags substate.LockFlags,
) CodedError {
	return NewCodedError(
		ErrCodeInvalidSubstateAccess,
		"actor %s in %s mode cannot access partition %s/%d with flags %s",
		actor,
		mode,
		id,
		partition,
		flags)
}

// NewInvalidDirectAccessError indicates a reference to an internal node that
// is not on the direct access allow-list.
func NewInvalidDirectAccessError(id substate.NodeId, msg string, args ...interface{}) CodedError {
	return NewCodedError(
		ErrCodeInvalidDirectAccess,
		"invalid direct access to %s: "+msg,
		append([]interface{}{id}, args...)...)
}

func IsInvalidDirectAccessError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidDirectAccess)
}

// NewMaxCallDepthLimitExceededError indicates that an invocation would push
// a call frame beyond the configured depth.
func NewMaxCallDepthLimitExceededError(limit int) CodedError {
	return NewCodedError(
		ErrCodeMaxCallDepthLimitExceeded,
		"max call depth (%d) exceeded",
		limit)
}

func IsMaxCallDepthLimitExceededError(err error) bool {
	return HasErrorCode(err, ErrCodeMaxCallDepthLimitExceeded)
}

// NewNodeNotFoundError indicates a referenced node that does not exist.
func NewNodeNotFoundError(id substate.NodeId) CodedError {
	return NewCodedError(
		ErrCodeNodeNotFound,
		"node %s not found",
		id)
}

func IsNodeNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodeNodeNotFound)
}

// NewInvalidInvocationErrorf indicates an invocation the kernel cannot run.
func NewInvalidInvocationErrorf(msg string, args ...interface{}) CodedError {
	return NewCodedError(
		ErrCodeInvalidInvocation,
		"invalid invocation: "+msg,
		args...)
}

// NewVirtualizationError indicates that a virtualizer did not materialize
// the node it was asked for.
func NewVirtualizationError(id substate.NodeId, err error) CodedError {
	return WrapCodedError(
		ErrCodeVirtualizationError,
		err,
		"failed to virtualize node %s",
		id)
}

func IsVirtualizationError(err error) bool {
	return HasErrorCode(err, ErrCodeVirtualizationError)
}

// NewInvalidTypeInfoError indicates that the type info substate of a node is
// missing or cannot be decoded.
func NewInvalidTypeInfoError(id substate.NodeId, err error) CodedError {
	return WrapCodedError(
		ErrCodeInvalidTypeInfo,
		err,
		"invalid type info of node %s",
		id)
}
