package errors

import (
	"github.com/onflow/flow-kernel/model/substate"
)

func NewSubstateNotFoundError(id substate.SubstateId) CodedError {
	return NewCodedError(
		ErrCodeSubstateNotFound,
		"substate %s not found",
		id)
}

func IsSubstateNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodeSubstateNotFound)
}

// NewSubstateLockedError indicates a conflicting lock on the substate.
func NewSubstateLockedError(id substate.SubstateId) CodedError {
	return NewCodedError(
		ErrCodeSubstateLocked,
		"substate %s is locked",
		id)
}

func IsSubstateLockedError(err error) bool {
	return HasErrorCode(err, ErrCodeSubstateLocked)
}

func NewLockUnmodifiedBaseOnNewSubstateError(id substate.SubstateId) CodedError {
	return NewCodedError(
		ErrCodeLockUnmodifiedBaseOnNewSubstate,
		"substate %s was created in this transaction and has no base value",
		id)
}

func NewLockUnmodifiedBaseOnUpdatedSubstateError(id substate.SubstateId) CodedError {
	return NewCodedError(
		ErrCodeLockUnmodifiedBaseOnUpdatedSubstate,
		"substate %s was updated in this transaction",
		id)
}

// NewStoreInteractionLimitExceededError indicates that the transaction read
// more bytes from the store than allowed.
func NewStoreInteractionLimitExceededError(used, limit uint64) CodedError {
	return NewCodedError(
		ErrCodeStoreInteractionLimitExceededError,
		"max interaction with storage has exceeded the limit (used: %d bytes, limit %d bytes)",
		used,
		limit)
}

func IsStoreInteractionLimitExceededError(err error) bool {
	return HasErrorCode(err, ErrCodeStoreInteractionLimitExceededError)
}

// NewStateKeySizeLimitError indicates a substate key over the size limit.
func NewStateKeySizeLimitError(id substate.SubstateId, size, limit uint64) CodedError {
	return NewCodedError(
		ErrCodeStateKeySizeLimitError,
		"key %s has size %d which is higher than maximum allowed (%d)",
		id,
		size,
		limit)
}

// NewStateValueSizeLimitError indicates a substate value over the size limit.
func NewStateValueSizeLimitError(id substate.SubstateId, size, limit uint64) CodedError {
	return NewCodedError(
		ErrCodeStateValueSizeLimitError,
		"value of %s has size %d which is higher than maximum allowed (%d)",
		id,
		size,
		limit)
}

func NewInvalidLockHandleError(handle uint32) CodedError {
	return NewCodedError(
		ErrCodeInvalidLockHandle,
		"invalid store lock handle %d",
		handle)
}
