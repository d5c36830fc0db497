package track

import (
	"fmt"

	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// AcquireLockReason tells why a lock could not be acquired.
type AcquireLockReason uint8

const (
	NotFound AcquireLockReason = iota + 1
	SubstateLocked
	LockUnmodifiedBaseOnNewSubstate
	LockUnmodifiedBaseOnUpdatedSubstate
)

func (r AcquireLockReason) String() string {
	switch r {
	case NotFound:
		return "NotFound"
	case SubstateLocked:
		return "SubstateLocked"
	case LockUnmodifiedBaseOnNewSubstate:
		return "LockUnmodifiedBaseOnNewSubstate"
	case LockUnmodifiedBaseOnUpdatedSubstate:
		return "LockUnmodifiedBaseOnUpdatedSubstate"
	}
	return fmt.Sprintf("AcquireLockReason(%d)", uint8(r))
}

// AcquireLockError is returned when a substate cannot be locked.
type AcquireLockError struct {
	Reason     AcquireLockReason
	SubstateId substate.SubstateId

	err errors.CodedError
}

var _ errors.CodedError = (*AcquireLockError)(nil)

func newAcquireLockError(reason AcquireLockReason, id substate.SubstateId) *AcquireLockError {
	var err errors.CodedError
	switch reason {
	case NotFound:
		err = errors.NewSubstateNotFoundError(id)
	case SubstateLocked:
		err = errors.NewSubstateLockedError(id)
	case LockUnmodifiedBaseOnNewSubstate:
		err = errors.NewLockUnmodifiedBaseOnNewSubstateError(id)
	default:
		err = errors.NewLockUnmodifiedBaseOnUpdatedSubstateError(id)
	}
	return &AcquireLockError{
		Reason:     reason,
		SubstateId: id,
		err:        err,
	}
}

func (e *AcquireLockError) Error() string {
	return e.err.Error()
}

func (e *AcquireLockError) Code() errors.ErrorCode {
	return e.err.Code()
}

func (e *AcquireLockError) Unwrap() error {
	return e.err
}

// IsNotFound returns true if err is an AcquireLockError for a missing
// substate.
func IsNotFound(err error) bool {
	var lockErr *AcquireLockError
	return errors.As(err, &lockErr) && lockErr.Reason == NotFound
}
