package substate

import "strings"

// LockFlags describe the permissions requested when locking a substate.
type LockFlags uint8

const (
	// LockFlagMutable requests write access.
	LockFlagMutable LockFlags = 1 << iota
	// LockFlagUnmodifiedBase asserts that the substate still holds the value
	// of the base store, untouched by this transaction.
	LockFlagUnmodifiedBase
	// LockFlagForceWrite marks writes that must survive a failed transaction.
	// It is carried through but not interpreted by the kernel.
	LockFlagForceWrite
)

// LockFlagsReadOnly requests read access only.
const LockFlagsReadOnly LockFlags = 0

func (f LockFlags) Contains(flag LockFlags) bool {
	return f&flag == flag
}

func (f LockFlags) IsMutable() bool {
	return f.Contains(LockFlagMutable)
}

func (f LockFlags) String() string {
	if f == LockFlagsReadOnly {
		return "read_only"
	}
	parts := make([]string, 0, 3)
	if f.Contains(LockFlagMutable) {
		parts = append(parts, "mutable")
	}
	if f.Contains(LockFlagUnmodifiedBase) {
		parts = append(parts, "unmodified_base")
	}
	if f.Contains(LockFlagForceWrite) {
		parts = append(parts, "force_write")
	}
	return strings.Join(parts, "|")
}
