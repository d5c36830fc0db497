package errors

import "fmt"

type ErrorCode uint16

func (ec ErrorCode) String() string {
	return fmt.Sprintf("[Error Code: %d]", ec)
}

// IsKernelCode returns true for codes raised by the kernel itself.
func (ec ErrorCode) IsKernelCode() bool {
	return ec >= 1000 && ec < 1100
}

// IsCallFrameCode returns true for visibility and ownership errors.
func (ec ErrorCode) IsCallFrameCode() bool {
	return ec >= 1100 && ec < 1150
}

// IsTrackCode returns true for substate lock and store errors.
func (ec ErrorCode) IsTrackCode() bool {
	return ec >= 1150 && ec < 1200
}

// IsModuleCode returns true for errors raised by kernel modules.
func (ec ErrorCode) IsModuleCode() bool {
	return ec >= 1200 && ec < 1250
}

// IsUpstreamCode returns true for errors reported by the invoked code.
func (ec ErrorCode) IsUpstreamCode() bool {
	return ec >= 1250 && ec < 1300
}

// IsApplicationCode returns true for errors raised by contract logic.
func (ec ErrorCode) IsApplicationCode() bool {
	return ec >= 1300 && ec < 2000
}

type FailureCode uint16

func (fc FailureCode) String() string {
	return fmt.Sprintf("[Failure Code: %d]", fc)
}

const (
	FailureCodeUnknownFailure     FailureCode = 2000
	FailureCodeEncodingFailure    FailureCode = 2001
	FailureCodeStorageFailure     FailureCode = 2002
	FailureCodeModuleFailure      FailureCode = 2003
	FailureCodeInvariantViolation FailureCode = 2004
)

const (
	// kernel errors 1000 - 1099
	ErrCodeInvalidModeTransition     ErrorCode = 1000
	ErrCodeInvalidId                 ErrorCode = 1001
	ErrCodeIdAllocationError         ErrorCode = 1002
	ErrCodeDropNodeFailure           ErrorCode = 1003
	ErrCodeInvalidDropNodeAccess     ErrorCode = 1004
	ErrCodeInvalidSubstateAccess     ErrorCode = 1005
	ErrCodeInvalidDirectAccess       ErrorCode = 1006
	ErrCodeMaxCallDepthLimitExceeded ErrorCode = 1007
	ErrCodeNodeNotFound              ErrorCode = 1008
	ErrCodeInvalidInvocation         ErrorCode = 1009
	ErrCodeVirtualizationError       ErrorCode = 1010
	ErrCodeInvalidTypeInfo           ErrorCode = 1011

	// call frame errors 1100 - 1149
	ErrCodeNodeNotVisible             ErrorCode = 1100
	ErrCodeLockNotFound               ErrorCode = 1101
	ErrCodeNodeNotOwned               ErrorCode = 1102
	ErrCodeCantMoveLockedNode         ErrorCode = 1103
	ErrCodeLockNotMutable             ErrorCode = 1104
	ErrCodeStoredNodeChanged          ErrorCode = 1105
	ErrCodeOwnedNodeInBulkOperation   ErrorCode = 1106
	ErrCodeInvalidUpstreamReference   ErrorCode = 1107
	ErrCodePartitionNotFound          ErrorCode = 1108
	ErrCodeNodeAlreadyExists          ErrorCode = 1109
	ErrCodeDropNodeOwnsChildren       ErrorCode = 1110
	ErrCodeCantDropLockedNode         ErrorCode = 1111
	ErrCodeNonGlobalReferenceNotValid ErrorCode = 1112

	// track and lock errors 1150 - 1199
	ErrCodeSubstateNotFound                    ErrorCode = 1150
	ErrCodeSubstateLocked                      ErrorCode = 1151
	ErrCodeLockUnmodifiedBaseOnNewSubstate     ErrorCode = 1152
	ErrCodeLockUnmodifiedBaseOnUpdatedSubstate ErrorCode = 1153
	ErrCodeStoreInteractionLimitExceededError  ErrorCode = 1154
	ErrCodeStateKeySizeLimitError              ErrorCode = 1155
	ErrCodeStateValueSizeLimitError            ErrorCode = 1156
	ErrCodeInvalidLockHandle                   ErrorCode = 1157

	// module errors 1200 - 1249
	ErrCodeAuthorizationDenied ErrorCode = 1200
	ErrCodeCostingError        ErrorCode = 1201
	ErrCodeModuleError         ErrorCode = 1202

	// upstream errors 1250 - 1299
	ErrCodeBlueprintNotFound  ErrorCode = 1250
	ErrCodeFunctionNotFound   ErrorCode = 1251
	ErrCodeInputDecodeError   ErrorCode = 1252
	ErrCodeOutputDecodeError  ErrorCode = 1253
	ErrCodeInvalidUpdateError ErrorCode = 1254

	// application errors 1300+
	ErrCodeApplicationError ErrorCode = 1300
)
