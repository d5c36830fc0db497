package errors

// NewUnknownFailure wraps an error that carries no code.
func NewUnknownFailure(err error) CodedFailure {
	return WrapCodedFailure(
		FailureCodeUnknownFailure,
		err,
		"unknown failure")
}

// NewEncodingFailuref indicates that the kernel could not encode or decode a
// value it produced itself.
func NewEncodingFailuref(
	err error,
	msg string,
	args ...interface{},
) CodedFailure {
	return WrapCodedFailure(
		FailureCodeEncodingFailure,
		err,
		"encoding failed: "+msg,
		args...)
}

// NewStorageFailure indicates an error returned by the substate database.
func NewStorageFailure(err error) CodedFailure {
	return WrapCodedFailure(
		FailureCodeStorageFailure,
		err,
		"substate database returns unsuccessful")
}

func IsStorageFailure(err error) bool {
	return HasFailureCode(err, FailureCodeStorageFailure)
}

// NewModuleFailure indicates that a module broke during init or teardown.
func NewModuleFailure(module string, err error) CodedFailure {
	return WrapCodedFailure(
		FailureCodeModuleFailure,
		err,
		"module %s failed",
		module)
}

// NewInvariantViolationf indicates kernel bookkeeping that is in an
// impossible state.
func NewInvariantViolationf(msg string, args ...interface{}) CodedFailure {
	return NewCodedFailure(
		FailureCodeInvariantViolation,
		"kernel invariant violated: "+msg,
		args...)
}
