package errors

import "fmt"

// NewAuthorizationDeniedError indicates that the authorization policy
// rejected the call.
func NewAuthorizationDeniedError(actor string, reason string) CodedError {
	return NewCodedError(
		ErrCodeAuthorizationDenied,
		"authorization of %s denied: %s",
		actor,
		reason)
}

func IsAuthorizationDeniedError(err error) bool {
	return HasErrorCode(err, ErrCodeAuthorizationDenied)
}

// NewCostingError indicates that the transaction ran out of cost units.
func NewCostingError(used, limit uint64) CodedError {
	return NewCodedError(
		ErrCodeCostingError,
		"cost limit exceeded (used: %d, limit: %d)",
		used,
		limit)
}

func IsCostingError(err error) bool {
	return HasErrorCode(err, ErrCodeCostingError)
}

// NewModuleError wraps an expected error raised by a kernel module.
func NewModuleError(module string, err error) CodedError {
	return WrapCodedError(
		ErrCodeModuleError,
		err,
		"module %s",
		module)
}

// NewBlueprintNotFoundError indicates a function invocation of an unknown
// blueprint.
func NewBlueprintNotFoundError(blueprint fmt.Stringer) CodedError {
	return NewCodedError(
		ErrCodeBlueprintNotFound,
		"blueprint %s not found",
		blueprint)
}

func IsBlueprintNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodeBlueprintNotFound)
}

func NewFunctionNotFoundError(blueprint fmt.Stringer, ident string) CodedError {
	return NewCodedError(
		ErrCodeFunctionNotFound,
		"function %s not found on blueprint %s",
		ident,
		blueprint)
}

func IsFunctionNotFoundError(err error) bool {
	return HasErrorCode(err, ErrCodeFunctionNotFound)
}

// NewInputDecodeError indicates invocation arguments that cannot be decoded.
func NewInputDecodeError(err error) CodedError {
	return WrapCodedError(
		ErrCodeInputDecodeError,
		err,
		"failed to decode invocation input")
}

// NewOutputDecodeError indicates an invocation output that cannot be decoded.
func NewOutputDecodeError(err error) CodedError {
	return WrapCodedError(
		ErrCodeOutputDecodeError,
		err,
		"failed to decode invocation output")
}

func IsOutputDecodeError(err error) bool {
	return HasErrorCode(err, ErrCodeOutputDecodeError)
}

// NewInvalidUpdateErrorf indicates a callee whose reported ownership
// transfer does not match its output.
func NewInvalidUpdateErrorf(msg string, args ...interface{}) CodedError {
	return NewCodedError(
		ErrCodeInvalidUpdateError,
		"invalid call frame update: "+msg,
		args...)
}

func IsInvalidUpdateError(err error) bool {
	return HasErrorCode(err, ErrCodeInvalidUpdateError)
}

// NewApplicationError wraps an error raised by contract logic.
func NewApplicationError(err error) CodedError {
	return WrapCodedError(
		ErrCodeApplicationError,
		err,
		"application error")
}

// NewApplicationErrorf formats an error raised by contract logic.
func NewApplicationErrorf(msg string, args ...interface{}) CodedError {
	return NewCodedError(
		ErrCodeApplicationError,
		"application error: "+msg,
		args...)
}
