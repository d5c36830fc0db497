package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type Unwrappable interface {
	error
	Unwrap() error
}

// CodedError is an error that aborts the transaction but is expected: the
// receipt of a failed transaction carries it.
type CodedError interface {
	Code() ErrorCode

	error
}

// CodedFailure is an error that indicates the execution environment itself is
// broken (storage, encoding, module misbehavior). Failures must not be
// reported as a regular transaction outcome.
type CodedFailure interface {
	FailureCode() FailureCode

	error
}

// Is is a utility function to call std error lib `Is` function for instance equality checks.
func Is(err error, target error) bool {
	return stdErrors.Is(err, target)
}

// As is a utility function to call std error lib `As` function.
// As finds the first error in err's chain that matches target,
// and if so, sets target to that error value and returns true. Otherwise, it returns false.
// The chain consists of err itself followed by the sequence of errors obtained by repeatedly calling Unwrap.
func As(err error, target interface{}) bool {
	return stdErrors.As(err, target)
}

// findImportantCodedError returns the first failure found in the chain, or
// else the deepest coded error.
func findImportantCodedError(err error) (CodedError, CodedFailure) {
	var failure CodedFailure
	if As(err, &failure) {
		return nil, failure
	}

	var coded CodedError
	if !As(err, &coded) {
		return nil, nil
	}

	for {
		var nextCoded CodedError
		unwrappable, ok := coded.(Unwrappable)
		if !ok || !As(unwrappable.Unwrap(), &nextCoded) {
			return coded, nil
		}
		coded = nextCoded
	}
}

// IsFailure returns true if the error is an un-coded error or contains a
// failure. A nil error is not a failure.
func IsFailure(err error) bool {
	if err == nil {
		return false
	}

	// a multierror is checked member by member
	var errs *multierror.Error
	if As(err, &errs) {
		for _, e := range errs.Errors {
			if IsFailure(e) {
				return true
			}
		}
		return false
	}

	coded, failure := findImportantCodedError(err)
	return coded == nil || failure != nil
}

// SplitErrorTypes splits the error into a transaction error and a failure.
// Anything that is neither a coded error nor a failure is reported as an
// unknown failure.
func SplitErrorTypes(err error) (
	CodedError,
	CodedFailure,
) {
	if err == nil {
		return nil, nil
	}

	var errs *multierror.Error
	if As(err, &errs) {
		return splitMultiError(err, errs)
	}

	coded, failure := findImportantCodedError(err)
	if failure != nil {
		return nil, WrapCodedFailure(
			failure.FailureCode(),
			err,
			"failure caused by")
	}
	if coded != nil {
		return WrapCodedError(
			coded.Code(),
			err,
			"error caused by"), nil
	}

	return nil, WrapCodedFailure(
		FailureCodeUnknownFailure,
		err,
		"failure caused by")
}

func splitMultiError(err error, errs *multierror.Error) (CodedError, CodedFailure) {
	var firstCoded CodedError
	for _, e := range errs.Errors {
		coded, failure := SplitErrorTypes(e)
		if failure != nil {
			return nil, WrapCodedFailure(failure.FailureCode(), err, "failure caused by")
		}
		if firstCoded == nil {
			firstCoded = coded
		}
	}
	if firstCoded == nil {
		return nil, nil
	}
	return WrapCodedError(firstCoded.Code(), err, "error caused by"), nil
}

// HasErrorCode returns true if the error or any error it wraps has the code.
func HasErrorCode(err error, code ErrorCode) bool {
	return Find(err, code) != nil
}

// HasFailureCode returns true if the error or any error it wraps has the
// failure code.
func HasFailureCode(err error, code FailureCode) bool {
	return FindFailure(err, code) != nil
}

// Find recursively unwraps the error and returns the first coded error with
// the matching code.
func Find(originalErr error, code ErrorCode) CodedError {
	if originalErr == nil {
		return nil
	}

	var errs *multierror.Error
	if As(originalErr, &errs) {
		for _, err := range errs.Errors {
			coded := Find(err, code)
			if coded != nil {
				return coded
			}
		}
		return nil
	}

	var coded CodedError
	if !As(originalErr, &coded) {
		return nil
	}

	if coded.Code() == code {
		return coded
	}

	unwrappable, ok := coded.(Unwrappable)
	if !ok {
		return nil
	}
	return Find(unwrappable.Unwrap(), code)
}

// FindFailure recursively unwraps the error and returns the first failure
// with the matching code.
func FindFailure(originalErr error, code FailureCode) CodedFailure {
	if originalErr == nil {
		return nil
	}

	var errs *multierror.Error
	if As(originalErr, &errs) {
		for _, err := range errs.Errors {
			failure := FindFailure(err, code)
			if failure != nil {
				return failure
			}
		}
		return nil
	}

	var failure CodedFailure
	if !As(originalErr, &failure) {
		return nil
	}

	if failure.FailureCode() == code {
		return failure
	}

	unwrappable, ok := failure.(Unwrappable)
	if !ok {
		return nil
	}
	return FindFailure(unwrappable.Unwrap(), code)
}

// IsKernelError returns true if the error was raised by kernel bookkeeping:
// modes, ids, drops, substate access, locks and store limits.
func IsKernelError(err error) bool {
	return hasCodeIn(err, func(code ErrorCode) bool {
		return code.IsKernelCode() || code.IsTrackCode()
	})
}

// IsCallFrameError returns true if the error is a visibility or ownership
// violation in a call frame.
func IsCallFrameError(err error) bool {
	return hasCodeIn(err, ErrorCode.IsCallFrameCode)
}

// IsModuleError returns true if the error was raised by a kernel module.
func IsModuleError(err error) bool {
	return hasCodeIn(err, ErrorCode.IsModuleCode)
}

// IsUpstreamError returns true if the invoked code reported a mismatch.
func IsUpstreamError(err error) bool {
	return hasCodeIn(err, ErrorCode.IsUpstreamCode)
}

// IsApplicationError returns true if the error was raised by contract logic.
func IsApplicationError(err error) bool {
	return hasCodeIn(err, ErrorCode.IsApplicationCode)
}

func hasCodeIn(err error, match func(ErrorCode) bool) bool {
	if err == nil || IsFailure(err) {
		return false
	}
	coded, _ := SplitErrorTypes(err)
	return coded != nil && match(coded.Code())
}

type codedError struct {
	code ErrorCode

	err error
}

func newError(
	code ErrorCode,
	rootCause error,
) codedError {
	return codedError{
		code: code,
		err:  rootCause,
	}
}

func WrapCodedError(
	code ErrorCode,
	err error,
	prefixMsgFormat string,
	formatArguments ...interface{},
) codedError {
	if prefixMsgFormat != "" {
		msg := fmt.Sprintf(prefixMsgFormat, formatArguments...)
		err = fmt.Errorf("%s: %w", msg, err)
	}
	return newError(code, err)
}

func NewCodedError(
	code ErrorCode,
	format string,
	formatArguments ...interface{},
) codedError {
	return newError(code, fmt.Errorf(format, formatArguments...))
}

func (err codedError) Unwrap() error {
	return err.err
}

func (err codedError) Error() string {
	return fmt.Sprintf("%v %v", err.code, err.err)
}

func (err codedError) Code() ErrorCode {
	return err.code
}

type codedFailure struct {
	code FailureCode

	err error
}

func newFailure(
	code FailureCode,
	rootCause error,
) codedFailure {
	return codedFailure{
		code: code,
		err:  rootCause,
	}
}

func WrapCodedFailure(
	code FailureCode,
	err error,
	prefixMsgFormat string,
	formatArguments ...interface{},
) codedFailure {
	if prefixMsgFormat != "" {
		msg := fmt.Sprintf(prefixMsgFormat, formatArguments...)
		err = fmt.Errorf("%s: %w", msg, err)
	}
	return newFailure(code, err)
}

func NewCodedFailure(
	code FailureCode,
	format string,
	formatArguments ...interface{},
) codedFailure {
	return newFailure(code, fmt.Errorf(format, formatArguments...))
}

func (err codedFailure) Unwrap() error {
	return err.err
}

func (err codedFailure) Error() string {
	return fmt.Sprintf("%v %v", err.code, err.err)
}

func (err codedFailure) FailureCode() FailureCode {
	return err.code
}
