package errors

import (
	"github.com/hashicorp/go-multierror"
)

// ErrorsCollector collects a list of errors. Once a failure is collected,
// the collector reports the failure no matter what else is collected.
type ErrorsCollector struct {
	errors         error
	failureIsFound bool
}

func NewErrorsCollector() *ErrorsCollector {
	return &ErrorsCollector{}
}

func (collector *ErrorsCollector) CollectedFailure() bool {
	return collector.failureIsFound
}

func (collector *ErrorsCollector) CollectedError() bool {
	return collector.errors != nil
}

// ErrorOrNil returns the collected error, or a multierror if more than one
// was collected.
func (collector *ErrorsCollector) ErrorOrNil() error {
	if errs, ok := collector.errors.(*multierror.Error); ok && len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return collector.errors
}

// Collect adds err to the collected errors. A nil error is ignored.
func (collector *ErrorsCollector) Collect(err error) *ErrorsCollector {
	if err == nil {
		return collector
	}

	if IsFailure(err) {
		collector.failureIsFound = true
	}

	collector.errors = multierror.Append(collector.errors, err)
	return collector
}
