package config

import (
	"errors"
	"fmt"
)

// InvalidConfigError indicates that a configuration value is malformed or out
// of range.
type InvalidConfigError struct {
	key string
	err error
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid kernel configuration %s: %s", e.key, e.err.Error())
}

func (e InvalidConfigError) Unwrap() error {
	return e.err
}

// NewInvalidConfigErrorf returns a new InvalidConfigError
func NewInvalidConfigErrorf(key string, msg string, args ...interface{}) InvalidConfigError {
	return InvalidConfigError{
		key: key,
		err: fmt.Errorf(msg, args...),
	}
}

// IsInvalidConfigError returns true if the error is an InvalidConfigError
func IsInvalidConfigError(err error) bool {
	var e InvalidConfigError
	return errors.As(err, &e)
}
