package storage

import (
	"errors"
)

var (
	// Note: there are backend specific not found errors, such as
	// badger.ErrKeyNotFound and pebble.ErrNotFound. Every SubstateDatabase
	// implementation converts them, so callers only ever check for
	// storage.ErrNotFound.
	ErrNotFound = errors.New("key not found")

	ErrClosed = errors.New("database is closed")
)
