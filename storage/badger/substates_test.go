package badger_test

import (
	"testing"

	"github.com/dgraph-io/badger/v2"

	bstorage "github.com/onflow/flow-kernel/storage/badger"
	"github.com/onflow/flow-kernel/storage/util"
	"github.com/onflow/flow-kernel/utils/unittest"
)

func TestSubstateDatabase(t *testing.T) {
	util.RunSubstateDatabaseTests(t, func(t *testing.T, f func(db util.Database)) {
		unittest.RunWithBadgerDB(t, func(db *badger.DB) {
			f(bstorage.NewSubstateDatabase(db))
		})
	})
}

func TestInMemorySubstateDatabase(t *testing.T) {
	util.RunSubstateDatabaseTests(t, func(t *testing.T, f func(db util.Database)) {
		db := unittest.InMemoryBadgerDB(t)
		defer db.Close()
		f(bstorage.NewSubstateDatabase(db))
	})
}
