package common

import (
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	bstorage "github.com/onflow/flow-kernel/storage/badger"
	pstorage "github.com/onflow/flow-kernel/storage/pebble"
	"github.com/onflow/flow-kernel/storage/util"
)

const (
	BackendBadger = "badger"
	BackendPebble = "pebble"
)

func InitDataDirFlag(cmd *cobra.Command, dataDirFlag *string) {
	cmd.PersistentFlags().StringVarP(dataDirFlag, "data-dir", "d", "/var/kernel/data", "directory to store the substate database")
}

func InitBackendFlag(cmd *cobra.Command, backendFlag *string) {
	cmd.PersistentFlags().StringVar(backendFlag, "backend", BackendBadger, "database backend, one of ( badger | pebble )")
}

// OpenSubstateDatabase opens the substate database stored in dir. The
// returned closer releases the underlying database.
func OpenSubstateDatabase(log zerolog.Logger, backend string, dir string) (util.Database, io.Closer, error) {
	switch backend {
	case BackendBadger:
		opts := badger.
			DefaultOptions(dir).
			WithKeepL0InMemory(true).
			WithLogger(util.NewLogger(log))
		db, err := badger.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open badger database at %v: %w", dir, err)
		}
		return bstorage.NewSubstateDatabase(db), db, nil
	case BackendPebble:
		db, err := pstorage.OpenSubstateDB(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open pebble database at %v: %w", dir, err)
		}
		return pstorage.NewSubstateDatabase(db), db, nil
	}
	return nil, nil, fmt.Errorf("invalid backend %q, expecting one of ( badger | pebble )", backend)
}
