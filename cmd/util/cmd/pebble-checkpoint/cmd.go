package checkpoint

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/onflow/flow-kernel/cmd/util/cmd/common"
	"github.com/onflow/flow-kernel/storage/pebble"
)

var (
	flagDataDir string
	flagOutput  string
)

// The checkpoint hard-links the pebble sstables, so compactions can not
// reclaim them until the checkpoint directory is removed.
var Cmd = &cobra.Command{
	Use:   "pebble-checkpoint",
	Short: "Create a checkpoint from a Pebble substate database",
	RunE:  runE,
}

func init() {
	common.InitDataDirFlag(Cmd, &flagDataDir)

	Cmd.Flags().StringVar(&flagOutput, "output", "",
		"output directory for the checkpoint")
	_ = Cmd.MarkFlagRequired("output")
}

func runE(*cobra.Command, []string) error {
	lg := log.With().
		Str("data_dir", flagDataDir).
		Str("output", flagOutput).
		Logger()
	lg.Info().Msg("creating checkpoint")

	db, err := pebble.OpenSubstateDB(flagDataDir)
	if err != nil {
		return fmt.Errorf("could not open pebble database at %v: %w", flagDataDir, err)
	}
	defer db.Close()

	err = db.Checkpoint(flagOutput)
	if err != nil {
		return fmt.Errorf("could not create checkpoint at %v: %w", flagOutput, err)
	}

	// the checkpoint is a database of its own
	checkpoint, closer, err := common.OpenSubstateDatabase(lg, common.BackendPebble, flagOutput)
	if err != nil {
		return err
	}
	defer closer.Close()

	nodes, err := checkpoint.ListNodes()
	if err != nil {
		return fmt.Errorf("could not list nodes of checkpoint: %w", err)
	}

	lg.Info().Int("nodes", len(nodes)).Msg("created checkpoint")
	return nil
}
