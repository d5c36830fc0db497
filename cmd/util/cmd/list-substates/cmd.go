package substates

import (
	"fmt"
	"io"

	"github.com/docker/go-units"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/onflow/flow-kernel/cmd/util/cmd/common"
	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/module/util"
	"github.com/onflow/flow-kernel/storage"
	sutil "github.com/onflow/flow-kernel/storage/util"
)

var (
	flagDatadir string
	flagBackend string
	flagNodeID  string
)

var Cmd = &cobra.Command{
	Use:   "list-substates",
	Short: "list the substates stored in a substate database, of all nodes or of --node",
	RunE:  runE,
}

func init() {
	common.InitDataDirFlag(Cmd, &flagDatadir)
	common.InitBackendFlag(Cmd, &flagBackend)

	Cmd.Flags().StringVar(&flagNodeID, "node", "", "hex encoded id of the node to list")
}

func runE(cmd *cobra.Command, _ []string) error {
	var nodes []substate.NodeId
	if flagNodeID != "" {
		nodeId, err := substate.HexToNodeId(flagNodeID)
		if err != nil {
			return fmt.Errorf("malformed node id: %w", err)
		}
		nodes = append(nodes, nodeId)
	}

	db, closer, err := common.OpenSubstateDatabase(log.Logger, flagBackend, flagDatadir)
	if err != nil {
		return err
	}
	defer closer.Close()

	if len(nodes) == 0 {
		nodes, err = db.ListNodes()
		if err != nil {
			return fmt.Errorf("could not list nodes: %w", err)
		}
	}

	log.Info().Int("nodes", len(nodes)).Msgf("listing substates in %v", flagDatadir)
	progress := util.LogProgress(log.Logger, util.DefaultLogProgressConfig("listing nodes", len(nodes)))

	count, size := 0, 0
	for _, nodeId := range nodes {
		n, valueSize, err := listNode(cmd.OutOrStdout(), db, nodeId)
		if err != nil {
			return fmt.Errorf("could not list substates of node %v: %w", nodeId, err)
		}
		count += n
		size += valueSize
		progress(1)
	}

	log.Info().
		Int("substates", count).
		Str("value_size", units.HumanSize(float64(size))).
		Msg("listed substates")
	return nil
}

// listNode prints the substates of a node and returns their count and total
// value size.
func listNode(out io.Writer, db sutil.Database, nodeId substate.NodeId) (int, int, error) {
	partitions, err := db.ListPartitions(nodeId)
	if err != nil {
		return 0, 0, err
	}

	count, size := 0, 0
	for _, partition := range partitions {
		it, err := db.ListSubstates(nodeId, partition)
		if err != nil {
			return count, size, err
		}
		entries, err := storage.ReadAll(it)
		if err != nil {
			return count, size, err
		}

		for _, entry := range entries {
			key, err := substate.SubstateKeyFromDBKey(entry.DBKey)
			if err != nil {
				return count, size, err
			}
			fmt.Fprintf(out, "%v %v %v %d\n", nodeId, partition, key, len(entry.Value))
			count++
			size += len(entry.Value)
		}
	}
	return count, size, nil
}
