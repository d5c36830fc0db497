package pebble

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
)

// handleError maps a pebble read error of a substate to the storage errors.
func handleError(err error, nodeId substate.NodeId, partition substate.PartitionNumber) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("could not read substate of node %v in partition %d: %w", nodeId, partition, err)
}
