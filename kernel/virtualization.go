package kernel

import (
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// Virtualizer materializes a node that exists implicitly at a virtual
// address. It must create and globalize the node through api, deriving every
// substate from the id alone.
type Virtualizer interface {
	Virtualize(api KernelAPI, id substate.NodeId) error
}

type VirtualizerFunc func(api KernelAPI, id substate.NodeId) error

func (f VirtualizerFunc) Virtualize(api KernelAPI, id substate.NodeId) error {
	return f(api, id)
}

// Virtualizers maps the entity types derived from public keys to the
// virtualizer of their nodes.
type Virtualizers map[substate.EntityType]Virtualizer

// tryVirtualize materializes id if it is a virtual address with a registered
// virtualizer and does not exist yet. It returns false if nothing was
// materialized.
func (k *Kernel) tryVirtualize(id substate.NodeId) (bool, error) {
	if !id.IsVirtual() || k.heap.Contains(id) {
		return false, nil
	}
	virtualizer, ok := k.ctx.Virtualizers[id.EntityType()]
	if !ok {
		return false, nil
	}

	exists, err := k.track.NodeExists(id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	k.log.Debug().
		Str("node_id", id.String()).
		Str("entity_type", id.EntityType().String()).
		Msg("virtualizing node")

	k.allocator.AllocateVirtualNodeId(id)
	k.virtualizing = true
	err = k.withMode(ModeSystem, func() error {
		return virtualizer.Virtualize(k, id)
	})
	k.virtualizing = false
	if err != nil {
		return false, errors.NewVirtualizationError(id, err)
	}

	exists, err = k.track.NodeExists(id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, errors.NewVirtualizationError(id, errors.NewNodeNotFoundError(id))
	}
	return true, nil
}

// virtualKeyValueEntry makes missing entries of key value stores read as
// null.
func virtualKeyValueEntry(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) func() (codec.IndexedValue, bool) {
	return func() (codec.IndexedValue, bool) {
		if id.EntityType().IsKeyValueStore() &&
			partition == substate.MainPartition &&
			key.Kind() == substate.SubstateKeyKindMap {
			return codec.Null, true
		}
		return codec.IndexedValue{}, false
	}
}
