package kernel

import (
	"fmt"

	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

func (k *Kernel) AllocateNodeId(entityType substate.EntityType) (substate.NodeId, error) {
	err := k.modules.OnAllocateNodeId(k, entityType)
	if err != nil {
		return substate.NodeId{}, err
	}
	return k.allocator.AllocateNodeId(entityType)
}

func (k *Kernel) AllocateVirtualNodeId(id substate.NodeId) error {
	if !k.virtualizing {
		return errors.NewInvalidIdErrorf(id, "virtual ids can only be allocated while virtualizing")
	}
	err := k.modules.OnAllocateNodeId(k, id.EntityType())
	if err != nil {
		return err
	}
	k.allocator.AllocateVirtualNodeId(id)
	return nil
}

func (k *Kernel) CreateNode(id substate.NodeId, substates codec.NodeSubstates) error {
	err := k.modules.BeforeCreateNode(k, id, substates)
	if err != nil {
		return err
	}

	_, ok, err := substates.TypeInfo()
	if err != nil {
		return errors.NewInvalidTypeInfoError(id, err)
	}
	if !ok {
		return errors.NewInvalidTypeInfoError(id, fmt.Errorf("type info substate is missing"))
	}

	err = k.allocator.TakeNodeId(id)
	if err != nil {
		return err
	}

	err = k.current().CreateNode(k.heap, k.track, id, substates, id.IsGlobal())
	if err != nil {
		return err
	}

	return k.modules.AfterCreateNode(k, id)
}

func (k *Kernel) DropNode(id substate.NodeId) (codec.NodeSubstates, error) {
	err := k.modules.BeforeDropNode(k, id)
	if err != nil {
		return nil, err
	}

	current := k.current()
	if !current.IsOwned(id) {
		return nil, errors.NewNodeNotOwnedError(id)
	}
	node, err := k.heap.Node(id)
	if err != nil {
		return nil, err
	}
	info, _, err := node.Substates.TypeInfo()
	if err != nil {
		return nil, errors.NewInvalidTypeInfoError(id, err)
	}
	err = k.ctx.Visibility.CheckDrop(k.mode, current.actor, id, info)
	if err != nil {
		return nil, err
	}

	err = k.withMode(ModeDropNode, func() error {
		node, err = current.DropNode(k.heap, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = k.modules.AfterDropNode(k)
	if err != nil {
		return nil, err
	}
	return node.Substates, nil
}

// TypeInfo reads the type info of a node in the heap or the track. Virtual
// nodes are materialized on first access.
func (k *Kernel) TypeInfo(id substate.NodeId) (codec.TypeInfo, error) {
	if k.heap.Contains(id) {
		value, err := k.heap.GetSubstate(id, substate.TypeInfoPartition, substate.TypeInfoKey)
		if err != nil {
			return codec.TypeInfo{}, errors.NewInvalidTypeInfoError(id, err)
		}
		info, err := codec.DecodeTypeInfo(value)
		if err != nil {
			return codec.TypeInfo{}, errors.NewInvalidTypeInfoError(id, err)
		}
		return info, nil
	}

	info, err := k.storedTypeInfo(id)
	if !errors.IsNodeNotFoundError(err) {
		return info, err
	}
	virtualized, verr := k.tryVirtualize(id)
	if verr != nil {
		return codec.TypeInfo{}, verr
	}
	if !virtualized {
		return codec.TypeInfo{}, err
	}
	return k.storedTypeInfo(id)
}

func (k *Kernel) LockSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) (callframe.LockHandle, error) {
	err := k.modules.BeforeLockSubstate(k, id, partition, key, flags)
	if err != nil {
		return 0, err
	}

	current := k.current()
	err = k.ctx.Visibility.CheckLock(k.mode, current.actor, current.CallFrame, id, partition, key, flags)
	if err != nil {
		return 0, err
	}

	virtualize := virtualKeyValueEntry(id, partition, key)
	handle, err := current.AcquireLock(k.heap, k.track, id, partition, key, flags, virtualize)
	if track.IsNotFound(err) {
		virtualized, verr := k.tryVirtualize(id)
		if verr != nil {
			return 0, verr
		}
		if virtualized {
			handle, err = current.AcquireLock(k.heap, k.track, id, partition, key, flags, virtualize)
		}
	}
	if err != nil {
		return 0, err
	}

	value, err := current.ReadSubstate(k.heap, k.track, handle)
	if err != nil {
		return 0, err
	}
	err = k.modules.AfterLockSubstate(k, handle, value.Len())
	if err != nil {
		return 0, err
	}
	return handle, nil
}

func (k *Kernel) ReadSubstate(handle callframe.LockHandle) (codec.IndexedValue, error) {
	value, err := k.current().ReadSubstate(k.heap, k.track, handle)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	err = k.modules.OnReadSubstate(k, handle, value.Len())
	if err != nil {
		return codec.IndexedValue{}, err
	}
	return value, nil
}

func (k *Kernel) WriteSubstate(handle callframe.LockHandle, value codec.IndexedValue) error {
	err := k.modules.OnWriteSubstate(k, handle, value.Len())
	if err != nil {
		return err
	}
	return k.current().WriteSubstate(k.heap, k.track, handle, value)
}

func (k *Kernel) DropLock(handle callframe.LockHandle) error {
	err := k.modules.OnDropLock(k, handle)
	if err != nil {
		return err
	}
	return k.current().ReleaseLock(k.heap, k.track, handle)
}

func (k *Kernel) LockInfo(handle callframe.LockHandle) (callframe.LockInfo, error) {
	return k.current().LockInfo(handle)
}

// retryVirtualized runs op again if it failed on a virtual node that could
// be materialized.
func (k *Kernel) retryVirtualized(id substate.NodeId, op func() error) error {
	err := op()
	if !errors.IsNodeNotFoundError(err) {
		return err
	}
	virtualized, verr := k.tryVirtualize(id)
	if verr != nil {
		return verr
	}
	if !virtualized {
		return err
	}
	return op()
}

func totalLen(values []codec.IndexedValue) int {
	size := 0
	for _, value := range values {
		size += value.Len()
	}
	return size
}

func (k *Kernel) SetSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	value codec.IndexedValue,
) error {
	err := k.modules.BeforeSetSubstate(k, id, partition, key, value.Len())
	if err != nil {
		return err
	}

	current := k.current()
	err = k.ctx.Visibility.CheckLock(k.mode, current.actor, current.CallFrame, id, partition, key, substate.LockFlagMutable)
	if err != nil {
		return err
	}
	return k.retryVirtualized(id, func() error {
		return current.SetSubstate(k.heap, k.track, id, partition, key, value)
	})
}

func (k *Kernel) TakeSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) (*codec.IndexedValue, error) {
	current := k.current()
	err := k.ctx.Visibility.CheckLock(k.mode, current.actor, current.CallFrame, id, partition, key, substate.LockFlagMutable)
	if err != nil {
		return nil, err
	}

	var value *codec.IndexedValue
	err = k.retryVirtualized(id, func() error {
		var err error
		value, err = current.TakeSubstate(k.heap, k.track, id, partition, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	count, size := 0, 0
	if value != nil {
		count, size = 1, value.Len()
	}
	err = k.modules.OnTakeSubstates(k, id, partition, count, size)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (k *Kernel) TakeSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	current := k.current()
	err := k.ctx.Visibility.CheckPartition(k.mode, current.actor, current.CallFrame, id, partition, substate.LockFlagMutable)
	if err != nil {
		return nil, err
	}

	var values []codec.IndexedValue
	err = k.retryVirtualized(id, func() error {
		var err error
		values, err = current.TakeSubstates(k.heap, k.track, id, partition, count)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = k.modules.OnTakeSubstates(k, id, partition, len(values), totalLen(values))
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (k *Kernel) ScanSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	return k.scan(id, partition, func(current *frame) ([]codec.IndexedValue, error) {
		return current.ScanSubstates(k.heap, k.track, id, partition, count)
	})
}

func (k *Kernel) ScanSortedSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	return k.scan(id, partition, func(current *frame) ([]codec.IndexedValue, error) {
		return current.ScanSortedSubstates(k.heap, k.track, id, partition, count)
	})
}

func (k *Kernel) scan(
	id substate.NodeId,
	partition substate.PartitionNumber,
	op func(current *frame) ([]codec.IndexedValue, error),
) ([]codec.IndexedValue, error) {
	current := k.current()
	err := k.ctx.Visibility.CheckPartition(k.mode, current.actor, current.CallFrame, id, partition, substate.LockFlagsReadOnly)
	if err != nil {
		return nil, err
	}

	var values []codec.IndexedValue
	err = k.retryVirtualized(id, func() error {
		var err error
		values, err = op(current)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = k.modules.OnScanSubstates(k, id, partition, len(values), totalLen(values))
	if err != nil {
		return nil, err
	}
	return values, nil
}
