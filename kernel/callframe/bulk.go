package callframe

import (
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/heap"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

// Bulk operations bypass the lock protocol. They work on substates that do
// not own nodes, since ownership is only tracked through locks.

func (f *CallFrame) checkVisible(id substate.NodeId) error {
	if _, ok := f.NodeVisibility(id); !ok {
		return errors.NewNodeNotVisibleError(id)
	}
	return nil
}

func checkNotOwning(id substate.NodeId, operation string, values ...codec.IndexedValue) error {
	for _, value := range values {
		if len(value.OwnedNodes()) > 0 {
			return errors.NewOwnedNodeInBulkOperationError(id, operation)
		}
	}
	return nil
}

// SetSubstate writes a substate without locking it.
func (f *CallFrame) SetSubstate(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	value codec.IndexedValue,
) error {
	err := f.checkVisible(id)
	if err != nil {
		return err
	}
	err = checkNotOwning(id, "set", value)
	if err != nil {
		return err
	}
	err = f.checkReferences(value.References(), nil)
	if err != nil {
		return err
	}

	if !h.Contains(id) {
		return tr.SetSubstate(id, partition, key, value)
	}

	if h.IsSubstateLocked(id, partition, key) {
		return errors.NewSubstateLockedError(substate.NewSubstateId(id, partition, key))
	}
	if current, err := h.GetSubstate(id, partition, key); err == nil {
		err = checkNotOwning(id, "set", current)
		if err != nil {
			return err
		}
	}
	return h.SetSubstate(id, partition, key, value)
}

// TakeSubstate removes a substate without locking it. It returns nil if the
// substate does not exist.
func (f *CallFrame) TakeSubstate(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) (*codec.IndexedValue, error) {
	err := f.checkVisible(id)
	if err != nil {
		return nil, err
	}

	if !h.Contains(id) {
		value, err := tr.TakeSubstate(id, partition, key)
		if err != nil {
			return nil, err
		}
		if value != nil {
			err = checkNotOwning(id, "take", *value)
			if err != nil {
				return nil, err
			}
			f.absorbReferences(*value)
		}
		return value, nil
	}

	if h.IsSubstateLocked(id, partition, key) {
		return nil, errors.NewSubstateLockedError(substate.NewSubstateId(id, partition, key))
	}
	if current, err := h.GetSubstate(id, partition, key); err == nil {
		err = checkNotOwning(id, "take", current)
		if err != nil {
			return nil, err
		}
	}
	value, err := h.DeleteSubstate(id, partition, key)
	if err != nil {
		return nil, err
	}
	if value != nil {
		f.absorbReferences(*value)
	}
	return value, nil
}

// ScanSubstates returns at most count values of a partition in key order.
func (f *CallFrame) ScanSubstates(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	return f.scan(h, id, partition, count, func() ([]codec.IndexedValue, error) {
		return tr.ScanSubstates(id, partition, count)
	})
}

// ScanSortedSubstates returns at most count values of a sorted partition in
// ascending sort order.
func (f *CallFrame) ScanSortedSubstates(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	return f.scan(h, id, partition, count, func() ([]codec.IndexedValue, error) {
		return tr.ScanSortedSubstates(id, partition, count)
	})
}

func (f *CallFrame) scan(
	h *heap.Heap,
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
	fromTrack func() ([]codec.IndexedValue, error),
) ([]codec.IndexedValue, error) {
	err := f.checkVisible(id)
	if err != nil {
		return nil, err
	}

	var values []codec.IndexedValue
	if h.Contains(id) {
		values, err = h.ScanSubstates(id, partition, count)
	} else {
		values, err = fromTrack()
	}
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		f.absorbReferences(value)
	}
	return values, nil
}

// TakeSubstates removes and returns at most count values of a partition in
// key order.
func (f *CallFrame) TakeSubstates(
	h *heap.Heap,
	tr *track.Track,
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	err := f.checkVisible(id)
	if err != nil {
		return nil, err
	}

	var values []codec.IndexedValue
	if h.Contains(id) {
		values, err = h.ScanSubstates(id, partition, count)
		if err != nil {
			return nil, err
		}
		err = checkNotOwning(id, "take", values...)
		if err != nil {
			return nil, err
		}
		values, err = h.TakeSubstates(id, partition, count)
	} else {
		values, err = tr.TakeSubstates(id, partition, count)
		if err == nil {
			err = checkNotOwning(id, "take", values...)
		}
	}
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		f.absorbReferences(value)
	}
	return values, nil
}
