package storage

import (
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/onflow/flow-kernel/model/substate"
)

// SubstateIterator walks the substates of one partition in ascending db key
// order. It must be closed after use.
type SubstateIterator interface {
	// Next advances to the next substate and returns false once the
	// partition is exhausted or an error occurred.
	Next() bool
	// DBKey returns the encoded substate key of the current entry.
	DBKey() []byte
	// Value returns the value of the current entry.
	Value() []byte
	Err() error
	Close() error
}

// SubstateDatabase is the persisted state a transaction executes against.
type SubstateDatabase interface {
	// GetSubstate returns the value of a substate.
	// Expected errors:
	//   - ErrNotFound if the substate does not exist
	GetSubstate(nodeId substate.NodeId, partition substate.PartitionNumber, dbKey []byte) ([]byte, error)

	// ListSubstates iterates the substates of a partition.
	ListSubstates(nodeId substate.NodeId, partition substate.PartitionNumber) (SubstateIterator, error)
}

// CommittableSubstateDatabase is a database the state updates of a committed
// transaction can be written to.
type CommittableSubstateDatabase interface {
	SubstateDatabase

	// Commit applies all updates atomically.
	Commit(updates *substate.StateUpdates) error
}

// ListableSubstateDatabase is a database that can enumerate its content,
// used by operator tooling.
type ListableSubstateDatabase interface {
	SubstateDatabase

	// ListNodes returns the ids of all nodes with at least one substate, in
	// ascending order.
	ListNodes() ([]substate.NodeId, error)

	// ListPartitions returns the partitions of a node in ascending order.
	ListPartitions(nodeId substate.NodeId) ([]substate.PartitionNumber, error)
}

// SubstateEntry is one substate of a partition.
type SubstateEntry struct {
	DBKey []byte
	Value []byte
}

// SliceIterator iterates over entries that are already loaded.
type SliceIterator struct {
	entries []SubstateEntry
	index   int
}

var _ SubstateIterator = (*SliceIterator)(nil)

func NewSliceIterator(entries []SubstateEntry) *SliceIterator {
	return &SliceIterator{entries: entries, index: -1}
}

func (it *SliceIterator) Next() bool {
	if it.index+1 >= len(it.entries) {
		it.index = len(it.entries)
		return false
	}
	it.index++
	return true
}

func (it *SliceIterator) DBKey() []byte { return it.entries[it.index].DBKey }

func (it *SliceIterator) Value() []byte { return it.entries[it.index].Value }

func (it *SliceIterator) Err() error { return nil }

func (it *SliceIterator) Close() error { return nil }

// ReadAll drains an iterator and closes it.
func ReadAll(it SubstateIterator) ([]SubstateEntry, error) {
	var entries []SubstateEntry
	for it.Next() {
		entries = append(entries, SubstateEntry{
			DBKey: append([]byte(nil), it.DBKey()...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	err := CloseAndMergeError(it, it.Err())
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CloseAndMergeError closes closer and merges the close error into err.
func CloseAndMergeError(closer io.Closer, err error) error {
	closeErr := closer.Close()
	if closeErr == nil {
		return err
	}
	if err == nil {
		return closeErr
	}
	return multierror.Append(err, closeErr)
}

// PrefixUpperBound returns the smallest key greater than every key that has
// the given prefix, or nil if there is none.
func PrefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
