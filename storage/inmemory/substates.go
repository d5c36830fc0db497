package inmemory

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
)

type substateItem struct {
	key   []byte
	value []byte
}

// SubstateDatabase keeps substates in an ordered tree, keyed by encoded
// substate id. It is safe for concurrent use.
type SubstateDatabase struct {
	lock sync.RWMutex
	tree *btree.BTreeG[substateItem]
}

var _ storage.CommittableSubstateDatabase = (*SubstateDatabase)(nil)
var _ storage.ListableSubstateDatabase = (*SubstateDatabase)(nil)

func NewSubstateDatabase() *SubstateDatabase {
	return &SubstateDatabase{
		tree: btree.NewG(32, func(a, b substateItem) bool {
			return bytes.Compare(a.key, b.key) < 0
		}),
	}
}

func (db *SubstateDatabase) GetSubstate(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
	dbKey []byte,
) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	item, ok := db.tree.Get(substateItem{key: substate.EncodeSubstateId(nodeId, partition, dbKey)})
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), item.value...), nil
}

// ListSubstates returns a snapshot of the partition.
func (db *SubstateDatabase) ListSubstates(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
) (storage.SubstateIterator, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	prefix := substate.PartitionPrefix(nodeId, partition)
	var entries []storage.SubstateEntry
	db.ascendPrefix(prefix, func(item substateItem) bool {
		entries = append(entries, storage.SubstateEntry{
			DBKey: append([]byte(nil), item.key[len(prefix):]...),
			Value: append([]byte(nil), item.value...),
		})
		return true
	})
	return storage.NewSliceIterator(entries), nil
}

func (db *SubstateDatabase) ascendPrefix(prefix []byte, visit func(item substateItem) bool) {
	end := storage.PrefixUpperBound(prefix)
	if end == nil {
		db.tree.AscendGreaterOrEqual(substateItem{key: prefix}, visit)
		return
	}
	db.tree.AscendRange(substateItem{key: prefix}, substateItem{key: end}, visit)
}

func (db *SubstateDatabase) Commit(updates *substate.StateUpdates) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	for _, update := range updates.Updates() {
		key := update.EncodedId()
		switch update.Update.Kind {
		case substate.UpdateSet:
			db.tree.ReplaceOrInsert(substateItem{key: key, value: append([]byte(nil), update.Update.Value...)})
		case substate.UpdateDelete:
			db.tree.Delete(substateItem{key: key})
		}
	}
	return nil
}

func (db *SubstateDatabase) ListNodes() ([]substate.NodeId, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	var ids []substate.NodeId
	db.tree.Ascend(func(item substateItem) bool {
		nodeId, _, _, err := substate.DecodeSubstateId(item.key)
		if err != nil {
			return true
		}
		if len(ids) == 0 || ids[len(ids)-1] != nodeId {
			ids = append(ids, nodeId)
		}
		return true
	})
	return ids, nil
}

func (db *SubstateDatabase) ListPartitions(nodeId substate.NodeId) ([]substate.PartitionNumber, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	var partitions []substate.PartitionNumber
	db.ascendPrefix(nodeId.Bytes(), func(item substateItem) bool {
		_, partition, _, err := substate.DecodeSubstateId(item.key)
		if err != nil {
			return true
		}
		if len(partitions) == 0 || partitions[len(partitions)-1] != partition {
			partitions = append(partitions, partition)
		}
		return true
	})
	return partitions, nil
}

// Len returns the number of stored substates.
func (db *SubstateDatabase) Len() int {
	db.lock.RLock()
	defer db.lock.RUnlock()
	return db.tree.Len()
}
