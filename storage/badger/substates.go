package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
)

// SubstateDatabase stores every substate under its encoded substate id.
type SubstateDatabase struct {
	db *badger.DB
}

var _ storage.CommittableSubstateDatabase = (*SubstateDatabase)(nil)
var _ storage.ListableSubstateDatabase = (*SubstateDatabase)(nil)

func NewSubstateDatabase(db *badger.DB) *SubstateDatabase {
	return &SubstateDatabase{db: db}
}

func (s *SubstateDatabase) GetSubstate(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
	dbKey []byte,
) ([]byte, error) {
	var value []byte
	err := s.db.View(retrieve(substate.EncodeSubstateId(nodeId, partition, dbKey), &value))
	if err != nil {
		return nil, err
	}
	return value, nil
}

// ListSubstates returns a snapshot of the partition, badger iterators do not
// outlive their transaction.
func (s *SubstateDatabase) ListSubstates(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
) (storage.SubstateIterator, error) {
	prefix := substate.PartitionPrefix(nodeId, partition)

	var entries []storage.SubstateEntry
	err := s.db.View(traverse(prefix, func(key []byte, item *badger.Item) error {
		value, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("could not load value: %w", err)
		}
		entries = append(entries, storage.SubstateEntry{
			DBKey: key[len(prefix):],
			Value: value,
		})
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("could not list substates of %s: %w", nodeId, err)
	}
	return storage.NewSliceIterator(entries), nil
}

// Commit writes all updates in one write batch.
func (s *SubstateDatabase) Commit(updates *substate.StateUpdates) error {
	batch := s.db.NewWriteBatch()
	defer batch.Cancel()

	for _, update := range updates.Updates() {
		var err error
		switch update.Update.Kind {
		case substate.UpdateSet:
			err = batch.Set(update.EncodedId(), update.Update.Value)
		case substate.UpdateDelete:
			err = batch.Delete(update.EncodedId())
		}
		if err != nil {
			return fmt.Errorf("could not batch update of %s: %w", update.NodeId, err)
		}
	}

	err := batch.Flush()
	if err != nil {
		return fmt.Errorf("could not commit state updates: %w", err)
	}
	return nil
}

func (s *SubstateDatabase) ListNodes() ([]substate.NodeId, error) {
	var ids []substate.NodeId
	err := s.db.View(func(tx *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := tx.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); {
			nodeId, _, _, err := substate.DecodeSubstateId(it.Item().Key())
			if err != nil {
				return fmt.Errorf("invalid key in substate database: %w", err)
			}
			ids = append(ids, nodeId)

			next := storage.PrefixUpperBound(nodeId.Bytes())
			if next == nil {
				break
			}
			it.Seek(next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SubstateDatabase) ListPartitions(nodeId substate.NodeId) ([]substate.PartitionNumber, error) {
	prefix := nodeId.Bytes()

	var partitions []substate.PartitionNumber
	err := s.db.View(func(tx *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := tx.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); {
			_, partition, _, err := substate.DecodeSubstateId(it.Item().Key())
			if err != nil {
				return fmt.Errorf("invalid key in substate database: %w", err)
			}
			partitions = append(partitions, partition)

			next := storage.PrefixUpperBound(substate.PartitionPrefix(nodeId, partition))
			if next == nil {
				break
			}
			it.Seek(next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return partitions, nil
}

// retrieve copies the value stored at key into value.
func retrieve(key []byte, value *[]byte) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		// retrieve the item from the key-value store
		item, err := tx.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("could not load data: %w", err)
		}

		*value, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("could not load value: %w", err)
		}
		return nil
	}
}

// traverse visits the items whose key starts with prefix in ascending key
// order. The key passed to visit is a copy.
func traverse(prefix []byte, visit func(key []byte, item *badger.Item) error) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := tx.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := visit(item.KeyCopy(nil), item)
			if err != nil {
				return err
			}
		}
		return nil
	}
}
