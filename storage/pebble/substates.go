package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
)

// SubstateDatabase stores every substate under its encoded substate id, so
// the substates of a partition are adjacent and sorted by db key.
type SubstateDatabase struct {
	db *pebble.DB
}

var _ storage.CommittableSubstateDatabase = (*SubstateDatabase)(nil)
var _ storage.ListableSubstateDatabase = (*SubstateDatabase)(nil)

func NewSubstateDatabase(db *pebble.DB) *SubstateDatabase {
	return &SubstateDatabase{db: db}
}

func (s *SubstateDatabase) GetSubstate(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
	dbKey []byte,
) ([]byte, error) {
	value, closer, err := s.db.Get(substate.EncodeSubstateId(nodeId, partition, dbKey))
	if err != nil {
		return nil, handleError(err, nodeId, partition)
	}
	defer closer.Close()

	// the value is only valid until the closer is closed
	return append([]byte(nil), value...), nil
}

func (s *SubstateDatabase) ListSubstates(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
) (storage.SubstateIterator, error) {
	prefix := substate.PartitionPrefix(nodeId, partition)
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: storage.PrefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("can not create iterator: %w", err)
	}
	return &substateIterator{it: it, prefixLen: len(prefix)}, nil
}

// Commit writes all updates in one synced batch.
func (s *SubstateDatabase) Commit(updates *substate.StateUpdates) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, update := range updates.Updates() {
		var err error
		switch update.Update.Kind {
		case substate.UpdateSet:
			err = batch.Set(update.EncodedId(), update.Update.Value, nil)
		case substate.UpdateDelete:
			err = batch.Delete(update.EncodedId(), nil)
		}
		if err != nil {
			return fmt.Errorf("could not batch update of %s: %w", update.NodeId, err)
		}
	}

	err := batch.Commit(pebble.Sync)
	if err != nil {
		return fmt.Errorf("could not commit state updates: %w", err)
	}
	return nil
}

func (s *SubstateDatabase) ListNodes() (ids []substate.NodeId, errToReturn error) {
	it, err := s.db.NewIter(nil)
	if err != nil {
		return nil, fmt.Errorf("can not create iterator: %w", err)
	}
	defer func() {
		errToReturn = storage.CloseAndMergeError(it, errToReturn)
	}()

	for valid := it.First(); valid; {
		nodeId, _, _, err := substate.DecodeSubstateId(it.Key())
		if err != nil {
			return nil, fmt.Errorf("invalid key in substate database: %w", err)
		}
		ids = append(ids, nodeId)

		next := storage.PrefixUpperBound(nodeId.Bytes())
		if next == nil {
			break
		}
		valid = it.SeekGE(next)
	}
	return ids, it.Error()
}

func (s *SubstateDatabase) ListPartitions(nodeId substate.NodeId) (partitions []substate.PartitionNumber, errToReturn error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: nodeId.Bytes(),
		UpperBound: storage.PrefixUpperBound(nodeId.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("can not create iterator: %w", err)
	}
	defer func() {
		errToReturn = storage.CloseAndMergeError(it, errToReturn)
	}()

	for valid := it.First(); valid; {
		_, partition, _, err := substate.DecodeSubstateId(it.Key())
		if err != nil {
			return nil, fmt.Errorf("invalid key in substate database: %w", err)
		}
		partitions = append(partitions, partition)

		next := storage.PrefixUpperBound(substate.PartitionPrefix(nodeId, partition))
		if next == nil {
			break
		}
		valid = it.SeekGE(next)
	}
	return partitions, it.Error()
}

type substateIterator struct {
	it        *pebble.Iterator
	prefixLen int
	started   bool
}

var _ storage.SubstateIterator = (*substateIterator)(nil)

func (i *substateIterator) Next() bool {
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *substateIterator) DBKey() []byte { return i.it.Key()[i.prefixLen:] }

func (i *substateIterator) Value() []byte { return i.it.Value() }

func (i *substateIterator) Err() error { return i.it.Error() }

func (i *substateIterator) Close() error { return i.it.Close() }
