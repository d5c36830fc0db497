package util

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
	"github.com/onflow/flow-kernel/utils/unittest"
)

// Database is implemented by every substate database backend.
type Database interface {
	storage.CommittableSubstateDatabase
	storage.ListableSubstateDatabase
}

// RunSubstateDatabaseTests checks the behavior shared by all backends. open
// must return an empty database.
func RunSubstateDatabaseTests(t *testing.T, open func(t *testing.T, f func(db Database))) {
	kv := unittest.NodeIdFromByte(substate.EntityTypeInternalKeyValueStore, 1)
	component := unittest.NodeIdFromByte(substate.EntityTypeGlobalGenericComponent, 2)
	keys := [][]byte{
		substate.MapKey([]byte("c")).DBKey(),
		substate.MapKey([]byte("a")).DBKey(),
		substate.MapKey([]byte("b")).DBKey(),
	}

	t.Run("missing substate", func(t *testing.T) {
		open(t, func(db Database) {
			_, err := db.GetSubstate(kv, substate.MainPartition, keys[0])
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	})

	t.Run("committed substates are read back", func(t *testing.T) {
		open(t, func(db Database) {
			updates := substate.NewStateUpdates()
			updates.Set(kv, substate.MainPartition, keys[0], []byte{1})
			require.NoError(t, db.Commit(updates))

			value, err := db.GetSubstate(kv, substate.MainPartition, keys[0])
			require.NoError(t, err)
			require.Equal(t, []byte{1}, value)

			_, err = db.GetSubstate(kv, substate.MetadataPartition, keys[0])
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	})

	t.Run("partitions are listed in key order", func(t *testing.T) {
		open(t, func(db Database) {
			updates := substate.NewStateUpdates()
			for i, key := range keys {
				updates.Set(kv, substate.MainPartition, key, []byte{byte(i)})
			}
			updates.Set(kv, substate.MetadataPartition, keys[0], []byte{9})
			updates.Set(component, substate.MainPartition, keys[0], []byte{9})
			require.NoError(t, db.Commit(updates))

			it, err := db.ListSubstates(kv, substate.MainPartition)
			require.NoError(t, err)
			entries, err := storage.ReadAll(it)
			require.NoError(t, err)

			require.Len(t, entries, 3)
			require.Equal(t, keys[1], entries[0].DBKey)
			require.Equal(t, []byte{1}, entries[0].Value)
			require.Equal(t, keys[2], entries[1].DBKey)
			require.Equal(t, []byte{2}, entries[1].Value)
			require.Equal(t, keys[0], entries[2].DBKey)
			require.Equal(t, []byte{0}, entries[2].Value)
		})
	})

	t.Run("deleted substates are gone", func(t *testing.T) {
		open(t, func(db Database) {
			updates := substate.NewStateUpdates()
			updates.Set(kv, substate.MainPartition, keys[0], []byte{1})
			updates.Set(kv, substate.MainPartition, keys[1], []byte{2})
			require.NoError(t, db.Commit(updates))

			updates = substate.NewStateUpdates()
			updates.Delete(kv, substate.MainPartition, keys[0])
			// deleting a missing substate is a no-op
			updates.Delete(kv, substate.MainPartition, keys[2])
			require.NoError(t, db.Commit(updates))

			_, err := db.GetSubstate(kv, substate.MainPartition, keys[0])
			require.ErrorIs(t, err, storage.ErrNotFound)

			it, err := db.ListSubstates(kv, substate.MainPartition)
			require.NoError(t, err)
			entries, err := storage.ReadAll(it)
			require.NoError(t, err)
			require.Len(t, entries, 1)
		})
	})

	t.Run("nodes and partitions are enumerated", func(t *testing.T) {
		open(t, func(db Database) {
			nodes, err := db.ListNodes()
			require.NoError(t, err)
			require.Empty(t, nodes)

			updates := substate.NewStateUpdates()
			updates.Set(component, substate.MainPartition, keys[0], []byte{1})
			updates.Set(kv, substate.MetadataPartition, keys[0], []byte{1})
			updates.Set(kv, substate.MainPartition, keys[0], []byte{1})
			updates.Set(kv, substate.MainPartition, keys[1], []byte{1})
			updates.Set(kv, substate.TypeInfoPartition, substate.TypeInfoKey.DBKey(), []byte{1})
			require.NoError(t, db.Commit(updates))

			nodes, err = db.ListNodes()
			require.NoError(t, err)
			require.Equal(t, []substate.NodeId{component, kv}, nodes)

			partitions, err := db.ListPartitions(kv)
			require.NoError(t, err)
			require.Equal(t, []substate.PartitionNumber{
				substate.TypeInfoPartition,
				substate.MainPartition,
				substate.MetadataPartition,
			}, partitions)
		})
	})
}
