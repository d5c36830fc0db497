package callframe_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/heap"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage/inmemory"
)

var (
	resource   = nodeId(substate.EntityTypeGlobalFungibleResource, 1)
	vaultId    = nodeId(substate.EntityTypeInternalFungibleVault, 2)
	objectId   = nodeId(substate.EntityTypeInternalGenericComponent, 3)
	globalId   = nodeId(substate.EntityTypeGlobalGenericComponent, 4)
	otherVault = nodeId(substate.EntityTypeInternalFungibleVault, 5)
	state      = substate.FieldKey(0)
)

type vaultState struct {
	Amount   uint64          `cbor:"1,keyasint"`
	Resource codec.Reference `cbor:"2,keyasint"`
}

type componentState struct {
	Vaults []codec.Own `cbor:"1,keyasint"`
}

func nodeId(entityType substate.EntityType, seed byte) substate.NodeId {
	return substate.NewNodeId(entityType, [substate.NodeIdRIDLength]byte{seed})
}

func vault(amount uint64) codec.NodeSubstates {
	return codec.NewNodeSubstates(codec.ObjectTypeInfo(codec.Blueprint{Name: "FungibleVault"}, false)).
		Set(substate.MainPartition, state, codec.MustFromTyped(vaultState{Amount: amount, Resource: codec.Reference(resource)}))
}

func component(global bool, vaults ...substate.NodeId) codec.NodeSubstates {
	owned := make([]codec.Own, 0, len(vaults))
	for _, id := range vaults {
		owned = append(owned, codec.Own(id))
	}
	return codec.NewNodeSubstates(codec.ObjectTypeInfo(codec.Blueprint{Name: "Component"}, global)).
		Set(substate.MainPartition, state, codec.MustFromTyped(componentState{Vaults: owned}))
}

func environment() (*heap.Heap, *track.Track) {
	return heap.New(), track.New(inmemory.NewSubstateDatabase(), track.DefaultParameters())
}

func TestFrames(t *testing.T) {
	t.Run("child frame receives moved nodes and copied references", func(t *testing.T) {
		h, tr := environment()
		root := callframe.NewRootFrame()
		root.AddRef(resource, callframe.RefNormal)
		require.NoError(t, root.CreateNode(h, tr, vaultId, vault(10), false))

		child, err := callframe.NewChildFrame(root, h, callframe.Message{
			NodesToMove:    []substate.NodeId{vaultId},
			NodeRefsToCopy: []substate.NodeId{resource},
		})
		require.NoError(t, err)
		require.Equal(t, 1, child.Depth())
		require.True(t, child.IsOwned(vaultId))
		require.False(t, root.IsOwned(vaultId))

		kind, ok := child.NodeVisibility(resource)
		require.True(t, ok)
		require.Equal(t, callframe.RefNormal, kind)

		err = callframe.UpdateUpstream(child, root, h, callframe.Message{NodesToMove: []substate.NodeId{vaultId}})
		require.NoError(t, err)
		require.True(t, root.IsOwned(vaultId))
		require.Empty(t, child.OwnedNodes())
	})

	t.Run("copying an invisible reference fails", func(t *testing.T) {
		h, _ := environment()
		_, err := callframe.NewChildFrame(callframe.NewRootFrame(), h, callframe.Message{
			NodeRefsToCopy: []substate.NodeId{resource},
		})
		require.True(t, errors.IsNodeNotVisibleError(err))
	})

	t.Run("moving a node the frame does not own fails", func(t *testing.T) {
		h, _ := environment()
		_, err := callframe.NewChildFrame(callframe.NewRootFrame(), h, callframe.Message{
			NodesToMove: []substate.NodeId{vaultId},
		})
		require.True(t, errors.IsNodeNotOwnedError(err))
	})

	t.Run("moving a locked node fails", func(t *testing.T) {
		h, tr := environment()
		root := callframe.NewRootFrame()
		root.AddRef(resource, callframe.RefNormal)
		require.NoError(t, root.CreateNode(h, tr, vaultId, vault(10), false))
		_, err := root.AcquireLock(h, tr, vaultId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)

		_, err = callframe.NewChildFrame(root, h, callframe.Message{NodesToMove: []substate.NodeId{vaultId}})
		require.True(t, errors.IsCantMoveLockedNodeError(err))
	})

	t.Run("direct access references keep their kind", func(t *testing.T) {
		h, _ := environment()
		root := callframe.NewRootFrame()
		root.AddRef(vaultId, callframe.RefDirectAccess)
		root.AddRef(vaultId, callframe.RefNormal)

		child, err := callframe.NewChildFrame(root, h, callframe.Message{NodeRefsToCopy: []substate.NodeId{vaultId}})
		require.NoError(t, err)
		kind, ok := child.NodeVisibility(vaultId)
		require.True(t, ok)
		require.Equal(t, callframe.RefDirectAccess, kind)
	})

	t.Run("upstream references", func(t *testing.T) {
		h, tr := environment()
		root := callframe.NewRootFrame()
		child, err := callframe.NewChildFrame(root, h, callframe.Message{})
		require.NoError(t, err)
		require.NoError(t, child.CreateNode(h, tr, globalId, component(true), true))

		err = callframe.UpdateUpstream(child, root, h, callframe.Message{NodeRefsToCopy: []substate.NodeId{globalId}})
		require.NoError(t, err)
		_, ok := root.NodeVisibility(globalId)
		require.True(t, ok)

		child.AddRef(vaultId, callframe.RefDirectAccess)
		err = callframe.UpdateUpstream(child, root, h, callframe.Message{NodeRefsToCopy: []substate.NodeId{vaultId}})
		require.True(t, errors.IsInvalidUpstreamReferenceError(err))
	})
}

func TestNodes(t *testing.T) {
	t.Run("owned nodes move into their owner", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))
		require.NoError(t, f.CreateNode(h, tr, objectId, component(false, vaultId), false))

		require.Equal(t, []substate.NodeId{objectId}, f.OwnedNodes())
		_, ok := f.NodeVisibility(vaultId)
		require.False(t, ok)

		// the vault is visible while its owner's state is locked
		handle, err := f.AcquireLock(h, tr, objectId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)
		_, ok = f.NodeVisibility(vaultId)
		require.True(t, ok)
		require.NoError(t, f.ReleaseLock(h, tr, handle))
		_, ok = f.NodeVisibility(vaultId)
		require.False(t, ok)

		_, err = f.DropNode(h, objectId)
		require.True(t, errors.IsDropNodeOwnsChildrenError(err))
	})

	t.Run("creating a node with a node the frame does not own fails", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		err := f.CreateNode(h, tr, objectId, component(false, vaultId), false)
		require.True(t, errors.IsNodeNotOwnedError(err))
	})

	t.Run("creating a node referencing an invisible node fails", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		err := f.CreateNode(h, tr, vaultId, vault(10), false)
		require.True(t, errors.IsNodeNotVisibleError(err))
	})

	t.Run("global nodes are pushed to the track with what they own", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))
		require.NoError(t, f.CreateNode(h, tr, globalId, component(true, vaultId), true))

		require.Empty(t, f.OwnedNodes())
		require.False(t, h.Contains(vaultId))
		require.False(t, h.Contains(globalId))

		for _, id := range []substate.NodeId{vaultId, globalId} {
			exists, err := tr.NodeExists(id)
			require.NoError(t, err)
			require.True(t, exists)
		}

		kind, ok := f.NodeVisibility(globalId)
		require.True(t, ok)
		require.Equal(t, callframe.RefNormal, kind)
	})

	t.Run("drop", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))

		handle, err := f.AcquireLock(h, tr, vaultId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)
		_, err = f.DropNode(h, vaultId)
		require.True(t, errors.IsCantDropLockedNodeError(err))
		require.NoError(t, f.ReleaseLock(h, tr, handle))

		node, err := f.DropNode(h, vaultId)
		require.NoError(t, err)
		require.NotNil(t, node)
		require.False(t, h.Contains(vaultId))
		require.Empty(t, f.OwnedNodes())

		_, err = f.DropNode(h, vaultId)
		require.True(t, errors.IsNodeNotOwnedError(err))
	})
}

func TestLocks(t *testing.T) {
	t.Run("read and write", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))

		readOnly, err := f.AcquireLock(h, tr, vaultId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)
		err = f.WriteSubstate(h, tr, readOnly, codec.MustFromTyped(vaultState{Amount: 1}))
		require.True(t, errors.IsLockNotMutableError(err))
		require.NoError(t, f.ReleaseLock(h, tr, readOnly))

		mutable, err := f.AcquireLock(h, tr, vaultId, substate.MainPartition, state, substate.LockFlagMutable, nil)
		require.NoError(t, err)
		require.NoError(t, f.WriteSubstate(h, tr, mutable, codec.MustFromTyped(vaultState{Amount: 5, Resource: codec.Reference(resource)})))

		value, err := f.ReadSubstate(h, tr, mutable)
		require.NoError(t, err)
		var decoded vaultState
		require.NoError(t, value.AsTyped(&decoded))
		require.Equal(t, uint64(5), decoded.Amount)

		info, err := f.LockInfo(mutable)
		require.NoError(t, err)
		require.Equal(t, vaultId, info.NodeId)
		require.True(t, info.Flags.IsMutable())

		require.NoError(t, f.ReleaseAll(h, tr))
		require.Equal(t, 0, f.OpenLocks())
		_, err = f.ReadSubstate(h, tr, mutable)
		require.True(t, errors.IsLockNotFoundError(err))
	})

	t.Run("locking an invisible node fails", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		_, err := f.AcquireLock(h, tr, globalId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.True(t, errors.IsNodeNotVisibleError(err))
	})

	t.Run("stored references become visible when read", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))
		require.NoError(t, f.CreateNode(h, tr, globalId, component(true, vaultId), true))

		child, err := callframe.NewChildFrame(f, h, callframe.Message{NodeRefsToCopy: []substate.NodeId{globalId}})
		require.NoError(t, err)

		handle, err := child.AcquireLock(h, tr, globalId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)
		vaultHandle, err := child.AcquireLock(h, tr, vaultId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)

		_, ok := child.NodeVisibility(resource)
		require.True(t, ok)

		require.NoError(t, child.ReleaseLock(h, tr, vaultHandle))
		require.NoError(t, child.ReleaseLock(h, tr, handle))
		_, ok = child.NodeVisibility(vaultId)
		require.False(t, ok)
		_, ok = child.NodeVisibility(resource)
		require.True(t, ok)
	})

	t.Run("writing moves ownership", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))
		require.NoError(t, f.CreateNode(h, tr, otherVault, vault(20), false))
		require.NoError(t, f.CreateNode(h, tr, objectId, component(false, vaultId), false))

		handle, err := f.AcquireLock(h, tr, objectId, substate.MainPartition, state, substate.LockFlagMutable, nil)
		require.NoError(t, err)

		swapped := codec.MustFromTyped(componentState{Vaults: []codec.Own{codec.Own(otherVault)}})
		require.NoError(t, f.WriteSubstate(h, tr, handle, swapped))
		require.Equal(t, []substate.NodeId{vaultId, objectId}, f.OwnedNodes())

		// a node already moved into the substate cannot be moved in again
		twice := codec.MustFromTyped(componentState{Vaults: []codec.Own{codec.Own(otherVault), codec.Own(objectId)}})
		err = f.WriteSubstate(h, tr, handle, twice)
		require.True(t, errors.IsCantMoveLockedNodeError(err))
	})

	t.Run("stored substates cannot give up owned nodes", func(t *testing.T) {
		h, tr := environment()
		f := callframe.NewRootFrame()
		f.AddRef(resource, callframe.RefNormal)
		require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))
		require.NoError(t, f.CreateNode(h, tr, otherVault, vault(20), false))
		require.NoError(t, f.CreateNode(h, tr, globalId, component(true, vaultId), true))

		handle, err := f.AcquireLock(h, tr, globalId, substate.MainPartition, state, substate.LockFlagMutable, nil)
		require.NoError(t, err)

		err = f.WriteSubstate(h, tr, handle, codec.MustFromTyped(componentState{}))
		require.True(t, errors.IsStoredNodeChangedError(err))

		// adding a node to a stored substate persists it
		both := codec.MustFromTyped(componentState{Vaults: []codec.Own{codec.Own(vaultId), codec.Own(otherVault)}})
		require.NoError(t, f.WriteSubstate(h, tr, handle, both))
		require.False(t, h.Contains(otherVault))
		exists, err := tr.NodeExists(otherVault)
		require.NoError(t, err)
		require.True(t, exists)
	})
}

func TestBulkOperations(t *testing.T) {
	h, tr := environment()
	f := callframe.NewRootFrame()
	f.AddRef(resource, callframe.RefNormal)
	require.NoError(t, f.CreateNode(h, tr, vaultId, vault(10), false))
	store := nodeId(substate.EntityTypeInternalKeyValueStore, 9)
	require.NoError(t, f.CreateNode(h, tr, store, codec.NewNodeSubstates(codec.KeyValueStoreTypeInfo()).WithPartition(substate.MainPartition), false))

	t.Run("values owning nodes are rejected", func(t *testing.T) {
		err := f.SetSubstate(h, tr, store, substate.MainPartition, substate.MapKey([]byte("v")), codec.MustFromTyped(codec.Own(vaultId)))
		require.True(t, errors.IsOwnedNodeInBulkOperationError(err))
	})

	t.Run("internal references are rejected", func(t *testing.T) {
		err := f.SetSubstate(h, tr, store, substate.MainPartition, substate.MapKey([]byte("v")), codec.MustFromTyped(codec.Reference(vaultId)))
		require.True(t, errors.IsNonGlobalReferenceNotValidError(err))
	})

	t.Run("set scan take", func(t *testing.T) {
		for _, key := range []string{"b", "a", "c"} {
			err := f.SetSubstate(h, tr, store, substate.MainPartition, substate.MapKey([]byte(key)), codec.MustFromTyped(key))
			require.NoError(t, err)
		}

		values, err := f.ScanSubstates(h, tr, store, substate.MainPartition, 2)
		require.NoError(t, err)
		require.Len(t, values, 2)

		taken, err := f.TakeSubstate(h, tr, store, substate.MainPartition, substate.MapKey([]byte("a")))
		require.NoError(t, err)
		require.NotNil(t, taken)

		values, err = f.TakeSubstates(h, tr, store, substate.MainPartition, 10)
		require.NoError(t, err)
		require.Len(t, values, 2)

		values, err = f.ScanSortedSubstates(h, tr, store, substate.MainPartition, 10)
		require.NoError(t, err)
		require.Empty(t, values)
	})

	t.Run("locked substates cannot be set", func(t *testing.T) {
		handle, err := f.AcquireLock(h, tr, vaultId, substate.MainPartition, state, substate.LockFlagsReadOnly, nil)
		require.NoError(t, err)
		err = f.SetSubstate(h, tr, vaultId, substate.MainPartition, state, codec.Null)
		require.True(t, errors.IsSubstateLockedError(err))
		require.NoError(t, f.ReleaseLock(h, tr, handle))
	})
}

func TestBulkOperationsOnStoredNodes(t *testing.T) {
	db := inmemory.NewSubstateDatabase()
	updates := substate.NewStateUpdates()
	for partition, entries := range component(true, otherVault) {
		for dbKey, value := range entries {
			updates.Set(globalId, partition, []byte(dbKey), value.Bytes())
		}
	}
	for partition, entries := range vault(3) {
		for dbKey, value := range entries {
			updates.Set(otherVault, partition, []byte(dbKey), value.Bytes())
		}
	}
	require.NoError(t, db.Commit(updates))

	h, tr := heap.New(), track.New(db, track.DefaultParameters())
	f := callframe.NewRootFrame()
	f.AddRef(globalId, callframe.RefNormal)

	t.Run("stored values owning nodes are not replaced", func(t *testing.T) {
		err := f.SetSubstate(h, tr, globalId, substate.MainPartition, state, codec.MustFromTyped(componentState{}))
		require.True(t, errors.IsOwnedNodeInBulkOperationError(err), "unexpected error: %v", err)

		_, err = f.TakeSubstate(h, tr, globalId, substate.MainPartition, state)
		require.True(t, errors.IsOwnedNodeInBulkOperationError(err), "unexpected error: %v", err)

		_, ok := tr.Finalize().Get(globalId, substate.MainPartition, state.DBKey())
		require.False(t, ok)
	})

	t.Run("other substates of the node can be set", func(t *testing.T) {
		key := substate.FieldKey(1)
		require.NoError(t, f.SetSubstate(h, tr, globalId, substate.MainPartition, key, codec.MustFromTyped("note")))
		update, ok := tr.Finalize().Get(globalId, substate.MainPartition, key.DBKey())
		require.True(t, ok)
		require.Equal(t, substate.UpdateSet, update.Kind)
	})
}
