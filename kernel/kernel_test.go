package kernel_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/onflow/flow-kernel/kernel"
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/kernel/module/auth"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
	"github.com/onflow/flow-kernel/storage/inmemory"
	"github.com/onflow/flow-kernel/utils/unittest"
)

var (
	counter = unittest.BlueprintFixture("Counter")
	vault   = unittest.BlueprintFixture(kernel.FungibleVaultBlueprint)
	proof   = unittest.BlueprintFixture(kernel.ProofBlueprint)

	field = substate.FieldKey(0)
)

type counterState struct {
	Value uint64 `cbor:"1,keyasint"`
}

type holderState struct {
	Inner codec.Own `cbor:"1,keyasint"`
}

type vaultState struct {
	Amount uint64 `cbor:"1,keyasint"`
}

type instantiated struct {
	Component codec.Reference `cbor:"1,keyasint"`
	Inner     substate.NodeId `cbor:"2,keyasint"`
}

func newContext(registry *kernel.Registry, opts ...kernel.Option) kernel.Context {
	return kernel.NewContext(append([]kernel.Option{
		kernel.WithLogger(unittest.Logger()),
		kernel.WithDispatcher(registry),
	}, opts...)...)
}

func execute(
	t require.TestingT,
	ctx kernel.Context,
	db storage.SubstateDatabase,
	instructions ...kernel.Invocation,
) *kernel.Receipt {
	return executeWithHash(t, ctx, db, unittest.TxHashFixture(), instructions...)
}

func executeWithHash(
	t require.TestingT,
	ctx kernel.Context,
	db storage.SubstateDatabase,
	hash [32]byte,
	instructions ...kernel.Invocation,
) *kernel.Receipt {
	receipt, err := kernel.ExecuteTransaction(ctx, db, kernel.Transaction{
		Hash:         hash,
		Instructions: instructions,
	})
	require.NoError(t, err)
	return receipt
}

// returning hands the nodes owned by value back to the caller.
func returning(value interface{}) (codec.IndexedValue, callframe.Message, error) {
	output, err := codec.FromTyped(value)
	if err != nil {
		return codec.IndexedValue{}, callframe.Message{}, err
	}
	return output, callframe.Message{NodesToMove: output.OwnedNodes()}, nil
}

func nothing() (codec.IndexedValue, callframe.Message, error) {
	return codec.Null, callframe.Message{}, nil
}

func call(blueprint codec.Blueprint, ident string) kernel.FunctionInvocation {
	return kernel.FunctionInvocation{Blueprint: blueprint, Ident: ident, Args: codec.Null}
}

func createCounter(t require.TestingT, api kernel.KernelAPI, value uint64) substate.NodeId {
	id, err := api.AllocateNodeId(substate.EntityTypeInternalGenericComponent)
	require.NoError(t, err)
	err = api.CreateNode(id, unittest.ObjectSubstatesFixture(counter, false, counterState{Value: value}))
	require.NoError(t, err)
	return id
}

// registerInstantiate registers a function creating a global component
// owning a fresh internal object of blueprint inner.
func registerInstantiate(t require.TestingT, registry *kernel.Registry, inner codec.Blueprint, state interface{}) {
	entityType := substate.EntityTypeInternalGenericComponent
	if inner.Name == kernel.FungibleVaultBlueprint {
		entityType = substate.EntityTypeInternalFungibleVault
	}

	registry.RegisterFunc(counter, "instantiate", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
		innerId, err := api.AllocateNodeId(entityType)
		require.NoError(t, err)
		err = api.CreateNode(innerId, unittest.ObjectSubstatesFixture(inner, false, state))
		require.NoError(t, err)

		globalId, err := api.AllocateNodeId(substate.EntityTypeGlobalGenericComponent)
		require.NoError(t, err)
		err = api.CreateNode(globalId, unittest.ObjectSubstatesFixture(counter, true, holderState{Inner: codec.Own(innerId)}))
		require.NoError(t, err)

		return returning(instantiated{Component: codec.Reference(globalId), Inner: innerId})
	})
}

func instantiate(t require.TestingT, ctx kernel.Context, db storage.CommittableSubstateDatabase) instantiated {
	receipt := execute(t, ctx, db, call(counter, "instantiate"))
	require.True(t, receipt.IsCommitted(), "instantiate failed: %v", receipt.Err)
	require.NoError(t, receipt.Commit(db))

	var out instantiated
	require.NoError(t, receipt.Outputs[0].AsTyped(&out))
	return out
}

func TestOwnership(t *testing.T) {
	t.Run("node left in a returning frame is a leaked resource", func(t *testing.T) {
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "leak", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				id := createCounter(t, api, 0)

				handle, err := api.LockSubstate(id, substate.MainPartition, field, substate.LockFlagMutable)
				require.NoError(t, err)
				require.NoError(t, api.WriteSubstate(handle, codec.MustFromTyped(counterState{Value: 1})))

				value, err := api.ReadSubstate(handle)
				require.NoError(t, err)
				var state counterState
				require.NoError(t, value.AsTyped(&state))
				require.Equal(t, uint64(1), state.Value)

				require.NoError(t, api.DropLock(handle))
				return nothing()
			})

		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "leak"))

		require.False(t, receipt.IsCommitted())
		require.True(t, errors.IsDropNodeFailure(receipt.Err), "unexpected error: %v", receipt.Err)
		require.Nil(t, receipt.StateUpdates)
		require.Empty(t, receipt.Outputs)
	})

	t.Run("returned node is owned by the caller", func(t *testing.T) {
		var created substate.NodeId
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "new", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				created = createCounter(t, api, 7)
				return returning(codec.Own(created))
			})
		ctx := newContext(registry)

		tr := track.New(inmemory.NewSubstateDatabase(), ctx.Parameters.Track)
		k := kernel.New(ctx, tr, unittest.TxHashFixture(), module.NewPipeline(kernel.DefaultModules(ctx)...))

		output, err := k.Invoke(call(counter, "new"))
		require.NoError(t, err)

		require.Equal(t, []substate.NodeId{created}, output.OwnedNodes())
		require.Equal(t, []substate.NodeId{created}, k.RootFrame().OwnedNodes())
		require.True(t, k.Heap().Contains(created))
		require.Equal(t, 0, k.CurrentDepth())
		require.Equal(t, kernel.ModeKernel, k.ExecutionMode())

		kind, ok := k.NodeVisibility(created)
		require.True(t, ok)
		require.Equal(t, callframe.RefNormal, kind)
	})

	t.Run("node created two frames down is returned to the root", func(t *testing.T) {
		var created substate.NodeId
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "new", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				require.Equal(t, 2, api.CurrentDepth())
				created = createCounter(t, api, 7)
				return returning(codec.Own(created))
			}).
			RegisterFunc(counter, "relay", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				output, err := api.Invoke(call(counter, "new"))
				require.NoError(t, err)
				require.Equal(t, []substate.NodeId{created}, output.OwnedNodes())

				handle, err := api.LockSubstate(created, substate.MainPartition, field, substate.LockFlagMutable)
				require.NoError(t, err)
				require.NoError(t, api.WriteSubstate(handle, codec.MustFromTyped(counterState{Value: 8})))
				require.NoError(t, api.DropLock(handle))
				return returning(codec.Own(created))
			})
		ctx := newContext(registry)

		tr := track.New(inmemory.NewSubstateDatabase(), ctx.Parameters.Track)
		k := kernel.New(ctx, tr, unittest.TxHashFixture(), module.NewPipeline(kernel.DefaultModules(ctx)...))

		output, err := k.Invoke(call(counter, "relay"))
		require.NoError(t, err)

		require.Equal(t, []substate.NodeId{created}, output.OwnedNodes())
		require.Equal(t, []substate.NodeId{created}, k.RootFrame().OwnedNodes())
		require.Equal(t, 0, k.CurrentDepth())

		value, err := k.Heap().GetSubstate(created, substate.MainPartition, field)
		require.NoError(t, err)
		require.True(t, value.Equal(codec.MustFromTyped(counterState{Value: 8})))
	})

	t.Run("output owning a node it does not return is rejected", func(t *testing.T) {
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "new", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				id := createCounter(t, api, 0)
				return codec.MustFromTyped(codec.Own(id)), callframe.Message{}, nil
			})

		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "new"))
		require.True(t, errors.IsInvalidUpdateError(receipt.Err), "unexpected error: %v", receipt.Err)
	})

	t.Run("node left in the root frame is a leaked resource", func(t *testing.T) {
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "new", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				return returning(codec.Own(createCounter(t, api, 0)))
			})

		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "new"))
		require.True(t, errors.IsDropNodeFailure(receipt.Err), "unexpected error: %v", receipt.Err)
	})

	t.Run("globalized node is committed with the nodes it owns", func(t *testing.T) {
		registry := kernel.NewRegistry()
		registerInstantiate(t, registry, counter, counterState{Value: 7})
		db := inmemory.NewSubstateDatabase()

		out := instantiate(t, newContext(registry), db)

		nodes, err := db.ListNodes()
		require.NoError(t, err)
		require.ElementsMatch(t, []substate.NodeId{out.Component.NodeId(), out.Inner}, nodes)

		raw, err := db.GetSubstate(out.Inner, substate.MainPartition, field.DBKey())
		require.NoError(t, err)
		value, err := codec.FromBytes(raw)
		require.NoError(t, err)
		require.True(t, value.Equal(codec.MustFromTyped(counterState{Value: 7})))
	})

	t.Run("dropped node does not leak", func(t *testing.T) {
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "scratch", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				id := createCounter(t, api, 3)
				substates, err := api.DropNode(id)
				require.NoError(t, err)

				value, ok := substates.Get(substate.MainPartition, field)
				require.True(t, ok)
				require.True(t, value.Equal(codec.MustFromTyped(counterState{Value: 3})))
				return nothing()
			})

		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "scratch"))
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
		require.Equal(t, 0, receipt.StateUpdates.Len())
	})

	t.Run("dropping a node of another blueprint is denied", func(t *testing.T) {
		registry := kernel.NewRegistry().
			RegisterFunc(proof, "steal", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				id := createCounter(t, api, 0)
				_, err := api.DropNode(id)
				return codec.IndexedValue{}, callframe.Message{}, err
			})

		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(proof, "steal"))
		require.True(t, errors.IsInvalidDropNodeAccessError(receipt.Err), "unexpected error: %v", receipt.Err)
	})

	t.Run("unused allocated id fails the transaction", func(t *testing.T) {
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "allocate", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				_, err := api.AllocateNodeId(substate.EntityTypeInternalGenericComponent)
				require.NoError(t, err)
				return nothing()
			})

		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "allocate"))
		require.True(t, errors.IsIdAllocationError(receipt.Err), "unexpected error: %v", receipt.Err)
	})
}

func TestMethods(t *testing.T) {
	registry := kernel.NewRegistry().
		RegisterFunc(counter, "increment", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			self, ok := api.CurrentActor()
			require.True(t, ok)
			require.True(t, self.IsMethod())

			outer, err := api.LockSubstate(*self.Receiver, substate.MainPartition, field, substate.LockFlagsReadOnly)
			require.NoError(t, err)
			value, err := api.ReadSubstate(outer)
			require.NoError(t, err)
			var holder holderState
			require.NoError(t, value.AsTyped(&holder))

			inner, err := api.LockSubstate(holder.Inner.NodeId(), substate.MainPartition, field, substate.LockFlagMutable)
			require.NoError(t, err)
			value, err = api.ReadSubstate(inner)
			require.NoError(t, err)
			var state counterState
			require.NoError(t, value.AsTyped(&state))
			state.Value++
			require.NoError(t, api.WriteSubstate(inner, codec.MustFromTyped(state)))

			require.NoError(t, api.DropLock(inner))
			require.NoError(t, api.DropLock(outer))
			return returning(state.Value)
		})
	registerInstantiate(t, registry, counter, counterState{})
	ctx := newContext(registry)
	db := inmemory.NewSubstateDatabase()

	out := instantiate(t, ctx, db)

	t.Run("state written by a method is committed", func(t *testing.T) {
		for expected := uint64(1); expected <= 2; expected++ {
			receipt := execute(t, ctx, db, kernel.MethodInvocation{
				Receiver: out.Component.NodeId(),
				Ident:    "increment",
				Args:     codec.Null,
			})
			require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
			require.NoError(t, receipt.Commit(db))

			var value uint64
			require.NoError(t, receipt.Outputs[0].AsTyped(&value))
			require.Equal(t, expected, value)
		}
	})

	t.Run("method of a missing node", func(t *testing.T) {
		receipt := execute(t, ctx, db, kernel.MethodInvocation{
			Receiver: unittest.NodeIdFixture(substate.EntityTypeGlobalGenericComponent),
			Ident:    "increment",
			Args:     codec.Null,
		})
		require.True(t, errors.IsNodeNotFoundError(receipt.Err), "unexpected error: %v", receipt.Err)
	})

	t.Run("method missing from the blueprint", func(t *testing.T) {
		receipt := execute(t, ctx, db, kernel.MethodInvocation{
			Receiver: out.Component.NodeId(),
			Ident:    "decrement",
			Args:     codec.Null,
		})
		require.True(t, errors.IsFunctionNotFoundError(receipt.Err), "unexpected error: %v", receipt.Err)
	})

	t.Run("failed transaction has no state updates", func(t *testing.T) {
		receipt := execute(t, ctx, db,
			kernel.MethodInvocation{Receiver: out.Component.NodeId(), Ident: "increment", Args: codec.Null},
			call(counter, "missing"),
		)
		require.False(t, receipt.IsCommitted())
		require.True(t, errors.IsFunctionNotFoundError(receipt.Err))
		require.Nil(t, receipt.StateUpdates)
		require.Error(t, receipt.Commit(db))
	})
}

func TestExecutionModes(t *testing.T) {
	registry := kernel.NewRegistry().
		RegisterFunc(counter, "escalate", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			require.Equal(t, kernel.ModeClient, api.ExecutionMode())

			err := api.ExecuteInMode(kernel.ModeKernel, func() error { return nil })
			require.True(t, errors.IsInvalidModeTransitionError(err), "unexpected error: %v", err)

			err = api.ExecuteInMode(kernel.ModeSystem, func() error {
				require.Equal(t, kernel.ModeSystem, api.ExecutionMode())
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, kernel.ModeClient, api.ExecutionMode())
			return nothing()
		})

	receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "escalate"))
	require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
}

func TestCallDepth(t *testing.T) {
	deepest := 0
	registry := kernel.NewRegistry()
	registry.RegisterFunc(counter, "recurse", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
		if api.CurrentDepth() > deepest {
			deepest = api.CurrentDepth()
		}
		_, err := api.Invoke(call(counter, "recurse"))
		return codec.IndexedValue{}, callframe.Message{}, err
	})
	ctx := newContext(registry, kernel.WithParameters(kernel.DefaultParameters().WithMaxCallDepth(3)))

	receipt := execute(t, ctx, inmemory.NewSubstateDatabase(), call(counter, "recurse"))

	require.True(t, errors.IsMaxCallDepthLimitExceededError(receipt.Err), "unexpected error: %v", receipt.Err)
	require.Equal(t, 3, deepest)
}

func TestAuthorization(t *testing.T) {
	registry := kernel.NewRegistry().
		RegisterFunc(counter, "forbidden", func(codec.IndexedValue, kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			t.Fatal("denied function executed")
			return nothing()
		}).
		RegisterFunc(counter, "allowed", func(codec.IndexedValue, kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			return nothing()
		})
	policy := auth.NewStaticPolicy().Deny(actor.Function(counter, "forbidden"), "closed")
	ctx := newContext(registry, kernel.WithAuthPolicy(policy))

	receipt := execute(t, ctx, inmemory.NewSubstateDatabase(), call(counter, "allowed"))
	require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)

	receipt = execute(t, ctx, inmemory.NewSubstateDatabase(), call(counter, "allowed"), call(counter, "forbidden"))
	require.True(t, errors.IsAuthorizationDeniedError(receipt.Err), "unexpected error: %v", receipt.Err)
	require.True(t, errors.IsModuleError(receipt.Err))
}

func TestDirectAccess(t *testing.T) {
	withdrawn := func(api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
		self, _ := api.CurrentActor()
		handle, err := api.LockSubstate(*self.Receiver, substate.MainPartition, field, substate.LockFlagMutable)
		if err != nil {
			return codec.IndexedValue{}, callframe.Message{}, err
		}
		value, err := api.ReadSubstate(handle)
		require.NoError(t, err)
		var state vaultState
		require.NoError(t, value.AsTyped(&state))
		state.Amount--
		require.NoError(t, api.WriteSubstate(handle, codec.MustFromTyped(state)))
		require.NoError(t, api.DropLock(handle))
		return returning(state.Amount)
	}

	registry := kernel.NewRegistry().
		RegisterFunc(vault, kernel.RecallFunction, func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			return withdrawn(api)
		}).
		RegisterFunc(vault, "withdraw", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			return withdrawn(api)
		})
	registerInstantiate(t, registry, vault, vaultState{Amount: 10})
	ctx := newContext(registry)
	db := inmemory.NewSubstateDatabase()

	out := instantiate(t, ctx, db)

	t.Run("recall reaches a stored vault directly", func(t *testing.T) {
		receipt := execute(t, ctx, db, kernel.MethodInvocation{Receiver: out.Inner, Ident: kernel.RecallFunction, Args: codec.Null})
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)

		var amount uint64
		require.NoError(t, receipt.Outputs[0].AsTyped(&amount))
		require.Equal(t, uint64(9), amount)
	})

	t.Run("other methods cannot reach a stored vault", func(t *testing.T) {
		receipt := execute(t, ctx, db, kernel.MethodInvocation{Receiver: out.Inner, Ident: "withdraw", Args: codec.Null})
		require.True(t, errors.IsInvalidDirectAccessError(receipt.Err), "unexpected error: %v", receipt.Err)
	})

	t.Run("direct access is checked on every invocation", func(t *testing.T) {
		receipt := execute(t, ctx, db,
			kernel.MethodInvocation{Receiver: out.Inner, Ident: kernel.RecallFunction, Args: codec.Null},
			kernel.MethodInvocation{Receiver: out.Inner, Ident: "withdraw", Args: codec.Null},
		)
		require.False(t, receipt.IsCommitted())
		require.True(t, errors.IsInvalidDirectAccessError(receipt.Err), "unexpected error: %v", receipt.Err)
		require.NotContains(t, receipt.Err.Error(), "error occurred")
		require.Nil(t, receipt.StateUpdates)
	})

	t.Run("allow-list is configurable", func(t *testing.T) {
		params := kernel.DefaultParameters().WithDirectAccessRules(kernel.DirectAccessRule{
			BlueprintName: kernel.FungibleVaultBlueprint,
			Ident:         "withdraw",
		})
		ctx := kernel.NewContextFromParent(ctx, kernel.WithParameters(params))

		receipt := execute(t, ctx, db, kernel.MethodInvocation{Receiver: out.Inner, Ident: "withdraw", Args: codec.Null})
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)

		receipt = execute(t, ctx, db, kernel.MethodInvocation{Receiver: out.Inner, Ident: kernel.RecallFunction, Args: codec.Null})
		require.True(t, errors.IsInvalidDirectAccessError(receipt.Err), "unexpected error: %v", receipt.Err)
	})
}

// bulkRecorder records the bulk operation hooks the kernel runs.
type bulkRecorder struct {
	module.NoopModule

	sets, setBytes     int
	taken, takenBytes  int
	scans, scannedBytes int
}

func (r *bulkRecorder) Name() string { return "bulk_recorder" }

func (r *bulkRecorder) BeforeSetSubstate(
	_ module.API,
	_ substate.NodeId,
	_ substate.PartitionNumber,
	_ substate.SubstateKey,
	size int,
) error {
	r.sets++
	r.setBytes += size
	return nil
}

func (r *bulkRecorder) OnTakeSubstates(_ module.API, _ substate.NodeId, _ substate.PartitionNumber, count int, size int) error {
	r.taken += count
	r.takenBytes += size
	return nil
}

func (r *bulkRecorder) OnScanSubstates(_ module.API, _ substate.NodeId, _ substate.PartitionNumber, _ int, size int) error {
	r.scans++
	r.scannedBytes += size
	return nil
}

func TestBulkOperations(t *testing.T) {
	entry := func(key string) substate.SubstateKey { return substate.MapKey([]byte(key)) }

	registry := kernel.NewRegistry().
		RegisterFunc(counter, "fill", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			require.Equal(t, kernel.ModeClient, api.ExecutionMode())

			store, err := api.AllocateNodeId(substate.EntityTypeInternalKeyValueStore)
			require.NoError(t, err)
			err = api.CreateNode(store, codec.NewNodeSubstates(codec.KeyValueStoreTypeInfo()).WithPartition(substate.MainPartition))
			require.NoError(t, err)

			for _, key := range []string{"b", "a", "c"} {
				require.NoError(t, api.SetSubstate(store, substate.MainPartition, entry(key), codec.MustFromTyped(key)))
			}
			values, err := api.ScanSubstates(store, substate.MainPartition, 10)
			require.NoError(t, err)
			require.Len(t, values, 3)

			taken, err := api.TakeSubstate(store, substate.MainPartition, entry("a"))
			require.NoError(t, err)
			require.NotNil(t, taken)
			values, err = api.TakeSubstates(store, substate.MainPartition, 10)
			require.NoError(t, err)
			require.Len(t, values, 2)

			_, err = api.DropNode(store)
			require.NoError(t, err)
			return nothing()
		}).
		RegisterFunc(counter, "scribble", func(args codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			var target codec.Reference
			require.NoError(t, args.AsTyped(&target))

			values, err := api.ScanSubstates(target.NodeId(), substate.MainPartition, 10)
			require.NoError(t, err)
			require.Len(t, values, 1)

			err = api.SetSubstate(target.NodeId(), substate.MainPartition, substate.FieldKey(1), codec.MustFromTyped("note"))
			return codec.IndexedValue{}, callframe.Message{}, err
		}).
		RegisterFunc(counter, "reset", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			self, _ := api.CurrentActor()
			err := api.SetSubstate(*self.Receiver, substate.MainPartition, field, codec.MustFromTyped(counterState{}))
			return codec.IndexedValue{}, callframe.Message{}, err
		})
	registerInstantiate(t, registry, counter, counterState{Value: 1})

	recorder := &bulkRecorder{}
	ctx := newContext(registry, kernel.WithModules(func(ctx kernel.Context) []module.Module {
		return append(kernel.DefaultModules(ctx), recorder)
	}))
	db := inmemory.NewSubstateDatabase()
	out := instantiate(t, ctx, db)

	t.Run("client code runs bulk operations through module hooks", func(t *testing.T) {
		*recorder = bulkRecorder{}
		receipt := execute(t, ctx, db, call(counter, "fill"))
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)

		require.Equal(t, 3, recorder.sets)
		require.Equal(t, 6, recorder.setBytes)
		require.Equal(t, 3, recorder.taken)
		require.Equal(t, 6, recorder.takenBytes)
		require.Equal(t, 1, recorder.scans)
		require.Equal(t, 6, recorder.scannedBytes)
	})

	t.Run("client code cannot set substates of referenced nodes", func(t *testing.T) {
		*recorder = bulkRecorder{}
		receipt := execute(t, ctx, db, kernel.FunctionInvocation{
			Blueprint: counter,
			Ident:     "scribble",
			Args:      codec.MustFromTyped(out.Component),
		})
		require.True(t, errors.IsInvalidSubstateAccessError(receipt.Err), "unexpected error: %v", receipt.Err)
		require.Equal(t, 1, recorder.scans)
	})

	t.Run("receiver cannot overwrite a substate owning nodes", func(t *testing.T) {
		receipt := execute(t, ctx, db, kernel.MethodInvocation{
			Receiver: out.Component.NodeId(),
			Ident:    "reset",
			Args:     codec.Null,
		})
		require.True(t, errors.IsOwnedNodeInBulkOperationError(receipt.Err), "unexpected error: %v", receipt.Err)
		require.Nil(t, receipt.StateUpdates)
	})
}

func TestTransactionHash(t *testing.T) {
	var seen [32]byte
	registry := kernel.NewRegistry().
		RegisterFunc(counter, "hash", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			seen = api.TransactionHash()
			return nothing()
		})
	hash := unittest.TxHashFixture()

	receipt := executeWithHash(t, newContext(registry), inmemory.NewSubstateDatabase(), hash, call(counter, "hash"))
	require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
	require.Equal(t, hash, seen)
}

func TestAutoDrop(t *testing.T) {
	dropped := 0
	registry := kernel.NewRegistry().
		RegisterFunc(proof, "create", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			id, err := api.AllocateNodeId(substate.EntityTypeInternalGenericComponent)
			require.NoError(t, err)
			require.NoError(t, api.CreateNode(id, unittest.ObjectSubstatesFixture(proof, false, counterState{})))
			return returning(codec.Own(id))
		}).
		RegisterFunc(proof, kernel.DropFunction, func(args codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			require.Equal(t, kernel.ModeClient, api.ExecutionMode())
			var own codec.Own
			require.NoError(t, args.AsTyped(&own))
			_, err := api.DropNode(own.NodeId())
			require.NoError(t, err)
			dropped++
			return nothing()
		}).
		RegisterFunc(counter, "use_proof", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			output, err := api.Invoke(call(proof, "create"))
			require.NoError(t, err)
			require.Len(t, output.OwnedNodes(), 1)
			return nothing()
		})

	t.Run("proof left in a frame is dropped", func(t *testing.T) {
		dropped = 0
		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(counter, "use_proof"))
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
		require.Equal(t, 1, dropped)
	})

	t.Run("proof left in the root frame is dropped", func(t *testing.T) {
		dropped = 0
		receipt := execute(t, newContext(registry), inmemory.NewSubstateDatabase(), call(proof, "create"))
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
		require.Equal(t, 1, dropped)
	})
}

func TestDeterminism(t *testing.T) {
	registry := kernel.NewRegistry()
	registerInstantiate(t, registry, counter, counterState{Value: 1})
	ctx := newContext(registry)
	hash := unittest.TxHashFixture()

	first := executeWithHash(t, ctx, inmemory.NewSubstateDatabase(), hash, call(counter, "instantiate"), call(counter, "instantiate"))
	second := executeWithHash(t, ctx, inmemory.NewSubstateDatabase(), hash, call(counter, "instantiate"), call(counter, "instantiate"))

	require.True(t, first.IsCommitted(), "unexpected error: %v", first.Err)
	require.Equal(t, first.AllocatedIds, second.AllocatedIds)
	require.Len(t, first.AllocatedIds, 4)
	require.True(t, first.StateUpdates.Equal(second.StateUpdates))
	require.Equal(t, first.StateUpdates.Hash(), second.StateUpdates.Hash())
	require.Equal(t, first.CostUsed, second.CostUsed)

	other := executeWithHash(t, ctx, inmemory.NewSubstateDatabase(), unittest.TxHashFixture(), call(counter, "instantiate"))
	require.NotEqual(t, first.AllocatedIds[:2], other.AllocatedIds)
}

// TestOwnershipConservation checks that every created node ends up owned by
// exactly one frame or dropped.
func TestOwnershipConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 8).Draw(t, "count")
		keep := rapid.SliceOfN(rapid.Bool(), count, count).Draw(t, "keep")

		var returned []substate.NodeId
		registry := kernel.NewRegistry().
			RegisterFunc(counter, "mix", func(_ codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
				var owned []codec.Own
				for i := 0; i < count; i++ {
					id := createCounter(t, api, uint64(i))
					if keep[i] {
						owned = append(owned, codec.Own(id))
						returned = append(returned, id)
						continue
					}
					_, err := api.DropNode(id)
					require.NoError(t, err)
				}
				return returning(owned)
			})
		ctx := newContext(registry)

		tr := track.New(inmemory.NewSubstateDatabase(), ctx.Parameters.Track)
		k := kernel.New(ctx, tr, unittest.TxHashFixture(), module.NewPipeline(kernel.DefaultModules(ctx)...))

		output, err := k.Invoke(call(counter, "mix"))
		require.NoError(t, err)

		require.ElementsMatch(t, returned, output.OwnedNodes())
		require.ElementsMatch(t, returned, k.RootFrame().OwnedNodes())
		for _, id := range returned {
			require.True(t, k.Heap().Contains(id))
		}
		require.Equal(t, len(returned), len(k.Heap().Nodes()))

		for _, id := range returned {
			_, err := k.DropNode(id)
			require.NoError(t, err)
		}
		require.Empty(t, k.RootFrame().OwnedNodes())
		require.Equal(t, 0, len(k.Heap().Nodes()))
	})
}

// TestVisibilityMonotonicity checks that references granted to a frame stay
// visible while the frame locks and unlocks substates.
func TestVisibilityMonotonicity(t *testing.T) {
	registry := kernel.NewRegistry()
	registerInstantiate(t, registry, counter, counterState{})
	ctx := newContext(registry)
	db := inmemory.NewSubstateDatabase()

	components := make([]codec.Reference, 3)
	for i := range components {
		components[i] = instantiate(t, ctx, db).Component
	}

	rapid.Check(t, func(t *rapid.T) {
		steps := rapid.IntRange(1, 20).Draw(t, "steps")

		registry.RegisterFunc(counter, "visit", func(args codec.IndexedValue, api kernel.KernelAPI) (codec.IndexedValue, callframe.Message, error) {
			var refs []codec.Reference
			require.NoError(t, args.AsTyped(&refs))

			var handles []callframe.LockHandle
			for step := 0; step < steps; step++ {
				if len(handles) > 0 && rapid.Bool().Draw(t, "release") {
					require.NoError(t, api.DropLock(handles[len(handles)-1]))
					handles = handles[:len(handles)-1]
				} else {
					target := rapid.IntRange(0, len(refs)-1).Draw(t, "target")
					handle, err := api.LockSubstate(refs[target].NodeId(), substate.MainPartition, field, substate.LockFlagsReadOnly)
					require.NoError(t, err)
					handles = append(handles, handle)
				}

				for _, ref := range refs {
					_, ok := api.NodeVisibility(ref.NodeId())
					require.True(t, ok)
				}
			}
			return nothing()
		})

		receipt := execute(t, ctx, db, kernel.FunctionInvocation{
			Blueprint: counter,
			Ident:     "visit",
			Args:      codec.MustFromTyped(components),
		})
		require.True(t, receipt.IsCommitted(), "unexpected error: %v", receipt.Err)
	})
}
