package kernel

import (
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/kernel/track"
	"github.com/onflow/flow-kernel/model/substate"
)

// Invoke resolves an invocation, runs it in a child of the current frame and
// returns its output. Nodes owned by the output belong to the current frame
// afterwards.
func (k *Kernel) Invoke(invocation Invocation) (codec.IndexedValue, error) {
	if k.aborted != nil {
		return codec.IndexedValue{}, k.aborted
	}

	var output codec.IndexedValue
	err := k.withMode(ModeKernel, func() error {
		var err error
		output, err = k.invoke(invocation)
		return err
	})
	if err != nil {
		return codec.IndexedValue{}, k.abort(err)
	}
	return output, nil
}

func (k *Kernel) invoke(invocation Invocation) (codec.IndexedValue, error) {
	err := k.modules.BeforeInvoke(k, invocation.Identifier(), invocation.Input().Len())
	if err != nil {
		return codec.IndexedValue{}, err
	}

	var resolved ResolvedInvocation
	err = k.withMode(ModeResolver, func() error {
		resolved, err = invocation.Resolve(k, k.ctx.Dispatcher)
		return err
	})
	if err != nil {
		return codec.IndexedValue{}, err
	}

	err = k.preflight(resolved)
	if err != nil {
		return codec.IndexedValue{}, err
	}

	output, err := k.run(resolved)
	if err != nil {
		return codec.IndexedValue{}, err
	}

	err = k.modules.AfterInvoke(k, output.Len())
	if err != nil {
		return codec.IndexedValue{}, err
	}
	return output, nil
}

// preflight makes the references of an invocation visible in the current
// frame so they can be copied to the callee. References held for direct
// access are checked against the allow-list on every invocation.
func (k *Kernel) preflight(resolved ResolvedInvocation) error {
	current := k.current()
	for _, id := range resolved.Update.NodeRefsToCopy {
		if kind, ok := current.NodeVisibility(id); ok {
			if kind != callframe.RefDirectAccess {
				continue
			}
			err := k.checkDirectAccess(id, resolved.Actor.Ident)
			if err != nil {
				return err
			}
			continue
		}

		if id.IsGlobal() {
			if k.ctx.Parameters.isNativePackage(id) || id.IsVirtual() {
				current.AddRef(id, callframe.RefNormal)
				continue
			}
			_, err := k.storedTypeInfo(id)
			if err != nil {
				return err
			}
			current.AddRef(id, callframe.RefNormal)
			continue
		}

		if k.heap.Contains(id) {
			return errors.NewNodeNotVisibleError(id)
		}
		err := k.checkDirectAccess(id, resolved.Actor.Ident)
		if err != nil {
			return err
		}
		current.AddRef(id, callframe.RefDirectAccess)
	}
	return nil
}

// checkDirectAccess fails unless ident may be invoked on the stored internal
// node id.
func (k *Kernel) checkDirectAccess(id substate.NodeId, ident string) error {
	info, err := k.storedTypeInfo(id)
	if err != nil {
		return err
	}
	if info.Kind != codec.ObjectKindObject {
		return errors.NewInvalidDirectAccessError(id, "node is a %s", info.Kind)
	}
	if !k.ctx.Parameters.allowsDirectAccess(info.Blueprint.Name, ident) {
		return errors.NewInvalidDirectAccessError(id,
			"%s is not allowed on %s", ident, info.Blueprint.Name)
	}
	return nil
}

// storedTypeInfo reads the type info of a node in the track under a short
// read lock.
func (k *Kernel) storedTypeInfo(id substate.NodeId) (codec.TypeInfo, error) {
	handle, err := k.track.AcquireLock(id, substate.TypeInfoPartition, substate.TypeInfoKey, substate.LockFlagsReadOnly)
	if err != nil {
		if track.IsNotFound(err) {
			return codec.TypeInfo{}, errors.NewNodeNotFoundError(id)
		}
		return codec.TypeInfo{}, err
	}

	value, err := k.track.ReadSubstate(handle)
	releaseErr := k.track.ReleaseLock(handle)
	if err != nil {
		return codec.TypeInfo{}, err
	}
	if releaseErr != nil {
		return codec.TypeInfo{}, releaseErr
	}

	info, err := codec.DecodeTypeInfo(value)
	if err != nil {
		return codec.TypeInfo{}, errors.NewInvalidTypeInfoError(id, err)
	}
	return info, nil
}

func (k *Kernel) run(resolved ResolvedInvocation) (output codec.IndexedValue, err error) {
	parent := k.current()
	if parent.Depth()+1 > k.ctx.Parameters.MaxCallDepth {
		return codec.IndexedValue{}, errors.NewMaxCallDepthLimitExceededError(k.ctx.Parameters.MaxCallDepth)
	}

	err = k.modules.BeforePushFrame(k, resolved.Actor, resolved.Update, resolved.Args)
	if err != nil {
		return codec.IndexedValue{}, err
	}

	k.allocator.Push()
	depth := len(k.frames)
	defer func() {
		if err == nil {
			return
		}
		// leave the stack as the caller knows it, the transaction fails anyway
		if len(k.frames) > depth {
			k.frames = k.frames[:depth]
		}
		if k.allocator.Depth() >= depth {
			_ = k.allocator.Pop()
		}
	}()

	child, err := callframe.NewChildFrame(parent.CallFrame, k.heap, resolved.Update)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	callee := resolved.Actor
	current := &frame{CallFrame: child, actor: &callee}
	k.frames = append(k.frames, current)

	err = k.modules.OnExecutionStart(k, parent.actor)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	err = child.ReleaseAll(k.heap, k.track)
	if err != nil {
		return codec.IndexedValue{}, err
	}

	var msg callframe.Message
	err = k.withMode(ModeClient, func() error {
		var err error
		output, msg, err = resolved.Executor.Execute(resolved.Args, k)
		return err
	})
	if err != nil {
		return codec.IndexedValue{}, err
	}

	err = k.modules.OnExecutionFinish(k, parent.actor, msg)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	err = child.ReleaseAll(k.heap, k.track)
	if err != nil {
		return codec.IndexedValue{}, err
	}

	for _, id := range output.OwnedNodes() {
		if !msg.Moves(id) {
			return codec.IndexedValue{}, errors.NewInvalidUpdateErrorf(
				"output of %s owns node %s it does not return", callee, id)
		}
	}
	msg.Add(callframe.Message{NodeRefsToCopy: output.References()})

	err = callframe.UpdateUpstream(child, parent.CallFrame, k.heap, msg)
	if err != nil {
		return codec.IndexedValue{}, err
	}

	err = k.withMode(ModeAutoDrop, func() error {
		return k.autoDrop(current)
	})
	if err != nil {
		return codec.IndexedValue{}, err
	}

	k.frames = k.frames[:depth]
	err = k.allocator.Pop()
	if err != nil {
		return codec.IndexedValue{}, err
	}

	err = k.modules.AfterPopFrame(k)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	return output, nil
}

// autoDrop drops the nodes f still owns through the drop function of their
// blueprint. Nodes of blueprints without a drop function are leaked
// resources.
func (k *Kernel) autoDrop(f *frame) error {
	for _, id := range f.OwnedNodes() {
		node, err := k.heap.Node(id)
		if err != nil {
			return err
		}
		info, ok, err := node.Substates.TypeInfo()
		if err != nil {
			return errors.NewInvalidTypeInfoError(id, err)
		}
		if !ok || info.Kind != codec.ObjectKindObject {
			return errors.NewDropNodeFailure(id)
		}
		function, ok := k.ctx.Parameters.DroppableBlueprints[info.Blueprint.Name]
		if !ok {
			return errors.NewDropNodeFailure(id)
		}

		k.log.Debug().
			Str("node_id", id.String()).
			Str("blueprint", info.Blueprint.String()).
			Msg("auto dropping node")

		_, err = k.invoke(FunctionInvocation{
			Blueprint: info.Blueprint,
			Ident:     function,
			Args:      codec.MustFromTyped(codec.Own(id)),
		})
		if err != nil {
			return err
		}
	}

	if owned := f.OwnedNodes(); len(owned) > 0 {
		return errors.NewDropNodeFailure(owned[0])
	}
	return nil
}
