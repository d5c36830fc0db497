package kernel

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// Executor runs the code of a function or method. It reports the nodes it
// hands back to its caller in the returned message; nodes owned by output
// must be listed there.
type Executor interface {
	Execute(args codec.IndexedValue, api KernelAPI) (codec.IndexedValue, callframe.Message, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(args codec.IndexedValue, api KernelAPI) (codec.IndexedValue, callframe.Message, error)

func (f ExecutorFunc) Execute(args codec.IndexedValue, api KernelAPI) (codec.IndexedValue, callframe.Message, error) {
	return f(args, api)
}

// ResolvedInvocation is an invocation bound to the code that runs it.
type ResolvedInvocation struct {
	Actor    actor.Actor
	Args     codec.IndexedValue
	Update   callframe.Message
	Executor Executor
}

// Invocation is a call the kernel can resolve and run.
type Invocation interface {
	// Identifier names the invocation for modules.
	Identifier() string
	Input() codec.IndexedValue
	Resolve(api KernelAPI, dispatcher Dispatcher) (ResolvedInvocation, error)
}

// Dispatcher finds the executor of a blueprint function or method.
type Dispatcher interface {
	Executor(blueprint codec.Blueprint, ident string) (Executor, error)
}

// Registry is a Dispatcher over a fixed set of executors.
type Registry struct {
	blueprints map[codec.Blueprint]map[string]Executor
}

var _ Dispatcher = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		blueprints: make(map[codec.Blueprint]map[string]Executor),
	}
}

// Register adds the executor of a function or method.
func (r *Registry) Register(blueprint codec.Blueprint, ident string, executor Executor) *Registry {
	functions, ok := r.blueprints[blueprint]
	if !ok {
		functions = make(map[string]Executor)
		r.blueprints[blueprint] = functions
	}
	functions[ident] = executor
	return r
}

// RegisterFunc is Register for plain functions.
func (r *Registry) RegisterFunc(blueprint codec.Blueprint, ident string, executor ExecutorFunc) *Registry {
	return r.Register(blueprint, ident, executor)
}

func (r *Registry) Executor(blueprint codec.Blueprint, ident string) (Executor, error) {
	functions, ok := r.blueprints[blueprint]
	if !ok {
		return nil, errors.NewBlueprintNotFoundError(blueprint)
	}
	executor, ok := functions[ident]
	if !ok {
		return nil, errors.NewFunctionNotFoundError(blueprint, ident)
	}
	return executor, nil
}

// FunctionInvocation calls a blueprint function. Nodes owned by Args move to
// the callee, nodes referenced by Args are copied.
type FunctionInvocation struct {
	Blueprint codec.Blueprint
	Ident     string
	Args      codec.IndexedValue
}

var _ Invocation = FunctionInvocation{}

func (i FunctionInvocation) Identifier() string {
	return fmt.Sprintf("%s::%s", i.Blueprint, i.Ident)
}

func (i FunctionInvocation) Input() codec.IndexedValue {
	return i.Args
}

func (i FunctionInvocation) Resolve(_ KernelAPI, dispatcher Dispatcher) (ResolvedInvocation, error) {
	executor, err := dispatcher.Executor(i.Blueprint, i.Ident)
	if err != nil {
		return ResolvedInvocation{}, err
	}
	return ResolvedInvocation{
		Actor:    actor.Function(i.Blueprint, i.Ident),
		Args:     i.Args,
		Update:   callframe.MessageFromValue(i.Args),
		Executor: executor,
	}, nil
}

// MethodInvocation calls a method of the blueprint Receiver is an instance
// of. The receiver is copied to the callee as a reference.
type MethodInvocation struct {
	Receiver substate.NodeId
	Ident    string
	Args     codec.IndexedValue
}

var _ Invocation = MethodInvocation{}

func (i MethodInvocation) Identifier() string {
	return fmt.Sprintf("%s@%s", i.Ident, i.Receiver)
}

func (i MethodInvocation) Input() codec.IndexedValue {
	return i.Args
}

func (i MethodInvocation) Resolve(api KernelAPI, dispatcher Dispatcher) (ResolvedInvocation, error) {
	info, err := api.TypeInfo(i.Receiver)
	if err != nil {
		return ResolvedInvocation{}, err
	}
	if info.Kind != codec.ObjectKindObject {
		return ResolvedInvocation{}, errors.NewInvalidInvocationErrorf(
			"method %s called on %s node %s", i.Ident, info.Kind, i.Receiver)
	}

	executor, err := dispatcher.Executor(info.Blueprint, i.Ident)
	if err != nil {
		return ResolvedInvocation{}, err
	}

	update := callframe.MessageFromValue(i.Args)
	if slices.Contains(update.NodesToMove, i.Receiver) {
		return ResolvedInvocation{}, errors.NewInvalidInvocationErrorf(
			"receiver %s cannot be moved into its own method", i.Receiver)
	}
	update.Add(callframe.Message{NodeRefsToCopy: []substate.NodeId{i.Receiver}})

	return ResolvedInvocation{
		Actor:    actor.Method(i.Receiver, info.Blueprint, i.Ident),
		Args:     i.Args,
		Update:   update,
		Executor: executor,
	}, nil
}
