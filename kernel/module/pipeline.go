package module

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
)

// Pipeline calls its modules in order and stops at the first error. The
// module set is fixed when the pipeline is built.
type Pipeline struct {
	modules []Module
}

func NewPipeline(modules ...Module) *Pipeline {
	return &Pipeline{modules: modules}
}

// Modules returns the modules in call order.
func (p *Pipeline) Modules() []Module {
	return p.modules
}

// Find returns the first module with the given name.
func (p *Pipeline) Find(name string) (Module, bool) {
	for _, m := range p.modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

func (p *Pipeline) each(hook func(m Module) error) error {
	for _, m := range p.modules {
		err := hook(m)
		if err == nil {
			continue
		}
		// coded errors keep their code, anything else is a module error
		var coded errors.CodedError
		var failure errors.CodedFailure
		if errors.As(err, &coded) || errors.As(err, &failure) {
			return err
		}
		return errors.NewModuleError(m.Name(), err)
	}
	return nil
}

func (p *Pipeline) OnInit(api API) error {
	return p.each(func(m Module) error { return m.OnInit(api) })
}

func (p *Pipeline) OnTeardown(api API) error {
	return p.each(func(m Module) error { return m.OnTeardown(api) })
}

func (p *Pipeline) BeforeInvoke(api API, identifier string, inputSize int) error {
	return p.each(func(m Module) error { return m.BeforeInvoke(api, identifier, inputSize) })
}

func (p *Pipeline) AfterInvoke(api API, outputSize int) error {
	return p.each(func(m Module) error { return m.AfterInvoke(api, outputSize) })
}

func (p *Pipeline) BeforePushFrame(api API, callee actor.Actor, msg callframe.Message, args codec.IndexedValue) error {
	return p.each(func(m Module) error { return m.BeforePushFrame(api, callee, msg, args) })
}

func (p *Pipeline) OnExecutionStart(api API, caller *actor.Actor) error {
	return p.each(func(m Module) error { return m.OnExecutionStart(api, caller) })
}

func (p *Pipeline) OnExecutionFinish(api API, caller *actor.Actor, msg callframe.Message) error {
	return p.each(func(m Module) error { return m.OnExecutionFinish(api, caller, msg) })
}

func (p *Pipeline) AfterPopFrame(api API) error {
	return p.each(func(m Module) error { return m.AfterPopFrame(api) })
}

func (p *Pipeline) OnAllocateNodeId(api API, entityType substate.EntityType) error {
	return p.each(func(m Module) error { return m.OnAllocateNodeId(api, entityType) })
}

func (p *Pipeline) BeforeCreateNode(api API, id substate.NodeId, substates codec.NodeSubstates) error {
	return p.each(func(m Module) error { return m.BeforeCreateNode(api, id, substates) })
}

func (p *Pipeline) AfterCreateNode(api API, id substate.NodeId) error {
	return p.each(func(m Module) error { return m.AfterCreateNode(api, id) })
}

func (p *Pipeline) BeforeDropNode(api API, id substate.NodeId) error {
	return p.each(func(m Module) error { return m.BeforeDropNode(api, id) })
}

func (p *Pipeline) AfterDropNode(api API) error {
	return p.each(func(m Module) error { return m.AfterDropNode(api) })
}

func (p *Pipeline) BeforeLockSubstate(
	api API,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) error {
	return p.each(func(m Module) error { return m.BeforeLockSubstate(api, id, partition, key, flags) })
}

func (p *Pipeline) AfterLockSubstate(api API, handle callframe.LockHandle, size int) error {
	return p.each(func(m Module) error { return m.AfterLockSubstate(api, handle, size) })
}

func (p *Pipeline) OnDropLock(api API, handle callframe.LockHandle) error {
	return p.each(func(m Module) error { return m.OnDropLock(api, handle) })
}

func (p *Pipeline) OnReadSubstate(api API, handle callframe.LockHandle, size int) error {
	return p.each(func(m Module) error { return m.OnReadSubstate(api, handle, size) })
}

func (p *Pipeline) OnWriteSubstate(api API, handle callframe.LockHandle, size int) error {
	return p.each(func(m Module) error { return m.OnWriteSubstate(api, handle, size) })
}

func (p *Pipeline) BeforeSetSubstate(
	api API,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	size int,
) error {
	return p.each(func(m Module) error { return m.BeforeSetSubstate(api, id, partition, key, size) })
}

func (p *Pipeline) OnTakeSubstates(api API, id substate.NodeId, partition substate.PartitionNumber, count int, size int) error {
	return p.each(func(m Module) error { return m.OnTakeSubstates(api, id, partition, count, size) })
}

func (p *Pipeline) OnScanSubstates(api API, id substate.NodeId, partition substate.PartitionNumber, count int, size int) error {
	return p.each(func(m Module) error { return m.OnScanSubstates(api, id, partition, count, size) })
}
