// Package metrics reports kernel activity to a metrics collector.
package metrics

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/module"
	flowmodule "github.com/onflow/flow-kernel/module"
	"github.com/onflow/flow-kernel/model/substate"
)

const Name = "metrics"

type Module struct {
	module.NoopModule

	collector flowmodule.KernelMetrics
}

var _ module.Module = (*Module)(nil)

func New(collector flowmodule.KernelMetrics) *Module {
	return &Module{collector: collector}
}

func (m *Module) Name() string { return Name }

func (m *Module) BeforePushFrame(api module.API, _ actor.Actor, _ callframe.Message, _ codec.IndexedValue) error {
	m.collector.KernelInvocation(api.CurrentDepth() + 1)
	return nil
}

func (m *Module) AfterCreateNode(_ module.API, id substate.NodeId) error {
	m.collector.KernelNodeCreated(id.IsGlobal())
	return nil
}

func (m *Module) AfterDropNode(module.API) error {
	m.collector.KernelNodeDropped()
	return nil
}

func (m *Module) BeforeLockSubstate(
	_ module.API,
	_ substate.NodeId,
	_ substate.PartitionNumber,
	_ substate.SubstateKey,
	flags substate.LockFlags,
) error {
	m.collector.KernelSubstateLocked(flags.IsMutable())
	return nil
}

func (m *Module) OnReadSubstate(_ module.API, _ callframe.LockHandle, size int) error {
	m.collector.KernelSubstateRead(size)
	return nil
}

func (m *Module) OnWriteSubstate(_ module.API, _ callframe.LockHandle, size int) error {
	m.collector.KernelSubstateWritten(size)
	return nil
}

func (m *Module) BeforeSetSubstate(
	_ module.API,
	_ substate.NodeId,
	_ substate.PartitionNumber,
	_ substate.SubstateKey,
	size int,
) error {
	m.collector.KernelSubstateWritten(size)
	return nil
}

func (m *Module) OnTakeSubstates(_ module.API, _ substate.NodeId, _ substate.PartitionNumber, _ int, size int) error {
	m.collector.KernelSubstateRead(size)
	return nil
}

func (m *Module) OnScanSubstates(_ module.API, _ substate.NodeId, _ substate.PartitionNumber, _ int, size int) error {
	m.collector.KernelSubstateRead(size)
	return nil
}
