// Package costing charges kernel operations against a cost limit.
package costing

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/model/substate"
)

const Name = "costing"

// Module charges every kernel operation to its meter. Operations run by
// kernel modules themselves are not charged.
type Module struct {
	module.NoopModule

	meter *Meter
}

var _ module.Module = (*Module)(nil)

func New(meter *Meter) *Module {
	return &Module{meter: meter}
}

func (m *Module) Name() string { return Name }

// Meter returns the meter charged by the module.
func (m *Module) Meter() *Meter {
	return m.meter
}

// TotalCostUsed returns the cost charged so far, in units.
func (m *Module) TotalCostUsed() uint {
	return m.meter.TotalCostUsed()
}

func (m *Module) charge(api module.API, kind CostingKind, intensity uint) error {
	if api != nil && api.ExecutionMode() == actor.ModeKernelModule {
		return nil
	}
	return m.meter.MeterCost(kind, intensity)
}

func (m *Module) BeforeInvoke(api module.API, _ string, _ int) error {
	return m.charge(api, KindInvoke, 1)
}

func (m *Module) BeforePushFrame(api module.API, _ actor.Actor, _ callframe.Message, _ codec.IndexedValue) error {
	return m.charge(api, KindPushFrame, 1)
}

func (m *Module) OnAllocateNodeId(api module.API, _ substate.EntityType) error {
	return m.charge(api, KindAllocateNodeId, 1)
}

func (m *Module) BeforeCreateNode(api module.API, _ substate.NodeId, substates codec.NodeSubstates) error {
	err := m.charge(api, KindCreateNode, 1)
	if err != nil {
		return err
	}
	return m.charge(api, KindWriteSubstate, uint(substates.Size()))
}

func (m *Module) BeforeDropNode(api module.API, _ substate.NodeId) error {
	return m.charge(api, KindDropNode, 1)
}

func (m *Module) BeforeLockSubstate(
	api module.API,
	_ substate.NodeId,
	_ substate.PartitionNumber,
	_ substate.SubstateKey,
	_ substate.LockFlags,
) error {
	return m.charge(api, KindLockSubstate, 1)
}

func (m *Module) OnDropLock(api module.API, _ callframe.LockHandle) error {
	return m.charge(api, KindDropLock, 1)
}

func (m *Module) OnReadSubstate(api module.API, _ callframe.LockHandle, size int) error {
	return m.charge(api, KindReadSubstate, uint(size))
}

func (m *Module) OnWriteSubstate(api module.API, _ callframe.LockHandle, size int) error {
	return m.charge(api, KindWriteSubstate, uint(size))
}

// chargeBulk charges one bulk operation plus the bytes it moved.
func (m *Module) chargeBulk(api module.API, kind CostingKind, bytesKind CostingKind, size int) error {
	err := m.charge(api, kind, 1)
	if err != nil {
		return err
	}
	return m.charge(api, bytesKind, uint(size))
}

func (m *Module) BeforeSetSubstate(
	api module.API,
	_ substate.NodeId,
	_ substate.PartitionNumber,
	_ substate.SubstateKey,
	size int,
) error {
	return m.chargeBulk(api, KindSetSubstate, KindWriteSubstate, size)
}

func (m *Module) OnTakeSubstates(api module.API, _ substate.NodeId, _ substate.PartitionNumber, _ int, size int) error {
	return m.chargeBulk(api, KindTakeSubstates, KindReadSubstate, size)
}

func (m *Module) OnScanSubstates(api module.API, _ substate.NodeId, _ substate.PartitionNumber, _ int, size int) error {
	return m.chargeBulk(api, KindScanSubstates, KindReadSubstate, size)
}
