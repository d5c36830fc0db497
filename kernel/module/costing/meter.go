package costing

import (
	"fmt"

	"github.com/onflow/flow-kernel/kernel/errors"
)

// MeterInternalPrecisionBytes are the amount of bytes that are used internally by the Meter
// to allow for metering costs smaller than one unit. A weight of 1 unit is equal to 1<<16.
// The minimum possible weight is 1/65536.
const MeterInternalPrecisionBytes = 16

// DefaultCostLimit is the cost limit of a transaction, in units.
const DefaultCostLimit = 10_000_000

// CostingKind is the kind of kernel operation charged for.
type CostingKind uint8

const (
	KindInvoke CostingKind = iota + 1
	KindPushFrame
	KindAllocateNodeId
	KindCreateNode
	KindDropNode
	KindLockSubstate
	KindDropLock
	// intensity of reads and writes is the number of bytes
	KindReadSubstate
	KindWriteSubstate
	KindSetSubstate
	KindTakeSubstates
	KindScanSubstates
)

func (k CostingKind) String() string {
	switch k {
	case KindInvoke:
		return "Invoke"
	case KindPushFrame:
		return "PushFrame"
	case KindAllocateNodeId:
		return "AllocateNodeId"
	case KindCreateNode:
		return "CreateNode"
	case KindDropNode:
		return "DropNode"
	case KindLockSubstate:
		return "LockSubstate"
	case KindDropLock:
		return "DropLock"
	case KindReadSubstate:
		return "ReadSubstate"
	case KindWriteSubstate:
		return "WriteSubstate"
	case KindSetSubstate:
		return "SetSubstate"
	case KindTakeSubstates:
		return "TakeSubstates"
	case KindScanSubstates:
		return "ScanSubstates"
	}
	return fmt.Sprintf("CostingKind(%d)", uint8(k))
}

type ExecutionWeights map[CostingKind]uint64

type MeteredIntensities map[CostingKind]uint

// DefaultWeights charge whole units per operation and fractions of a unit
// per byte read or written.
var DefaultWeights = ExecutionWeights{
	KindInvoke:         100 << MeterInternalPrecisionBytes,
	KindPushFrame:      50 << MeterInternalPrecisionBytes,
	KindAllocateNodeId: 5 << MeterInternalPrecisionBytes,
	KindCreateNode:     50 << MeterInternalPrecisionBytes,
	KindDropNode:       50 << MeterInternalPrecisionBytes,
	KindLockSubstate:   10 << MeterInternalPrecisionBytes,
	KindDropLock:       1 << MeterInternalPrecisionBytes,
	KindReadSubstate:   1 << (MeterInternalPrecisionBytes - 4),
	KindWriteSubstate:  1 << (MeterInternalPrecisionBytes - 2),
	KindSetSubstate:    10 << MeterInternalPrecisionBytes,
	KindTakeSubstates:  10 << MeterInternalPrecisionBytes,
	KindScanSubstates:  10 << MeterInternalPrecisionBytes,
}

// Meter collects the cost of kernel operations and enforces a limit. Each
// call adds intensity multiplied by the weight of the kind.
type Meter struct {
	used  uint64
	limit uint64

	intensities MeteredIntensities
	weights     ExecutionWeights
}

type MeterOption func(*Meter)

// NewMeter constructs a meter with a limit in units.
func NewMeter(limit uint, options ...MeterOption) *Meter {
	m := &Meter{
		limit:       uint64(limit) << MeterInternalPrecisionBytes,
		weights:     DefaultWeights,
		intensities: make(MeteredIntensities),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// WithWeights sets the weights of the costing kinds.
func WithWeights(weights ExecutionWeights) MeterOption {
	return func(m *Meter) {
		m.weights = weights
	}
}

// MeterCost captures the cost of an operation and returns an error if it goes beyond the limit.
func (m *Meter) MeterCost(kind CostingKind, intensity uint) error {
	m.intensities[kind] += intensity
	w, ok := m.weights[kind]
	if !ok {
		return nil
	}
	m.used += w * uint64(intensity)
	if m.used > m.limit {
		return errors.NewCostingError(
			uint64(m.TotalCostUsed()),
			uint64(m.TotalCostLimit()))
	}
	return nil
}

// Intensities returns all the measured intensities.
func (m *Meter) Intensities() MeteredIntensities {
	return m.intensities
}

// TotalCostUsed returns the total cost used, in units.
func (m *Meter) TotalCostUsed() uint {
	return uint(m.used >> MeterInternalPrecisionBytes)
}

// TotalCostLimit returns the cost limit, in units.
func (m *Meter) TotalCostLimit() uint {
	return uint(m.limit >> MeterInternalPrecisionBytes)
}
