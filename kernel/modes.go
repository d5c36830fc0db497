package kernel

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/errors"
)

type ExecutionMode = actor.ExecutionMode

type Actor = actor.Actor

const (
	ModeKernel       = actor.ModeKernel
	ModeResolver     = actor.ModeResolver
	ModeClient       = actor.ModeClient
	ModeSystem       = actor.ModeSystem
	ModeKernelModule = actor.ModeKernelModule
	ModeDropNode     = actor.ModeDropNode
	ModeAutoDrop     = actor.ModeAutoDrop
)

// VerifyModeTransition checks that code running in current may switch to
// next. The kernel may enter any mode, client code may only enter the system
// mode.
func VerifyModeTransition(current, next ExecutionMode) error {
	switch current {
	case ModeKernel:
		return nil
	case ModeClient:
		if next == ModeSystem {
			return nil
		}
	}
	return errors.NewInvalidModeTransitionError(current.String(), next.String())
}
