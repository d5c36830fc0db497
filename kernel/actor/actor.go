// Package actor describes who is executing in a call frame and with which
// privileges.
package actor

import (
	"fmt"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/model/substate"
)

// ExecutionMode restricts what the code currently running may do.
type ExecutionMode uint8

const (
	ModeKernel ExecutionMode = iota + 1
	ModeResolver
	ModeClient
	ModeSystem
	ModeKernelModule
	ModeDropNode
	ModeAutoDrop
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeKernel:
		return "Kernel"
	case ModeResolver:
		return "Resolver"
	case ModeClient:
		return "Client"
	case ModeSystem:
		return "System"
	case ModeKernelModule:
		return "KernelModule"
	case ModeDropNode:
		return "DropNode"
	case ModeAutoDrop:
		return "AutoDrop"
	}
	return fmt.Sprintf("ExecutionMode(%d)", uint8(m))
}

// Actor is the function or method executing in a call frame.
type Actor struct {
	Blueprint codec.Blueprint
	Ident     string
	// Receiver is nil for functions.
	Receiver *substate.NodeId
}

// Function returns the actor of a blueprint function.
func Function(blueprint codec.Blueprint, ident string) Actor {
	return Actor{Blueprint: blueprint, Ident: ident}
}

// Method returns the actor of a method called on receiver.
func Method(receiver substate.NodeId, blueprint codec.Blueprint, ident string) Actor {
	return Actor{Blueprint: blueprint, Ident: ident, Receiver: &receiver}
}

func (a Actor) IsMethod() bool {
	return a.Receiver != nil
}

// IsReceiver returns true if the actor is a method called on id.
func (a Actor) IsReceiver(id substate.NodeId) bool {
	return a.Receiver != nil && *a.Receiver == id
}

func (a Actor) String() string {
	if a.Receiver != nil {
		return fmt.Sprintf("%s::%s@%s", a.Blueprint, a.Ident, a.Receiver)
	}
	return fmt.Sprintf("%s::%s", a.Blueprint, a.Ident)
}
