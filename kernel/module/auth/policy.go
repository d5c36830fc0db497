package auth

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/errors"
)

// Policy decides whether caller may invoke callee. caller is nil for
// invocations made from the transaction root.
type Policy interface {
	Authorize(callee actor.Actor, caller *actor.Actor, msg callframe.Message) error
}

// AllowAll authorizes every invocation.
type AllowAll struct{}

var _ Policy = AllowAll{}

func (AllowAll) Authorize(actor.Actor, *actor.Actor, callframe.Message) error {
	return nil
}

// StaticPolicy denies a fixed set of blueprint functions and methods,
// whatever the receiver.
type StaticPolicy struct {
	denied map[string]string
}

var _ Policy = (*StaticPolicy)(nil)

func NewStaticPolicy() *StaticPolicy {
	return &StaticPolicy{denied: make(map[string]string)}
}

// Deny denies every invocation with the blueprint and ident of callee.
func (p *StaticPolicy) Deny(callee actor.Actor, reason string) *StaticPolicy {
	p.denied[key(callee)] = reason
	return p
}

func (p *StaticPolicy) Authorize(callee actor.Actor, _ *actor.Actor, _ callframe.Message) error {
	reason, ok := p.denied[key(callee)]
	if !ok {
		return nil
	}
	return errors.NewAuthorizationDeniedError(callee.String(), reason)
}

func key(a actor.Actor) string {
	return a.Blueprint.String() + "::" + a.Ident
}
