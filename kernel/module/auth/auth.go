// Package auth authorizes every invocation before its frame is pushed.
package auth

import (
	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/module"
)

const Name = "auth"

// Zone is the authorization context of one frame.
type Zone struct {
	Actor actor.Actor
	Depth int
}

// Module checks invocations against a policy and keeps one zone per frame
// pushed after a successful check.
type Module struct {
	module.NoopModule

	policy Policy
	zones  []Zone
}

var _ module.Module = (*Module)(nil)

func New(policy Policy) *Module {
	if policy == nil {
		policy = AllowAll{}
	}
	return &Module{policy: policy}
}

func (m *Module) Name() string { return Name }

func (m *Module) BeforePushFrame(api module.API, callee actor.Actor, msg callframe.Message, _ codec.IndexedValue) error {
	var caller *actor.Actor
	if current, ok := api.CurrentActor(); ok {
		caller = &current
	}

	err := m.policy.Authorize(callee, caller, msg)
	if err != nil {
		return err
	}

	m.zones = append(m.zones, Zone{Actor: callee, Depth: api.CurrentDepth() + 1})
	return nil
}

func (m *Module) AfterPopFrame(module.API) error {
	if len(m.zones) > 0 {
		m.zones = m.zones[:len(m.zones)-1]
	}
	return nil
}

// CurrentZone returns the zone of the innermost frame.
func (m *Module) CurrentZone() (Zone, bool) {
	if len(m.zones) == 0 {
		return Zone{}, false
	}
	return m.zones[len(m.zones)-1], true
}

// Depth returns the number of open zones.
func (m *Module) Depth() int {
	return len(m.zones)
}
