// Package logger collects the logs emitted by executed code and logs kernel
// events.
package logger

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/onflow/flow-kernel/kernel/actor"
	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/model/substate"
)

const Name = "logger"

// Log is one log line emitted by executed code.
type Log struct {
	Level   zerolog.Level
	Message string
}

// Module keeps the application logs of the transaction and writes kernel
// events to a zerolog logger at debug level.
type Module struct {
	module.NoopModule

	log  zerolog.Logger
	logs []Log
}

var _ module.Module = (*Module)(nil)

func New(log zerolog.Logger) *Module {
	return &Module{
		log: log.With().Str("component", "kernel_logger").Logger(),
	}
}

func (m *Module) Name() string { return Name }

// Logs returns the application logs in emission order.
func (m *Module) Logs() []Log {
	return m.logs
}

// AddLog records an application log through the logger module of the
// pipeline api exposes.
func AddLog(api module.API, level zerolog.Level, message string) error {
	found, ok := api.Modules().Find(Name)
	if !ok {
		return fmt.Errorf("module %s is not enabled", Name)
	}
	m, ok := found.(*Module)
	if !ok {
		return fmt.Errorf("module %s has unexpected type %T", Name, found)
	}
	m.logs = append(m.logs, Log{Level: level, Message: message})
	return nil
}

func (m *Module) BeforePushFrame(api module.API, callee actor.Actor, msg callframe.Message, _ codec.IndexedValue) error {
	m.log.Debug().
		Int("depth", api.CurrentDepth()+1).
		Str("actor", callee.String()).
		Int("moved_nodes", len(msg.NodesToMove)).
		Int("copied_refs", len(msg.NodeRefsToCopy)).
		Msg("push frame")
	return nil
}

func (m *Module) AfterPopFrame(api module.API) error {
	m.log.Debug().
		Int("depth", api.CurrentDepth()).
		Msg("pop frame")
	return nil
}

func (m *Module) AfterCreateNode(_ module.API, id substate.NodeId) error {
	m.log.Debug().
		Str("node_id", id.String()).
		Str("entity_type", id.EntityType().String()).
		Msg("node created")
	return nil
}

func (m *Module) BeforeDropNode(_ module.API, id substate.NodeId) error {
	m.log.Debug().
		Str("node_id", id.String()).
		Msg("dropping node")
	return nil
}

func (m *Module) BeforeLockSubstate(
	_ module.API,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) error {
	m.log.Debug().
		Str("substate_id", substate.NewSubstateId(id, partition, key).String()).
		Str("flags", flags.String()).
		Msg("locking substate")
	return nil
}

func (m *Module) BeforeSetSubstate(
	_ module.API,
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	size int,
) error {
	m.log.Debug().
		Str("substate_id", substate.NewSubstateId(id, partition, key).String()).
		Int("size", size).
		Msg("setting substate")
	return nil
}

func (m *Module) OnTakeSubstates(_ module.API, id substate.NodeId, partition substate.PartitionNumber, count int, size int) error {
	m.log.Debug().
		Str("node_id", id.String()).
		Uint8("partition", uint8(partition)).
		Int("count", count).
		Int("size", size).
		Msg("took substates")
	return nil
}
