package callframe

import (
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/model/substate"
)

// Message is the ownership transfer attached to an invocation's input or
// output: the nodes whose ownership moves to the other frame and the
// references the other frame receives.
type Message struct {
	NodesToMove    []substate.NodeId
	NodeRefsToCopy []substate.NodeId
}

// MessageFromValue moves every node owned by v and copies every node it
// references.
func MessageFromValue(v codec.IndexedValue) Message {
	return Message{
		NodesToMove:    slices.Clone(v.OwnedNodes()),
		NodeRefsToCopy: slices.Clone(v.References()),
	}
}

// Add appends the nodes and references of other, skipping duplicates.
func (m *Message) Add(other Message) {
	for _, id := range other.NodesToMove {
		if !slices.Contains(m.NodesToMove, id) {
			m.NodesToMove = append(m.NodesToMove, id)
		}
	}
	for _, id := range other.NodeRefsToCopy {
		if !slices.Contains(m.NodeRefsToCopy, id) {
			m.NodeRefsToCopy = append(m.NodeRefsToCopy, id)
		}
	}
}

// Moves returns true if id is in the nodes to move.
func (m Message) Moves(id substate.NodeId) bool {
	return slices.Contains(m.NodesToMove, id)
}

func (m Message) IsEmpty() bool {
	return len(m.NodesToMove) == 0 && len(m.NodeRefsToCopy) == 0
}
