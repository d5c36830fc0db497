package logging

import (
	"github.com/onflow/flow-kernel/model/substate"
)

func ID(id substate.NodeId) string {
	return id.Hex()
}

func IDs(ids []substate.NodeId) []string {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, id.Hex())
	}
	return ss
}
