package unittest

import (
	crand "crypto/rand"
	"fmt"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/model/substate"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	read, err := crand.Read(b)
	if err != nil {
		panic("cannot read random bytes")
	}
	if read != n {
		panic(fmt.Errorf("cannot read enough random bytes (got %d of %d)", read, n))
	}
	return b
}

// TxHashFixture returns a random transaction hash.
func TxHashFixture() [32]byte {
	var hash [32]byte
	_, _ = crand.Read(hash[:])
	return hash
}

// NodeIdFixture returns a random node id of the given entity type.
func NodeIdFixture(entityType substate.EntityType) substate.NodeId {
	var rid [substate.NodeIdRIDLength]byte
	_, _ = crand.Read(rid[:])
	return substate.NewNodeId(entityType, rid)
}

// NodeIdFromByte returns a node id whose derived bytes all equal b, for
// tests that need a stable order.
func NodeIdFromByte(entityType substate.EntityType, b byte) substate.NodeId {
	var rid [substate.NodeIdRIDLength]byte
	for i := range rid {
		rid[i] = b
	}
	return substate.NewNodeId(entityType, rid)
}

// PackageFixture is the package of the blueprints returned by
// BlueprintFixture.
var PackageFixture = NodeIdFromByte(substate.EntityTypeGlobalPackage, 0xaa)

func BlueprintFixture(name string) codec.Blueprint {
	return codec.NewBlueprint(PackageFixture, name)
}

// ObjectSubstatesFixture returns the substates of an object of blueprint
// holding state in its first main field.
func ObjectSubstatesFixture(blueprint codec.Blueprint, global bool, state interface{}) codec.NodeSubstates {
	return codec.NewNodeSubstates(codec.ObjectTypeInfo(blueprint, global)).
		Set(substate.MainPartition, substate.FieldKey(0), codec.MustFromTyped(state))
}
