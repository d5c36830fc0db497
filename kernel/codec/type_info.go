package codec

import (
	"fmt"

	"github.com/onflow/flow-kernel/model/substate"
)

// ObjectKind tells whether a node is a blueprint object or a plain key value
// store.
type ObjectKind uint8

const (
	ObjectKindObject ObjectKind = iota + 1
	ObjectKindKeyValueStore
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectKindObject:
		return "object"
	case ObjectKindKeyValueStore:
		return "key_value_store"
	}
	return fmt.Sprintf("ObjectKind(%d)", uint8(k))
}

// Blueprint identifies the code an object is an instance of.
type Blueprint struct {
	PackageAddress substate.NodeId `cbor:"1,keyasint"`
	Name           string          `cbor:"2,keyasint"`
}

func NewBlueprint(packageAddress substate.NodeId, name string) Blueprint {
	return Blueprint{PackageAddress: packageAddress, Name: name}
}

func (b Blueprint) String() string {
	return fmt.Sprintf("%s::%s", b.PackageAddress, b.Name)
}

// TypeInfo is the value of the type info substate every node carries.
type TypeInfo struct {
	Kind      ObjectKind `cbor:"1,keyasint"`
	Blueprint Blueprint  `cbor:"2,keyasint"`
	Global    bool       `cbor:"3,keyasint"`
}

// ObjectTypeInfo returns the type info of an object.
func ObjectTypeInfo(blueprint Blueprint, global bool) TypeInfo {
	return TypeInfo{Kind: ObjectKindObject, Blueprint: blueprint, Global: global}
}

// KeyValueStoreTypeInfo returns the type info of a key value store.
func KeyValueStoreTypeInfo() TypeInfo {
	return TypeInfo{Kind: ObjectKindKeyValueStore}
}

// Value encodes the type info as a substate value.
func (t TypeInfo) Value() IndexedValue {
	return MustFromTyped(t)
}

// DecodeTypeInfo decodes a type info substate.
func DecodeTypeInfo(v IndexedValue) (TypeInfo, error) {
	var info TypeInfo
	err := v.AsTyped(&info)
	if err != nil {
		return TypeInfo{}, fmt.Errorf("failed to decode type info: %w", err)
	}
	if info.Kind != ObjectKindObject && info.Kind != ObjectKindKeyValueStore {
		return TypeInfo{}, fmt.Errorf("invalid object kind %d", info.Kind)
	}
	return info, nil
}
