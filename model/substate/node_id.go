package substate

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	// NodeIdLength is the size of a node id: one entity type byte followed by
	// the derived id bytes.
	NodeIdLength = 30
	// NodeIdRIDLength is the size of the derived part of a node id.
	NodeIdRIDLength = NodeIdLength - 1
)

// EntityType is the first byte of every node id. It tells the kernel what
// kind of node it is looking at without a store lookup.
type EntityType uint8

const (
	EntityTypeGlobalPackage EntityType = iota + 0x0d
	EntityTypeGlobalFungibleResource
	EntityTypeGlobalNonFungibleResource
	EntityTypeGlobalGenericComponent
	EntityTypeGlobalAccount
	EntityTypeGlobalIdentity
	EntityTypeGlobalVirtualSecp256k1Account
	EntityTypeGlobalVirtualEd25519Account
	EntityTypeGlobalVirtualSecp256k1Identity
	EntityTypeGlobalVirtualEd25519Identity

	EntityTypeInternalFungibleVault EntityType = iota + 0x50
	EntityTypeInternalNonFungibleVault
	EntityTypeInternalGenericComponent
	EntityTypeInternalKeyValueStore
	EntityTypeInternalIndex
	EntityTypeInternalSortedIndex
)

var entityTypeNames = map[EntityType]string{
	EntityTypeGlobalPackage:                  "GlobalPackage",
	EntityTypeGlobalFungibleResource:         "GlobalFungibleResource",
	EntityTypeGlobalNonFungibleResource:      "GlobalNonFungibleResource",
	EntityTypeGlobalGenericComponent:         "GlobalGenericComponent",
	EntityTypeGlobalAccount:                  "GlobalAccount",
	EntityTypeGlobalIdentity:                 "GlobalIdentity",
	EntityTypeGlobalVirtualSecp256k1Account:  "GlobalVirtualSecp256k1Account",
	EntityTypeGlobalVirtualEd25519Account:    "GlobalVirtualEd25519Account",
	EntityTypeGlobalVirtualSecp256k1Identity: "GlobalVirtualSecp256k1Identity",
	EntityTypeGlobalVirtualEd25519Identity:   "GlobalVirtualEd25519Identity",
	EntityTypeInternalFungibleVault:          "InternalFungibleVault",
	EntityTypeInternalNonFungibleVault:       "InternalNonFungibleVault",
	EntityTypeInternalGenericComponent:       "InternalGenericComponent",
	EntityTypeInternalKeyValueStore:          "InternalKeyValueStore",
	EntityTypeInternalIndex:                  "InternalIndex",
	EntityTypeInternalSortedIndex:            "InternalSortedIndex",
}

func (t EntityType) String() string {
	if name, ok := entityTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EntityType(%d)", uint8(t))
}

// IsValid returns true if t is a known entity type.
func (t EntityType) IsValid() bool {
	_, ok := entityTypeNames[t]
	return ok
}

// IsGlobal returns true for entity types that live at a global address.
func (t EntityType) IsGlobal() bool {
	return t >= EntityTypeGlobalPackage && t <= EntityTypeGlobalVirtualEd25519Identity
}

// IsInternal returns true for entity types that are only reachable through
// their owner.
func (t EntityType) IsInternal() bool {
	return t >= EntityTypeInternalFungibleVault && t <= EntityTypeInternalSortedIndex
}

// IsVirtual returns true for global addresses derived from a public key.
// Nodes with these ids are materialized on first access.
func (t EntityType) IsVirtual() bool {
	switch t {
	case EntityTypeGlobalVirtualSecp256k1Account,
		EntityTypeGlobalVirtualEd25519Account,
		EntityTypeGlobalVirtualSecp256k1Identity,
		EntityTypeGlobalVirtualEd25519Identity:
		return true
	}
	return false
}

// IsObject returns true for internal nodes that carry blueprint state.
func (t EntityType) IsObject() bool {
	switch t {
	case EntityTypeInternalFungibleVault,
		EntityTypeInternalNonFungibleVault,
		EntityTypeInternalGenericComponent:
		return true
	}
	return false
}

// IsKeyValueStore returns true for collection-like internal nodes.
func (t EntityType) IsKeyValueStore() bool {
	switch t {
	case EntityTypeInternalKeyValueStore,
		EntityTypeInternalIndex,
		EntityTypeInternalSortedIndex:
		return true
	}
	return false
}

// NodeId identifies a node: an object, a key-value store or a global
// address anchor.
type NodeId [NodeIdLength]byte

// ZeroNodeId is the empty node id. It is never allocated.
var ZeroNodeId = NodeId{}

// NewNodeId builds a node id out of an entity type and the derived id bytes.
func NewNodeId(entityType EntityType, rid [NodeIdRIDLength]byte) NodeId {
	var id NodeId
	id[0] = byte(entityType)
	copy(id[1:], rid[:])
	return id
}

// NewVirtualNodeId derives the virtual global address owned by a public key.
// The result only depends on its inputs.
func NewVirtualNodeId(entityType EntityType, publicKey []byte) NodeId {
	hash := blake2b.Sum256(publicKey)
	var rid [NodeIdRIDLength]byte
	copy(rid[:], hash[len(hash)-NodeIdRIDLength:])
	return NewNodeId(entityType, rid)
}

// BytesToNodeId converts b into a node id. It returns an error if b does not
// have the exact node id length.
func BytesToNodeId(b []byte) (NodeId, error) {
	var id NodeId
	if len(b) != NodeIdLength {
		return id, fmt.Errorf("invalid node id length %d, expected %d", len(b), NodeIdLength)
	}
	copy(id[:], b)
	return id, nil
}

// HexToNodeId parses a hex encoded node id.
func HexToNodeId(h string) (NodeId, error) {
	b, err := hex.DecodeString(h)
	if err != nil {
		return NodeId{}, fmt.Errorf("invalid node id hex %q: %w", h, err)
	}
	return BytesToNodeId(b)
}

// EntityType returns the entity type encoded in the first byte.
func (id NodeId) EntityType() EntityType {
	return EntityType(id[0])
}

// IsGlobal returns true if the node lives at a global address.
func (id NodeId) IsGlobal() bool {
	return id.EntityType().IsGlobal()
}

// IsInternal returns true if the node is only reachable through its owner.
func (id NodeId) IsInternal() bool {
	return id.EntityType().IsInternal()
}

// IsVirtual returns true if the node id is a derived virtual address.
func (id NodeId) IsVirtual() bool {
	return id.EntityType().IsVirtual()
}

// Bytes returns the byte representation of the node id.
func (id NodeId) Bytes() []byte { return id[:] }

// Hex returns the hex string representation of the node id.
func (id NodeId) Hex() string {
	return hex.EncodeToString(id[:])
}

// String returns the string representation of the node id.
func (id NodeId) String() string {
	return id.Hex()
}

// Compare orders node ids by their bytes.
func (id NodeId) Compare(other NodeId) int {
	for i := 0; i < NodeIdLength; i++ {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
