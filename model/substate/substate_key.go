package substate

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// PartitionNumber groups the substates of a node by role.
type PartitionNumber uint8

const (
	// TypeInfoPartition holds the type metadata every node carries.
	TypeInfoPartition PartitionNumber = 0
	// MainPartition holds the blueprint state of an object, or the entries
	// of a key-value store.
	MainPartition PartitionNumber = 64
	// AccessRulesPartition holds access rules of global objects.
	AccessRulesPartition PartitionNumber = 65
	// MetadataPartition holds metadata entries of global objects.
	MetadataPartition PartitionNumber = 66
	// RoyaltyPartition holds royalty configuration of global objects.
	RoyaltyPartition PartitionNumber = 67
)

// TypeInfoKey is the key of the type info substate in TypeInfoPartition.
var TypeInfoKey = FieldKey(0)

// SubstateKeyKind tells how a substate key is addressed within its partition.
type SubstateKeyKind uint8

const (
	SubstateKeyKindField SubstateKeyKind = iota + 1
	SubstateKeyKindMap
	SubstateKeyKindSorted
)

func (k SubstateKeyKind) String() string {
	switch k {
	case SubstateKeyKindField:
		return "field"
	case SubstateKeyKindMap:
		return "map"
	case SubstateKeyKindSorted:
		return "sorted"
	}
	return fmt.Sprintf("SubstateKeyKind(%d)", uint8(k))
}

// SubstateKey addresses one substate within a partition. It is one of a
// field index, an opaque map key, or a map key with a sort prefix.
type SubstateKey struct {
	kind   SubstateKeyKind
	field  uint8
	sort   uint16
	mapKey []byte
}

// FieldKey returns the key of a field substate.
func FieldKey(index uint8) SubstateKey {
	return SubstateKey{kind: SubstateKeyKindField, field: index}
}

// MapKey returns the key of a map entry substate.
func MapKey(key []byte) SubstateKey {
	return SubstateKey{kind: SubstateKeyKindMap, mapKey: append([]byte(nil), key...)}
}

// SortedKey returns the key of a sorted index entry. Entries are scanned in
// ascending (sort, key) order.
func SortedKey(sort uint16, key []byte) SubstateKey {
	return SubstateKey{kind: SubstateKeyKindSorted, sort: sort, mapKey: append([]byte(nil), key...)}
}

// Kind returns the key kind.
func (k SubstateKey) Kind() SubstateKeyKind { return k.kind }

// Field returns the field index of a field key.
func (k SubstateKey) Field() uint8 { return k.field }

// SortPrefix returns the sort prefix of a sorted key.
func (k SubstateKey) SortPrefix() uint16 { return k.sort }

// MapKeyBytes returns the map key of a map or sorted key.
func (k SubstateKey) MapKeyBytes() []byte { return k.mapKey }

// Equal returns true if both keys address the same substate.
func (k SubstateKey) Equal(other SubstateKey) bool {
	return k.kind == other.kind &&
		k.field == other.field &&
		k.sort == other.sort &&
		bytes.Equal(k.mapKey, other.mapKey)
}

// DBKey returns the unambiguous database encoding of the key: the kind tag
// followed by the payload. Sorted prefixes are big endian so that byte order
// matches sort order.
func (k SubstateKey) DBKey() []byte {
	switch k.kind {
	case SubstateKeyKindField:
		return []byte{byte(k.kind), k.field}
	case SubstateKeyKindMap:
		buf := make([]byte, 0, 1+len(k.mapKey))
		buf = append(buf, byte(k.kind))
		return append(buf, k.mapKey...)
	case SubstateKeyKindSorted:
		buf := make([]byte, 3, 3+len(k.mapKey))
		buf[0] = byte(k.kind)
		binary.BigEndian.PutUint16(buf[1:], k.sort)
		return append(buf, k.mapKey...)
	}
	panic(fmt.Sprintf("invalid substate key kind %d", k.kind))
}

// String returns a readable representation of the key.
func (k SubstateKey) String() string {
	switch k.kind {
	case SubstateKeyKindField:
		return fmt.Sprintf("field(%d)", k.field)
	case SubstateKeyKindMap:
		return fmt.Sprintf("map(%s)", hex.EncodeToString(k.mapKey))
	case SubstateKeyKindSorted:
		return fmt.Sprintf("sorted(%d,%s)", k.sort, hex.EncodeToString(k.mapKey))
	}
	return "invalid"
}

// SubstateKeyFromDBKey decodes a key produced by DBKey.
func SubstateKeyFromDBKey(dbKey []byte) (SubstateKey, error) {
	if len(dbKey) == 0 {
		return SubstateKey{}, fmt.Errorf("empty substate db key")
	}
	switch SubstateKeyKind(dbKey[0]) {
	case SubstateKeyKindField:
		if len(dbKey) != 2 {
			return SubstateKey{}, fmt.Errorf("invalid field key length %d", len(dbKey))
		}
		return FieldKey(dbKey[1]), nil
	case SubstateKeyKindMap:
		return MapKey(dbKey[1:]), nil
	case SubstateKeyKindSorted:
		if len(dbKey) < 3 {
			return SubstateKey{}, fmt.Errorf("invalid sorted key length %d", len(dbKey))
		}
		return SortedKey(binary.BigEndian.Uint16(dbKey[1:3]), dbKey[3:]), nil
	}
	return SubstateKey{}, fmt.Errorf("invalid substate key kind %d", dbKey[0])
}

// MustSubstateKeyFromDBKey decodes a key that is known to be well formed.
func MustSubstateKeyFromDBKey(dbKey []byte) SubstateKey {
	key, err := SubstateKeyFromDBKey(dbKey)
	if err != nil {
		panic(err)
	}
	return key
}

// SubstateId fully addresses a substate.
type SubstateId struct {
	NodeId    NodeId
	Partition PartitionNumber
	Key       SubstateKey
}

// NewSubstateId constructs a SubstateId.
func NewSubstateId(nodeId NodeId, partition PartitionNumber, key SubstateKey) SubstateId {
	return SubstateId{NodeId: nodeId, Partition: partition, Key: key}
}

func (id SubstateId) String() string {
	return fmt.Sprintf("%s/%d/%s", id.NodeId, id.Partition, id.Key)
}

// Encoded returns the database encoding of the substate id.
func (id SubstateId) Encoded() []byte {
	return EncodeSubstateId(id.NodeId, id.Partition, id.Key.DBKey())
}

// EncodeSubstateId encodes (node, partition, db key) into a single database
// key: node bytes, one partition byte, and the db key up to the end.
func EncodeSubstateId(nodeId NodeId, partition PartitionNumber, dbKey []byte) []byte {
	buf := make([]byte, 0, NodeIdLength+1+len(dbKey))
	buf = append(buf, nodeId[:]...)
	buf = append(buf, byte(partition))
	return append(buf, dbKey...)
}

// PartitionPrefix returns the common prefix of every substate id encoded
// within the given partition.
func PartitionPrefix(nodeId NodeId, partition PartitionNumber) []byte {
	return EncodeSubstateId(nodeId, partition, nil)
}

// DecodeSubstateId decodes a key produced by EncodeSubstateId.
func DecodeSubstateId(b []byte) (NodeId, PartitionNumber, []byte, error) {
	if len(b) < NodeIdLength+1 {
		return NodeId{}, 0, nil, fmt.Errorf("encoded substate id too short: %d bytes", len(b))
	}
	var nodeId NodeId
	copy(nodeId[:], b[:NodeIdLength])
	partition := PartitionNumber(b[NodeIdLength])
	dbKey := append([]byte(nil), b[NodeIdLength+1:]...)
	return nodeId, partition, dbKey, nil
}
