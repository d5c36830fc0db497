package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/exp/slices"

	"github.com/onflow/flow-kernel/model/substate"
)

// IndexedValue is an encoded substate value together with the node ids it
// owns and references. Both lists are sorted and free of duplicates.
type IndexedValue struct {
	raw        []byte
	references []substate.NodeId
	ownedNodes []substate.NodeId
}

// FromTyped encodes v and indexes the result.
func FromTyped(v interface{}) (IndexedValue, error) {
	raw, err := Encode(v)
	if err != nil {
		return IndexedValue{}, fmt.Errorf("failed to encode value: %w", err)
	}
	return FromBytes(raw)
}

// MustFromTyped is FromTyped for values that are known to be encodable.
func MustFromTyped(v interface{}) IndexedValue {
	value, err := FromTyped(v)
	if err != nil {
		panic(err)
	}
	return value
}

// FromBytes indexes an encoded value. A value that owns the same node twice
// is rejected.
func FromBytes(raw []byte) (IndexedValue, error) {
	var decoded interface{}
	err := scanMode.Unmarshal(raw, &decoded)
	if err != nil {
		return IndexedValue{}, fmt.Errorf("failed to decode value: %w", err)
	}

	v := IndexedValue{
		raw: append([]byte(nil), raw...),
	}

	err = v.index(decoded)
	if err != nil {
		return IndexedValue{}, err
	}

	slices.SortFunc(v.ownedNodes, compareNodeIds)
	for i := 1; i < len(v.ownedNodes); i++ {
		if v.ownedNodes[i] == v.ownedNodes[i-1] {
			return IndexedValue{}, fmt.Errorf("node %s is owned twice", v.ownedNodes[i])
		}
	}

	slices.SortFunc(v.references, compareNodeIds)
	v.references = slices.Compact(v.references)

	return v, nil
}

func (v *IndexedValue) index(decoded interface{}) error {
	switch value := decoded.(type) {
	case cbor.Tag:
		switch value.Number {
		case OwnTagNumber, ReferenceTagNumber:
			content, ok := value.Content.([]byte)
			if !ok {
				return fmt.Errorf("tag %d must hold a byte string", value.Number)
			}
			id, err := substate.BytesToNodeId(content)
			if err != nil {
				return fmt.Errorf("tag %d: %w", value.Number, err)
			}
			if value.Number == OwnTagNumber {
				v.ownedNodes = append(v.ownedNodes, id)
			} else {
				v.references = append(v.references, id)
			}
			return nil
		}
		return v.index(value.Content)
	case []interface{}:
		for _, item := range value {
			if err := v.index(item); err != nil {
				return err
			}
		}
	case map[interface{}]interface{}:
		for key, item := range value {
			if err := v.index(key); err != nil {
				return err
			}
			if err := v.index(item); err != nil {
				return err
			}
		}
	}
	return nil
}

func compareNodeIds(a, b substate.NodeId) int {
	return a.Compare(b)
}

// Bytes returns the encoded value.
func (v IndexedValue) Bytes() []byte { return v.raw }

// Len returns the size of the encoded value.
func (v IndexedValue) Len() int { return len(v.raw) }

// References returns the sorted node ids the value refers to.
func (v IndexedValue) References() []substate.NodeId { return v.references }

// OwnedNodes returns the sorted node ids the value owns.
func (v IndexedValue) OwnedNodes() []substate.NodeId { return v.ownedNodes }

// IsEmpty returns true for the zero IndexedValue.
func (v IndexedValue) IsEmpty() bool { return len(v.raw) == 0 }

// AsTyped decodes the value into out.
func (v IndexedValue) AsTyped(out interface{}) error {
	return Decode(v.raw, out)
}

// Equal returns true if both values have the same encoding.
func (v IndexedValue) Equal(other IndexedValue) bool {
	return string(v.raw) == string(other.raw)
}

func (v IndexedValue) String() string {
	return fmt.Sprintf("IndexedValue(%d bytes, %d owned, %d refs)", len(v.raw), len(v.ownedNodes), len(v.references))
}

// Null is the encoded nil value, used as the content of key value store
// entries that were never written.
var Null = MustFromTyped(nil)
