// Package codec encodes substate values and extracts the node ids every
// value owns or references.
//
// Values are deterministic CBOR. An owned node is encoded as Own, a CBOR
// byte string with tag 60001; a reference is encoded as Reference, tag 60002.
package codec

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/onflow/flow-kernel/model/substate"
)

const (
	OwnTagNumber       = 60001
	ReferenceTagNumber = 60002
)

// Own marks a node id as owned by the value holding it.
type Own substate.NodeId

// Reference marks a node id as referenced by the value holding it.
type Reference substate.NodeId

func (o Own) NodeId() substate.NodeId { return substate.NodeId(o) }

func (r Reference) NodeId() substate.NodeId { return substate.NodeId(r) }

// The modes are package variables with initializers so that package level
// values such as Null can be encoded during initialization.
var (
	tags    = newTagSet()
	encMode = mustEncMode(tags)
	decMode = mustDecMode(cbor.DecOptions{}, tags)
	// scanMode decodes without registered tags so that owned and referenced
	// ids surface as cbor.Tag values.
	scanMode = mustDecMode(cbor.DecOptions{}, nil)
)

func newTagSet() cbor.TagSet {
	tags := cbor.NewTagSet()
	mustAddTag(tags, reflect.TypeOf(Own{}), OwnTagNumber)
	mustAddTag(tags, reflect.TypeOf(Reference{}), ReferenceTagNumber)
	return tags
}

func mustEncMode(tags cbor.TagSet) cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncModeWithTags(tags)
	if err != nil {
		panic(fmt.Errorf("failed to create cbor encoding mode: %w", err))
	}
	return mode
}

func mustDecMode(options cbor.DecOptions, tags cbor.TagSet) cbor.DecMode {
	if tags == nil {
		mode, err := options.DecMode()
		if err != nil {
			panic(fmt.Errorf("failed to create cbor scanning mode: %w", err))
		}
		return mode
	}
	mode, err := options.DecModeWithTags(tags)
	if err != nil {
		panic(fmt.Errorf("failed to create cbor decoding mode: %w", err))
	}
	return mode
}

func mustAddTag(tags cbor.TagSet, typ reflect.Type, number uint64) {
	err := tags.Add(
		cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
		typ,
		number)
	if err != nil {
		panic(fmt.Errorf("failed to register cbor tag %d: %w", number, err))
	}
}

// Encode encodes v in the deterministic encoding.
func Encode(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode decodes b into v.
func Decode(b []byte, v interface{}) error {
	return decMode.Unmarshal(b, v)
}

// MustEncode encodes v and panics on error. It is meant for constant values.
func MustEncode(v interface{}) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return b
}
