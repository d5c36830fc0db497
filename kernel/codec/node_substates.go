package codec

import (
	"sort"

	"github.com/onflow/flow-kernel/model/substate"
)

// PartitionSubstates maps encoded substate keys to values.
type PartitionSubstates map[string]IndexedValue

// NodeSubstates holds all substates of a node, grouped by partition. The set
// of partitions of a node is fixed when the node is created.
type NodeSubstates map[substate.PartitionNumber]PartitionSubstates

// NewNodeSubstates returns node substates holding only the type info.
func NewNodeSubstates(info TypeInfo) NodeSubstates {
	substates := NodeSubstates{}
	substates.Set(substate.TypeInfoPartition, substate.TypeInfoKey, info.Value())
	return substates
}

// Set stores value under (partition, key), creating the partition if needed.
func (n NodeSubstates) Set(partition substate.PartitionNumber, key substate.SubstateKey, value IndexedValue) NodeSubstates {
	n.SetDBKey(partition, key.DBKey(), value)
	return n
}

// SetDBKey stores value under an already encoded key.
func (n NodeSubstates) SetDBKey(partition substate.PartitionNumber, dbKey []byte, value IndexedValue) {
	p, ok := n[partition]
	if !ok {
		p = PartitionSubstates{}
		n[partition] = p
	}
	p[string(dbKey)] = value
}

// WithPartition adds an empty partition.
func (n NodeSubstates) WithPartition(partition substate.PartitionNumber) NodeSubstates {
	if _, ok := n[partition]; !ok {
		n[partition] = PartitionSubstates{}
	}
	return n
}

// Get returns the value stored under (partition, key).
func (n NodeSubstates) Get(partition substate.PartitionNumber, key substate.SubstateKey) (IndexedValue, bool) {
	p, ok := n[partition]
	if !ok {
		return IndexedValue{}, false
	}
	value, ok := p[string(key.DBKey())]
	return value, ok
}

// TypeInfo decodes the type info substate.
func (n NodeSubstates) TypeInfo() (TypeInfo, bool, error) {
	value, ok := n.Get(substate.TypeInfoPartition, substate.TypeInfoKey)
	if !ok {
		return TypeInfo{}, false, nil
	}
	info, err := DecodeTypeInfo(value)
	return info, true, err
}

// Partitions returns the partition numbers in ascending order.
func (n NodeSubstates) Partitions() []substate.PartitionNumber {
	partitions := make([]substate.PartitionNumber, 0, len(n))
	for partition := range n {
		partitions = append(partitions, partition)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	return partitions
}

// SortedKeys returns the encoded keys of the partition in ascending order.
func (p PartitionSubstates) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// OwnedNodes returns every node owned by any substate, in substate order.
func (n NodeSubstates) OwnedNodes() []substate.NodeId {
	var owned []substate.NodeId
	for _, partition := range n.Partitions() {
		substates := n[partition]
		for _, key := range substates.SortedKeys() {
			owned = append(owned, substates[key].OwnedNodes()...)
		}
	}
	return owned
}

// References returns every node referenced by any substate, in substate
// order.
func (n NodeSubstates) References() []substate.NodeId {
	var refs []substate.NodeId
	for _, partition := range n.Partitions() {
		substates := n[partition]
		for _, key := range substates.SortedKeys() {
			refs = append(refs, substates[key].References()...)
		}
	}
	return refs
}

// Size returns the total encoded size of all substates.
func (n NodeSubstates) Size() int {
	size := 0
	for _, substates := range n {
		for key, value := range substates {
			size += len(key) + value.Len()
		}
	}
	return size
}
