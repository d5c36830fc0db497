package substate

import (
	"bytes"
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// UpdateKind tells whether a database update writes or removes a value.
type UpdateKind uint8

const (
	UpdateSet UpdateKind = iota + 1
	UpdateDelete
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateSet:
		return "set"
	case UpdateDelete:
		return "delete"
	}
	return "unknown"
}

// DatabaseUpdate is one change to the persisted value of a substate.
type DatabaseUpdate struct {
	Kind  UpdateKind
	Value []byte
}

// StateUpdate is a database update along with the substate it applies to.
type StateUpdate struct {
	NodeId    NodeId
	Partition PartitionNumber
	DBKey     []byte
	Update    DatabaseUpdate
}

// EncodedId returns the database key of the updated substate.
func (u StateUpdate) EncodedId() []byte {
	return EncodeSubstateId(u.NodeId, u.Partition, u.DBKey)
}

// StateUpdates collects the changes a transaction makes to the store. At most
// one update is kept per substate, the last one recorded.
type StateUpdates struct {
	updates map[string]StateUpdate
}

func NewStateUpdates() *StateUpdates {
	return &StateUpdates{
		updates: make(map[string]StateUpdate),
	}
}

// Set records a write of value to the substate.
func (s *StateUpdates) Set(nodeId NodeId, partition PartitionNumber, dbKey []byte, value []byte) {
	s.put(nodeId, partition, dbKey, DatabaseUpdate{
		Kind:  UpdateSet,
		Value: append([]byte(nil), value...),
	})
}

// Delete records the removal of the substate.
func (s *StateUpdates) Delete(nodeId NodeId, partition PartitionNumber, dbKey []byte) {
	s.put(nodeId, partition, dbKey, DatabaseUpdate{Kind: UpdateDelete})
}

func (s *StateUpdates) put(nodeId NodeId, partition PartitionNumber, dbKey []byte, update DatabaseUpdate) {
	key := append([]byte(nil), dbKey...)
	s.updates[string(EncodeSubstateId(nodeId, partition, key))] = StateUpdate{
		NodeId:    nodeId,
		Partition: partition,
		DBKey:     key,
		Update:    update,
	}
}

// Get returns the update recorded for the substate, if any.
func (s *StateUpdates) Get(nodeId NodeId, partition PartitionNumber, dbKey []byte) (DatabaseUpdate, bool) {
	update, ok := s.updates[string(EncodeSubstateId(nodeId, partition, dbKey))]
	return update.Update, ok
}

// Len returns the number of updated substates.
func (s *StateUpdates) Len() int {
	return len(s.updates)
}

// Updates returns all updates ordered by encoded substate id.
func (s *StateUpdates) Updates() []StateUpdate {
	keys := make([]string, 0, len(s.updates))
	for key := range s.updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]StateUpdate, 0, len(keys))
	for _, key := range keys {
		result = append(result, s.updates[key])
	}
	return result
}

// Merge applies other on top of s.
func (s *StateUpdates) Merge(other *StateUpdates) {
	for key, update := range other.updates {
		s.updates[key] = update
	}
}

// Equal returns true if both sets hold exactly the same updates.
func (s *StateUpdates) Equal(other *StateUpdates) bool {
	if s.Len() != other.Len() {
		return false
	}
	for key, update := range s.updates {
		o, ok := other.updates[key]
		if !ok || o.Update.Kind != update.Update.Kind || !bytes.Equal(o.Update.Value, update.Update.Value) {
			return false
		}
	}
	return true
}

// Hash returns a digest of the updates in canonical order. Two executions
// that produce the same updates produce the same hash.
func (s *StateUpdates) Hash() [32]byte {
	hasher, _ := blake2b.New256(nil)
	var length [4]byte
	for _, update := range s.Updates() {
		id := update.EncodedId()
		binary.BigEndian.PutUint32(length[:], uint32(len(id)))
		_, _ = hasher.Write(length[:])
		_, _ = hasher.Write(id)
		_, _ = hasher.Write([]byte{byte(update.Update.Kind)})
		binary.BigEndian.PutUint32(length[:], uint32(len(update.Update.Value)))
		_, _ = hasher.Write(length[:])
		_, _ = hasher.Write(update.Update.Value)
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}
