package track

import (
	"bytes"
	stdErrors "errors"

	"github.com/google/btree"

	"github.com/onflow/flow-kernel/kernel/codec"
	"github.com/onflow/flow-kernel/kernel/errors"
	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/storage"
)

// LockHandle identifies a lock acquired on the track.
type LockHandle = uint32

type trackedKind uint8

const (
	// read from the store, not found
	trackedReadNonExist trackedKind = iota + 1
	// read from the store, unchanged
	trackedUnmodified
	// did not exist before this transaction
	trackedNew
	// existed (or is assumed to have existed) before this transaction and
	// was written or removed
	trackedUpdated
)

type trackedSubstate struct {
	dbKey []byte
	kind  trackedKind
	// value is nil if the substate does not exist
	value *codec.IndexedValue
	// virtual values are served to lock holders but never persisted
	// unless written
	virtual bool

	readers uint32
	writer  bool
}

func (s *trackedSubstate) exists() bool {
	return s.value != nil
}

func (s *trackedSubstate) persisted() bool {
	return s.value != nil && !s.virtual
}

func (s *trackedSubstate) locked() bool {
	return s.writer || s.readers > 0
}

func (s *trackedSubstate) markWritten() {
	switch s.kind {
	case trackedReadNonExist:
		s.kind = trackedNew
	case trackedUnmodified:
		s.kind = trackedUpdated
	}
}

type trackedNode struct {
	created bool
	// partitions the node was created with, only set if created
	createdPartitions map[substate.PartitionNumber]struct{}
	partitions        map[substate.PartitionNumber]*btree.BTreeG[*trackedSubstate]
}

type lock struct {
	id       substate.SubstateId
	substate *trackedSubstate
	flags    substate.LockFlags
}

// Track is the overlay a transaction reads and writes persisted substates
// through. Reads are served from the store once and cached, writes are
// buffered until Finalize. Every substate access goes through a lock.
//
// Track is not safe for concurrent use.
type Track struct {
	db     storage.SubstateDatabase
	params Parameters

	nodes           map[substate.NodeId]*trackedNode
	locks           map[LockHandle]*lock
	nextHandle      LockHandle
	interactionUsed uint64
}

func New(db storage.SubstateDatabase, params Parameters) *Track {
	return &Track{
		db:     db,
		params: params,
		nodes:  make(map[substate.NodeId]*trackedNode),
		locks:  make(map[LockHandle]*lock),
	}
}

func newPartitionTree() *btree.BTreeG[*trackedSubstate] {
	return btree.NewG(16, func(a, b *trackedSubstate) bool {
		return bytes.Compare(a.dbKey, b.dbKey) < 0
	})
}

func (t *Track) node(id substate.NodeId) *trackedNode {
	node, ok := t.nodes[id]
	if !ok {
		node = &trackedNode{
			partitions: make(map[substate.PartitionNumber]*btree.BTreeG[*trackedSubstate]),
		}
		t.nodes[id] = node
	}
	return node
}

func (t *Track) partition(id substate.NodeId, partition substate.PartitionNumber) *btree.BTreeG[*trackedSubstate] {
	node := t.node(id)
	tree, ok := node.partitions[partition]
	if !ok {
		tree = newPartitionTree()
		node.partitions[partition] = tree
	}
	return tree
}

// InteractionUsed returns the number of bytes read from the store.
func (t *Track) InteractionUsed() uint64 {
	return t.interactionUsed
}

func (t *Track) updateInteraction(key []byte, value []byte) error {
	t.interactionUsed += uint64(len(key)) + uint64(len(value))
	if t.interactionUsed > t.params.MaxInteractionSizeAllowed {
		return errors.NewStoreInteractionLimitExceededError(
			t.interactionUsed,
			t.params.MaxInteractionSizeAllowed)
	}
	return nil
}

func (t *Track) checkSize(id substate.SubstateId, dbKey []byte, value codec.IndexedValue) error {
	keySize := uint64(len(dbKey))
	if keySize > t.params.MaxKeySizeAllowed {
		return errors.NewStateKeySizeLimitError(id, keySize, t.params.MaxKeySizeAllowed)
	}
	valueSize := uint64(value.Len())
	if valueSize > t.params.MaxValueSizeAllowed {
		return errors.NewStateValueSizeLimitError(id, valueSize, t.params.MaxValueSizeAllowed)
	}
	return nil
}

func (t *Track) decodeStored(id substate.SubstateId, raw []byte) (*codec.IndexedValue, error) {
	value, err := codec.FromBytes(raw)
	if err != nil {
		return nil, errors.NewEncodingFailuref(err, "stored substate %s", id)
	}
	return &value, nil
}

// load returns the tracked substate, reading it from the store on first
// access.
func (t *Track) load(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) (*trackedSubstate, error) {
	dbKey := key.DBKey()
	tree := t.partition(id, partition)
	if tracked, ok := tree.Get(&trackedSubstate{dbKey: dbKey}); ok {
		return tracked, nil
	}

	tracked := &trackedSubstate{dbKey: dbKey}
	if t.nodes[id].created {
		// nodes created in this transaction have nothing in the store
		tracked.kind = trackedReadNonExist
		tree.ReplaceOrInsert(tracked)
		return tracked, nil
	}

	raw, err := t.db.GetSubstate(id, partition, dbKey)
	switch {
	case stdErrors.Is(err, storage.ErrNotFound):
		tracked.kind = trackedReadNonExist
	case err != nil:
		return nil, errors.NewStorageFailure(err)
	default:
		value, err := t.decodeStored(substate.NewSubstateId(id, partition, key), raw)
		if err != nil {
			return nil, err
		}
		tracked.kind = trackedUnmodified
		tracked.value = value
	}
	tree.ReplaceOrInsert(tracked)

	err = t.updateInteraction(substate.EncodeSubstateId(id, partition, dbKey), raw)
	if err != nil {
		return nil, err
	}
	return tracked, nil
}

// AcquireLock locks a substate. Mutable locks require that no other lock is
// held on the substate, read locks require that no mutable lock is held.
func (t *Track) AcquireLock(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
) (LockHandle, error) {
	return t.AcquireLockVirtualize(id, partition, key, flags, nil)
}

// AcquireLockVirtualize locks a substate like AcquireLock. If the substate
// does not exist and virtualize returns a value, the lock is acquired on
// that value instead. Virtual values are not persisted unless written.
func (t *Track) AcquireLockVirtualize(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	flags substate.LockFlags,
	virtualize func() (codec.IndexedValue, bool),
) (LockHandle, error) {
	substateId := substate.NewSubstateId(id, partition, key)

	tracked, err := t.load(id, partition, key)
	if err != nil {
		return 0, err
	}

	if !tracked.exists() {
		if virtualize == nil {
			return 0, newAcquireLockError(NotFound, substateId)
		}
		value, ok := virtualize()
		if !ok {
			return 0, newAcquireLockError(NotFound, substateId)
		}
		tracked.value = &value
		tracked.virtual = true
	}

	if flags.Contains(substate.LockFlagUnmodifiedBase) {
		switch {
		case tracked.kind == trackedNew || tracked.virtual:
			return 0, newAcquireLockError(LockUnmodifiedBaseOnNewSubstate, substateId)
		case tracked.kind == trackedUpdated:
			return 0, newAcquireLockError(LockUnmodifiedBaseOnUpdatedSubstate, substateId)
		}
	}

	if tracked.writer || (flags.IsMutable() && tracked.readers > 0) {
		return 0, newAcquireLockError(SubstateLocked, substateId)
	}

	if flags.IsMutable() {
		tracked.writer = true
	} else {
		tracked.readers++
	}

	t.nextHandle++
	handle := t.nextHandle
	t.locks[handle] = &lock{
		id:       substateId,
		substate: tracked,
		flags:    flags,
	}
	return handle, nil
}

func (t *Track) lock(handle LockHandle) (*lock, error) {
	l, ok := t.locks[handle]
	if !ok {
		return nil, errors.NewInvalidLockHandleError(handle)
	}
	return l, nil
}

// ReleaseLock releases a lock.
func (t *Track) ReleaseLock(handle LockHandle) error {
	l, err := t.lock(handle)
	if err != nil {
		return err
	}
	if l.flags.IsMutable() {
		l.substate.writer = false
	} else {
		l.substate.readers--
	}
	delete(t.locks, handle)
	return nil
}

// LockInfo returns the substate and flags of a lock.
func (t *Track) LockInfo(handle LockHandle) (substate.SubstateId, substate.LockFlags, error) {
	l, err := t.lock(handle)
	if err != nil {
		return substate.SubstateId{}, 0, err
	}
	return l.id, l.flags, nil
}

// ReadSubstate returns the current value of a locked substate.
func (t *Track) ReadSubstate(handle LockHandle) (codec.IndexedValue, error) {
	l, err := t.lock(handle)
	if err != nil {
		return codec.IndexedValue{}, err
	}
	return *l.substate.value, nil
}

// UpdateSubstate writes the value of a substate locked as mutable. Updating
// through a read only lock is a programming error and panics.
func (t *Track) UpdateSubstate(handle LockHandle, value codec.IndexedValue) error {
	l, err := t.lock(handle)
	if err != nil {
		return err
	}
	if !l.flags.IsMutable() {
		panic("update of substate " + l.id.String() + " through a read only lock")
	}

	err = t.checkSize(l.id, l.substate.dbKey, value)
	if err != nil {
		return err
	}

	l.substate.value = &value
	l.substate.virtual = false
	l.substate.markWritten()
	return nil
}

// CreateNode adds a node with all its substates to the track.
func (t *Track) CreateNode(id substate.NodeId, substates codec.NodeSubstates) error {
	if existing, ok := t.nodes[id]; ok && existing.created {
		return errors.NewNodeAlreadyExistsError(id)
	}

	for _, partition := range substates.Partitions() {
		entries := substates[partition]
		for _, key := range entries.SortedKeys() {
			err := t.checkSize(substate.NewSubstateId(id, partition, substate.MustSubstateKeyFromDBKey([]byte(key))), []byte(key), entries[key])
			if err != nil {
				return err
			}
		}
	}

	node := t.node(id)
	node.createdPartitions = make(map[substate.PartitionNumber]struct{}, len(substates))
	for _, partition := range substates.Partitions() {
		node.createdPartitions[partition] = struct{}{}
		tree := t.partition(id, partition)
		entries := substates[partition]
		for _, key := range entries.SortedKeys() {
			value := entries[key]
			tracked := &trackedSubstate{dbKey: []byte(key), kind: trackedNew}
			if existing, ok := tree.Get(tracked); ok {
				if existing.locked() {
					return errors.NewSubstateLockedError(substate.NewSubstateId(id, partition, substate.MustSubstateKeyFromDBKey([]byte(key))))
				}
				tracked = existing
				tracked.virtual = false
				if tracked.kind == trackedUnmodified {
					tracked.kind = trackedUpdated
				} else if tracked.kind == trackedReadNonExist {
					tracked.kind = trackedNew
				}
			}
			tracked.value = &value
			tree.ReplaceOrInsert(tracked)
		}
	}
	node.created = true
	return nil
}

// checkWritable fails unless the node exists and, if it was created in this
// transaction, was created with the partition.
func (t *Track) checkWritable(id substate.NodeId, partition substate.PartitionNumber) error {
	if node, ok := t.nodes[id]; ok && node.created {
		if _, ok := node.createdPartitions[partition]; !ok {
			return errors.NewPartitionNotFoundError(id, partition)
		}
		return nil
	}
	exists, err := t.NodeExists(id)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NewNodeNotFoundError(id)
	}
	return nil
}

// SetSubstate writes a substate without locking it. It fails if the
// substate is locked or its current value owns nodes.
func (t *Track) SetSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
	value codec.IndexedValue,
) error {
	substateId := substate.NewSubstateId(id, partition, key)
	err := t.checkSize(substateId, key.DBKey(), value)
	if err != nil {
		return err
	}
	err = t.checkWritable(id, partition)
	if err != nil {
		return err
	}

	tracked, err := t.load(id, partition, key)
	if err != nil {
		return err
	}
	if tracked.locked() {
		return newAcquireLockError(SubstateLocked, substateId)
	}
	if tracked.persisted() && len(tracked.value.OwnedNodes()) > 0 {
		return errors.NewOwnedNodeInBulkOperationError(id, "set")
	}
	tracked.value = &value
	tracked.virtual = false
	tracked.markWritten()
	return nil
}

// TakeSubstate removes a substate without locking it and returns its value,
// or nil if it did not exist. It fails if the substate is locked or owns
// nodes.
func (t *Track) TakeSubstate(
	id substate.NodeId,
	partition substate.PartitionNumber,
	key substate.SubstateKey,
) (*codec.IndexedValue, error) {
	err := t.checkWritable(id, partition)
	if err != nil {
		return nil, err
	}
	tracked, err := t.load(id, partition, key)
	if err != nil {
		return nil, err
	}
	if tracked.locked() {
		return nil, newAcquireLockError(SubstateLocked, substate.NewSubstateId(id, partition, key))
	}
	if tracked.persisted() && len(tracked.value.OwnedNodes()) > 0 {
		return nil, errors.NewOwnedNodeInBulkOperationError(id, "take")
	}
	return t.take(tracked), nil
}

func (t *Track) take(tracked *trackedSubstate) *codec.IndexedValue {
	if !tracked.persisted() {
		tracked.value = nil
		tracked.virtual = false
		return nil
	}
	value := tracked.value
	tracked.value = nil
	if tracked.kind == trackedUnmodified {
		tracked.kind = trackedUpdated
	}
	return value
}

// ScanSubstates returns at most count values of a partition in key order,
// merging buffered writes over the store content.
func (t *Track) ScanSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	entries, err := t.scan(id, partition, count)
	if err != nil {
		return nil, err
	}
	values := make([]codec.IndexedValue, 0, len(entries))
	for _, entry := range entries {
		values = append(values, *entry.value)
	}
	return values, nil
}

// ScanSortedSubstates returns at most count values of a sorted partition in
// ascending sort order.
func (t *Track) ScanSortedSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	// sorted keys are encoded with a big endian sort prefix, so db key order
	// is sort order
	return t.ScanSubstates(id, partition, count)
}

// TakeSubstates removes and returns at most count values of a partition in
// key order. It fails if any of them is locked or owns nodes.
func (t *Track) TakeSubstates(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]codec.IndexedValue, error) {
	err := t.checkWritable(id, partition)
	if err != nil {
		return nil, err
	}
	entries, err := t.scan(id, partition, count)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.locked() {
			return nil, newAcquireLockError(
				SubstateLocked,
				substate.NewSubstateId(id, partition, substate.MustSubstateKeyFromDBKey(entry.dbKey)))
		}
		if len(entry.value.OwnedNodes()) > 0 {
			return nil, errors.NewOwnedNodeInBulkOperationError(id, "take")
		}
	}

	values := make([]codec.IndexedValue, 0, len(entries))
	for _, entry := range entries {
		values = append(values, *t.take(entry))
	}
	return values, nil
}

func (t *Track) scan(
	id substate.NodeId,
	partition substate.PartitionNumber,
	count uint32,
) ([]*trackedSubstate, error) {
	tree := t.partition(id, partition)

	tracked := make([]*trackedSubstate, 0, tree.Len())
	tree.Ascend(func(item *trackedSubstate) bool {
		tracked = append(tracked, item)
		return true
	})

	var it storage.SubstateIterator
	if !t.nodes[id].created {
		var err error
		it, err = t.db.ListSubstates(id, partition)
		if err != nil {
			return nil, errors.NewStorageFailure(err)
		}
		defer it.Close()
	}

	var stored *trackedSubstate
	advance := func() error {
		stored = nil
		if it == nil || !it.Next() {
			if it != nil && it.Err() != nil {
				return errors.NewStorageFailure(it.Err())
			}
			return nil
		}
		dbKey := append([]byte(nil), it.DBKey()...)
		raw := it.Value()
		err := t.updateInteraction(substate.EncodeSubstateId(id, partition, dbKey), raw)
		if err != nil {
			return err
		}
		key, err := substate.SubstateKeyFromDBKey(dbKey)
		if err != nil {
			return errors.NewEncodingFailuref(err, "stored substate key of %s", id)
		}
		value, err := t.decodeStored(substate.NewSubstateId(id, partition, key), raw)
		if err != nil {
			return err
		}
		stored = &trackedSubstate{dbKey: dbKey, kind: trackedUnmodified, value: value}
		return nil
	}

	err := advance()
	if err != nil {
		return nil, err
	}

	results := make([]*trackedSubstate, 0)
	i := 0
	for uint32(len(results)) < count && (i < len(tracked) || stored != nil) {
		var candidate *trackedSubstate
		switch {
		case stored == nil:
			candidate = tracked[i]
			i++
		case i >= len(tracked):
			candidate = stored
			tree.ReplaceOrInsert(stored)
			err = advance()
		default:
			c := bytes.Compare(tracked[i].dbKey, stored.dbKey)
			switch {
			case c < 0:
				candidate = tracked[i]
				i++
			case c == 0:
				// buffered state wins over the store
				candidate = tracked[i]
				i++
				err = advance()
			default:
				candidate = stored
				tree.ReplaceOrInsert(stored)
				err = advance()
			}
		}
		if err != nil {
			return nil, err
		}
		if candidate.persisted() {
			results = append(results, candidate)
		}
	}
	return results, nil
}

// NodeExists returns true if the node has a type info substate.
func (t *Track) NodeExists(id substate.NodeId) (bool, error) {
	tracked, err := t.load(id, substate.TypeInfoPartition, substate.TypeInfoKey)
	if err != nil {
		return false, err
	}
	return tracked.persisted(), nil
}

// IsTracked returns true if the node was read or written in this
// transaction.
func (t *Track) IsTracked(id substate.NodeId) bool {
	_, ok := t.nodes[id]
	return ok
}

// OpenLocks returns the number of locks currently held.
func (t *Track) OpenLocks() int {
	return len(t.locks)
}

// Finalize returns the updates to persist if the transaction commits.
func (t *Track) Finalize() *substate.StateUpdates {
	updates := substate.NewStateUpdates()
	for id, node := range t.nodes {
		for partition, tree := range node.partitions {
			tree.Ascend(func(tracked *trackedSubstate) bool {
				switch tracked.kind {
				case trackedUpdated:
					if tracked.persisted() {
						updates.Set(id, partition, tracked.dbKey, tracked.value.Bytes())
					} else {
						updates.Delete(id, partition, tracked.dbKey)
					}
				case trackedNew:
					if tracked.persisted() {
						updates.Set(id, partition, tracked.dbKey, tracked.value.Bytes())
					}
				}
				return true
			})
		}
	}
	return updates
}
