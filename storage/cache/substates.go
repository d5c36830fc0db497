// Package cache keeps recently read substates in memory in front of a
// substate database.
package cache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/onflow/flow-kernel/model/substate"
	"github.com/onflow/flow-kernel/module"
	"github.com/onflow/flow-kernel/module/metrics"
	"github.com/onflow/flow-kernel/storage"
)

const DefaultLimit = 10_000

// entry caches a substate value or its absence.
type entry struct {
	value []byte
	found bool
}

func WithLimit(limit uint) func(*SubstateCache) {
	return func(c *SubstateCache) {
		c.limit = limit
	}
}

func WithResource(resource string) func(*SubstateCache) {
	return func(c *SubstateCache) {
		c.resource = resource
	}
}

// SubstateCache is a read-through cache over a substate database. Cached
// entries are replaced by the updates committed through the cache; commits
// made to the database directly are not seen.
type SubstateCache struct {
	db       storage.CommittableSubstateDatabase
	metrics  module.CacheMetrics
	limit    uint
	resource string
	cache    *lru.Cache[string, entry]
}

var _ storage.CommittableSubstateDatabase = (*SubstateCache)(nil)

func NewSubstateCache(
	db storage.CommittableSubstateDatabase,
	collector module.CacheMetrics,
	options ...func(*SubstateCache),
) (*SubstateCache, error) {
	c := &SubstateCache{
		db:       db,
		metrics:  collector,
		limit:    DefaultLimit,
		resource: metrics.ResourceSubstate,
	}
	for _, option := range options {
		option(c)
	}

	cache, err := lru.New[string, entry](int(c.limit))
	if err != nil {
		return nil, fmt.Errorf("could not create cache: %w", err)
	}
	c.cache = cache
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return c, nil
}

// GetSubstate will try to retrieve the substate from cache first, and then
// from the database. Substates missing from the database are cached as
// missing.
func (c *SubstateCache) GetSubstate(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
	dbKey []byte,
) ([]byte, error) {
	key := string(substate.EncodeSubstateId(nodeId, partition, dbKey))

	// check if we have it in the cache
	cached, ok := c.cache.Get(key)
	if ok {
		c.metrics.CacheHit(c.resource)
		if !cached.found {
			return nil, storage.ErrNotFound
		}
		return append([]byte(nil), cached.value...), nil
	}

	// get it from the database
	value, err := c.db.GetSubstate(nodeId, partition, dbKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.metrics.CacheNotFound(c.resource)
		c.add(key, entry{})
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("could not retrieve substate: %w", err)
	}

	c.metrics.CacheMiss(c.resource)
	c.add(key, entry{value: append([]byte(nil), value...), found: true})
	return value, nil
}

func (c *SubstateCache) add(key string, e entry) {
	// cache the entry and eject least recently used one if we reached limit
	evicted := c.cache.Add(key, e)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}

// ListSubstates is not cached.
func (c *SubstateCache) ListSubstates(
	nodeId substate.NodeId,
	partition substate.PartitionNumber,
) (storage.SubstateIterator, error) {
	return c.db.ListSubstates(nodeId, partition)
}

// Commit persists updates and refreshes the cached substates they touch. The
// cache is cleared if the database fails to commit.
func (c *SubstateCache) Commit(updates *substate.StateUpdates) error {
	err := c.db.Commit(updates)
	if err != nil {
		c.cache.Purge()
		c.metrics.CacheEntries(c.resource, 0)
		return err
	}

	for _, update := range updates.Updates() {
		key := string(update.EncodedId())
		if !c.cache.Contains(key) {
			continue
		}
		switch update.Update.Kind {
		case substate.UpdateSet:
			c.cache.Add(key, entry{value: append([]byte(nil), update.Update.Value...), found: true})
		case substate.UpdateDelete:
			c.cache.Add(key, entry{})
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (c *SubstateCache) Len() int {
	return c.cache.Len()
}
