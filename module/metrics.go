package module

import (
	"time"
)

// KernelMetrics records the activity of the execution kernel.
type KernelMetrics interface {
	// KernelInvocation records an invocation pushing a frame at depth.
	KernelInvocation(depth int)

	// KernelNodeCreated records a node creation, global nodes being pushed
	// to the store directly.
	KernelNodeCreated(global bool)

	// KernelNodeDropped records a node dropped from the heap.
	KernelNodeDropped()

	// KernelSubstateLocked records a substate lock.
	KernelSubstateLocked(mutable bool)

	// KernelSubstateRead reports the size of a substate read through a lock.
	KernelSubstateRead(bytes int)

	// KernelSubstateWritten reports the size of a substate written through a lock.
	KernelSubstateWritten(bytes int)

	// KernelTransactionExecuted reports stats on executing a single transaction.
	KernelTransactionExecuted(dur time.Duration, costUsed uint64, committed bool)
}

type CacheMetrics interface {
	// CacheEntries report the total number of cached items
	CacheEntries(resource string, entries uint)
	// CacheHit report the number of times the queried item is found in the cache
	CacheHit(resource string)
	// CacheNotFound records the number of times the queried item was not found in either cache or database.
	CacheNotFound(resource string)
	// CacheMiss report the number of times the queried item is not found in the cache, but found in the database.
	CacheMiss(resource string)
}
