package metrics

import (
	"time"

	"github.com/onflow/flow-kernel/module"
)

type NoopCollector struct{}

var (
	_ module.KernelMetrics = (*NoopCollector)(nil)
	_ module.CacheMetrics  = (*NoopCollector)(nil)
)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) KernelInvocation(depth int)                            {}
func (nc *NoopCollector) KernelNodeCreated(global bool)                         {}
func (nc *NoopCollector) KernelNodeDropped()                                    {}
func (nc *NoopCollector) KernelSubstateLocked(mutable bool)                     {}
func (nc *NoopCollector) KernelSubstateRead(bytes int)                          {}
func (nc *NoopCollector) KernelSubstateWritten(bytes int)                       {}
func (nc *NoopCollector) KernelTransactionExecuted(time.Duration, uint64, bool) {}
func (nc *NoopCollector) CacheEntries(resource string, entries uint)            {}
func (nc *NoopCollector) CacheHit(resource string)                              {}
func (nc *NoopCollector) CacheNotFound(resource string)                         {}
func (nc *NoopCollector) CacheMiss(resource string)                             {}
