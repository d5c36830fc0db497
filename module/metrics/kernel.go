package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/onflow/flow-kernel/module"
)

type KernelCollector struct {
	invocations          prometheus.Counter
	callDepth            prometheus.Histogram
	nodesCreated         *prometheus.CounterVec
	nodesDropped         prometheus.Counter
	substateLocks        *prometheus.CounterVec
	substateReadBytes    prometheus.Counter
	substateWrittenBytes prometheus.Counter
	transactions         *prometheus.CounterVec
	transactionDuration  prometheus.Histogram
	transactionCost      prometheus.Histogram
}

var _ module.KernelMetrics = (*KernelCollector)(nil)

func NewKernelCollector(registerer prometheus.Registerer) *KernelCollector {
	factory := promauto.With(registerer)

	return &KernelCollector{
		invocations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemFrame,
			Name:      "invocations_total",
			Help:      "the number of invocations executed",
		}),
		callDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemFrame,
			Name:      "call_depth",
			Help:      "the depth of the frames pushed by invocations",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 16},
		}),
		nodesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemNode,
			Name:      "created_total",
			Help:      "the number of nodes created",
		}, []string{LabelGlobal}),
		nodesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemNode,
			Name:      "dropped_total",
			Help:      "the number of nodes dropped",
		}),
		substateLocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemSubstate,
			Name:      "locks_total",
			Help:      "the number of substate locks acquired",
		}, []string{LabelLockMode}),
		substateReadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemSubstate,
			Name:      "read_bytes_total",
			Help:      "the number of substate bytes read through locks",
		}),
		substateWrittenBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemSubstate,
			Name:      "written_bytes_total",
			Help:      "the number of substate bytes written through locks",
		}),
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemTransaction,
			Name:      "executed_total",
			Help:      "the number of transactions executed, by outcome",
		}, []string{LabelOutcome}),
		transactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemTransaction,
			Name:      "execution_time_milliseconds",
			Help:      "the total amount of time spent executing a transaction",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000},
		}),
		transactionCost: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceKernel,
			Subsystem: subsystemTransaction,
			Name:      "cost_used",
			Help:      "the cost charged to a transaction, in units",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}),
	}
}

func (kc *KernelCollector) KernelInvocation(depth int) {
	kc.invocations.Inc()
	kc.callDepth.Observe(float64(depth))
}

func (kc *KernelCollector) KernelNodeCreated(global bool) {
	kc.nodesCreated.WithLabelValues(strconv.FormatBool(global)).Inc()
}

func (kc *KernelCollector) KernelNodeDropped() {
	kc.nodesDropped.Inc()
}

func (kc *KernelCollector) KernelSubstateLocked(mutable bool) {
	mode := "read_only"
	if mutable {
		mode = "mutable"
	}
	kc.substateLocks.WithLabelValues(mode).Inc()
}

func (kc *KernelCollector) KernelSubstateRead(bytes int) {
	kc.substateReadBytes.Add(float64(bytes))
}

func (kc *KernelCollector) KernelSubstateWritten(bytes int) {
	kc.substateWrittenBytes.Add(float64(bytes))
}

func (kc *KernelCollector) KernelTransactionExecuted(dur time.Duration, costUsed uint64, committed bool) {
	outcome := OutcomeFailed
	if committed {
		outcome = OutcomeCommitted
	}
	kc.transactions.WithLabelValues(outcome).Inc()
	kc.transactionDuration.Observe(float64(dur.Milliseconds()))
	kc.transactionCost.Observe(float64(costUsed))
}
