package kernel

import (
	"context"

	"github.com/rs/zerolog"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/kernel/module/auth"
	"github.com/onflow/flow-kernel/kernel/module/costing"
	"github.com/onflow/flow-kernel/kernel/module/logger"
	kernelmetrics "github.com/onflow/flow-kernel/kernel/module/metrics"
	"github.com/onflow/flow-kernel/kernel/module/tracing"
	"github.com/onflow/flow-kernel/model/substate"
	flowmodule "github.com/onflow/flow-kernel/module"
	"github.com/onflow/flow-kernel/module/metrics"
)

// Context is the configuration transactions are executed with. It is
// immutable once built and can be shared by transactions.
type Context struct {
	Logger       zerolog.Logger
	Parameters   Parameters
	Dispatcher   Dispatcher
	Visibility   VisibilityChecker
	Virtualizers Virtualizers
	Policy       auth.Policy
	Weights      costing.ExecutionWeights
	Metrics      flowmodule.KernelMetrics
	// Tracer is optional, transactions are not traced without one.
	Tracer   otelTrace.Tracer
	TraceCtx context.Context
	// Modules builds the modules of one transaction. DefaultModules is used
	// if unset.
	Modules func(ctx Context) []module.Module
}

// Option is a function applying a change to the kernel context.
type Option func(ctx Context) Context

func defaultContext() Context {
	return Context{
		Logger:       zerolog.Nop(),
		Parameters:   DefaultParameters(),
		Dispatcher:   NewRegistry(),
		Visibility:   DefaultVisibility{},
		Virtualizers: Virtualizers{},
		Policy:       auth.AllowAll{},
		Weights:      costing.DefaultWeights,
		Metrics:      metrics.NewNoopCollector(),
		TraceCtx:     context.Background(),
	}
}

// NewContext applies opts to the default context.
func NewContext(opts ...Option) Context {
	return NewContextFromParent(defaultContext(), opts...)
}

// NewContextFromParent applies opts to a copy of parent.
func NewContextFromParent(parent Context, opts ...Option) Context {
	ctx := parent
	for _, applyOption := range opts {
		ctx = applyOption(ctx)
	}
	return ctx
}

// WithLogger sets the logger of the kernel and its modules.
func WithLogger(log zerolog.Logger) Option {
	return func(ctx Context) Context {
		ctx.Logger = log
		return ctx
	}
}

// WithParameters sets the kernel parameters.
func WithParameters(params Parameters) Option {
	return func(ctx Context) Context {
		ctx.Parameters = params
		return ctx
	}
}

// WithDispatcher sets the dispatcher resolving blueprint functions.
func WithDispatcher(dispatcher Dispatcher) Option {
	return func(ctx Context) Context {
		ctx.Dispatcher = dispatcher
		return ctx
	}
}

// WithVisibility sets the visibility checker.
func WithVisibility(checker VisibilityChecker) Option {
	return func(ctx Context) Context {
		ctx.Visibility = checker
		return ctx
	}
}

// WithVirtualizer registers the virtualizer of an entity type.
func WithVirtualizer(entityType substate.EntityType, virtualizer Virtualizer) Option {
	return func(ctx Context) Context {
		virtualizers := make(Virtualizers, len(ctx.Virtualizers)+1)
		for t, v := range ctx.Virtualizers {
			virtualizers[t] = v
		}
		virtualizers[entityType] = virtualizer
		ctx.Virtualizers = virtualizers
		return ctx
	}
}

// WithAuthPolicy sets the policy of the auth module.
func WithAuthPolicy(policy auth.Policy) Option {
	return func(ctx Context) Context {
		ctx.Policy = policy
		return ctx
	}
}

// WithWeights sets the weights of the costing module.
func WithWeights(weights costing.ExecutionWeights) Option {
	return func(ctx Context) Context {
		ctx.Weights = weights
		return ctx
	}
}

// WithMetrics sets the collector kernel activity is reported to.
func WithMetrics(collector flowmodule.KernelMetrics) Option {
	return func(ctx Context) Context {
		ctx.Metrics = collector
		return ctx
	}
}

// WithTracer enables tracing, spans are children of the span in traceCtx.
func WithTracer(traceCtx context.Context, tracer otelTrace.Tracer) Option {
	return func(ctx Context) Context {
		ctx.Tracer = tracer
		ctx.TraceCtx = traceCtx
		return ctx
	}
}

// WithModules replaces the modules built for every transaction.
func WithModules(modules func(ctx Context) []module.Module) Option {
	return func(ctx Context) Context {
		ctx.Modules = modules
		return ctx
	}
}

// DefaultModules returns fresh costing, auth, logger and metrics modules,
// followed by a tracing module if the context has a tracer.
func DefaultModules(ctx Context) []module.Module {
	modules := []module.Module{
		costing.New(costing.NewMeter(ctx.Parameters.CostLimit, costing.WithWeights(ctx.Weights))),
		auth.New(ctx.Policy),
		logger.New(ctx.Logger),
		kernelmetrics.New(ctx.Metrics),
	}
	if ctx.Tracer != nil {
		modules = append(modules, tracing.New(ctx.TraceCtx, ctx.Tracer))
	}
	return modules
}

func (ctx Context) modules() []module.Module {
	if ctx.Modules != nil {
		return ctx.Modules(ctx)
	}
	return DefaultModules(ctx)
}
