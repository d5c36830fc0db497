// Package tracing records an OpenTelemetry span per invocation.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/onflow/flow-kernel/kernel/callframe"
	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/model/substate"
)

const (
	Name = "tracing"

	SpanNameTransaction = "kernel.transaction"

	EventCreateNode   = "create_node"
	EventDropNode     = "drop_node"
	EventLockSubstate = "lock_substate"
)

// Module starts a span when an invocation begins and ends it when the
// invocation returns. Spans of nested invocations are children of their
// caller's span.
type Module struct {
	module.NoopModule

	tracer otelTrace.Tracer
	root   context.Context
	spans  []otelTrace.Span
	ctxs   []context.Context
}

var _ module.Module = (*Module)(nil)

// New creates a tracing module. Spans are children of the span in ctx, if
// any.
func New(ctx context.Context, tracer otelTrace.Tracer) *Module {
	return &Module{
		tracer: tracer,
		root:   ctx,
	}
}

func (m *Module) Name() string { return Name }

func (m *Module) context() context.Context {
	if len(m.ctxs) == 0 {
		return m.root
	}
	return m.ctxs[len(m.ctxs)-1]
}

func (m *Module) current() otelTrace.Span {
	if len(m.spans) == 0 {
		return otelTrace.SpanFromContext(m.root)
	}
	return m.spans[len(m.spans)-1]
}

func (m *Module) push(name string, attrs ...attribute.KeyValue) {
	ctx, span := m.tracer.Start(m.context(), name, otelTrace.WithAttributes(attrs...))
	m.spans = append(m.spans, span)
	m.ctxs = append(m.ctxs, ctx)
}

func (m *Module) pop(attrs ...attribute.KeyValue) {
	if len(m.spans) == 0 {
		return
	}
	span := m.spans[len(m.spans)-1]
	span.SetAttributes(attrs...)
	span.End()
	m.spans = m.spans[:len(m.spans)-1]
	m.ctxs = m.ctxs[:len(m.ctxs)-1]
}

func (m *Module) OnInit(module.API) error {
	m.push(SpanNameTransaction)
	return nil
}

func (m *Module) OnTeardown(module.API) error {
	// spans of invocations aborted by an error are closed here too
	for len(m.spans) > 0 {
		m.pop()
	}
	return nil
}

func (m *Module) BeforeInvoke(api module.API, identifier string, inputSize int) error {
	m.push(identifier,
		attribute.Int("depth", api.CurrentDepth()),
		attribute.Int("input_size", inputSize))
	return nil
}

func (m *Module) AfterInvoke(_ module.API, outputSize int) error {
	m.pop(attribute.Int("output_size", outputSize))
	return nil
}

func (m *Module) AfterCreateNode(_ module.API, id substate.NodeId) error {
	m.current().AddEvent(EventCreateNode, otelTrace.WithAttributes(
		attribute.String("node_id", id.String())))
	return nil
}

func (m *Module) BeforeDropNode(_ module.API, id substate.NodeId) error {
	m.current().AddEvent(EventDropNode, otelTrace.WithAttributes(
		attribute.String("node_id", id.String())))
	return nil
}

func (m *Module) AfterLockSubstate(_ module.API, handle callframe.LockHandle, size int) error {
	m.current().AddEvent(EventLockSubstate, otelTrace.WithAttributes(
		attribute.Int64("handle", int64(handle)),
		attribute.Int("size", size)))
	return nil
}
