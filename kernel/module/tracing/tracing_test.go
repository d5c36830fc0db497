package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/onflow/flow-kernel/kernel/module"
	"github.com/onflow/flow-kernel/kernel/module/tracing"
	"github.com/onflow/flow-kernel/model/substate"
)

type depthAPI struct {
	module.API
	depth int
}

func (a depthAPI) CurrentDepth() int { return a.depth }

func TestModule(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	m := tracing.New(context.Background(), provider.Tracer("kernel"))
	require.Equal(t, tracing.Name, m.Name())

	id := substate.NewNodeId(substate.EntityTypeInternalGenericComponent, [substate.NodeIdRIDLength]byte{1})

	require.NoError(t, m.OnInit(depthAPI{}))
	require.NoError(t, m.BeforeInvoke(depthAPI{}, "outer", 4))
	require.NoError(t, m.BeforeInvoke(depthAPI{depth: 1}, "inner", 2))
	require.NoError(t, m.AfterCreateNode(depthAPI{depth: 2}, id))
	require.NoError(t, m.AfterInvoke(depthAPI{depth: 1}, 8))
	require.NoError(t, m.AfterInvoke(depthAPI{}, 8))
	require.NoError(t, m.OnTeardown(depthAPI{}))

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	inner, outer, transaction := spans[0], spans[1], spans[2]
	require.Equal(t, "inner", inner.Name())
	require.Equal(t, "outer", outer.Name())
	require.Equal(t, tracing.SpanNameTransaction, transaction.Name())

	require.Equal(t, outer.SpanContext().SpanID(), inner.Parent().SpanID())
	require.Equal(t, transaction.SpanContext().SpanID(), outer.Parent().SpanID())

	require.Len(t, inner.Events(), 1)
	require.Equal(t, tracing.EventCreateNode, inner.Events()[0].Name)
}

func TestTeardownClosesOpenSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	m := tracing.New(context.Background(), provider.Tracer("kernel"))

	require.NoError(t, m.OnInit(depthAPI{}))
	require.NoError(t, m.BeforeInvoke(depthAPI{}, "aborted", 0))
	require.NoError(t, m.OnTeardown(depthAPI{}))
	require.Len(t, recorder.Ended(), 2)
}
