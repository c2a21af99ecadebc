package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTracingTest creates a span manager backed by an in-memory exporter.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, SpanManager) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return exporter, NewSpanManagerWithProvider(tp)
}

func attrString(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.Emit()
		}
	}
	return ""
}

func TestStartRunSpan(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		_, span := sm.StartRunSpan(context.Background(), "my-graph", "thread-123")
		require.NotNil(t, span)
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "stategraph.run", s.Name)
		assert.Equal(t, trace.SpanKindInternal, s.SpanKind)
		assert.Equal(t, "my-graph", attrString(s.Attributes, "graph.name"))
		assert.Equal(t, "thread-123", attrString(s.Attributes, "thread.id"))
	})

	t.Run("returns context with span", func(t *testing.T) {
		exporter.Reset()

		newCtx, span := sm.StartRunSpan(context.Background(), "test", "thread-456")
		defer span.End()

		assert.Equal(t, span.SpanContext().SpanID(), trace.SpanFromContext(newCtx).SpanContext().SpanID())
	})
}

func TestStartNodeSpan(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	ctx, runSpan := sm.StartRunSpan(context.Background(), "g", "thread")
	_, nodeSpan := sm.StartNodeSpan(ctx, "process", 3)
	nodeSpan.End()
	runSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	node := spans[0]
	assert.Equal(t, "stategraph.node.process", node.Name)
	assert.Equal(t, "process", attrString(node.Attributes, "node.id"))
	assert.Equal(t, "3", attrString(node.Attributes, "step"))
	assert.Equal(t, spans[1].SpanContext.SpanID(), node.Parent.SpanID(), "node span is a child of the run span")
}

func TestEndSpanWithError(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	t.Run("success sets OK status", func(t *testing.T) {
		exporter.Reset()
		_, span := sm.StartNodeSpan(context.Background(), "ok", 1)
		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
		assert.Empty(t, spans[0].Events)
	})

	t.Run("error records event and status", func(t *testing.T) {
		exporter.Reset()
		_, span := sm.StartNodeSpan(context.Background(), "bad", 1)
		sm.EndSpanWithError(span, errors.New("boom"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "boom", spans[0].Status.Description)
		require.NotEmpty(t, spans[0].Events)
		assert.Equal(t, "exception", spans[0].Events[0].Name)
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, errors.New("x"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, sm := setupTracingTest(t)

	t.Run("adds event to recording span", func(t *testing.T) {
		exporter.Reset()
		ctx, span := sm.StartNodeSpan(context.Background(), "review", 1)
		sm.AddSpanEvent(ctx, "interrupt", attribute.String("interrupt.id", "abc"))
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		require.Len(t, spans[0].Events, 1)
		assert.Equal(t, "interrupt", spans[0].Events[0].Name)
		assert.Equal(t, "abc", attrString(spans[0].Events[0].Attributes, "interrupt.id"))
	})

	t.Run("no span in context does nothing", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "orphan")
		})
	})
}

func TestNewSpanManager_UsesGlobalProvider(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	_, span := NewSpanManager().StartRunSpan(context.Background(), "global", "t")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "stategraph.run", spans[0].Name)
}
