package stategraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testLogHandler captures log records for testing.
type testLogHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{
		buf:   h.buf,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *testLogHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *testLogHandler) getRecords() []map[string]any {
	var records []map[string]any
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for _, line := range lines {
		if len(line) > 0 {
			var m map[string]any
			if err := json.Unmarshal(line, &m); err == nil {
				records = append(records, m)
			}
		}
	}
	return records
}

func (h *testLogHandler) messages() []string {
	var msgs []string
	for _, r := range h.getRecords() {
		msg, _ := r["msg"].(string)
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestRun_WithObservabilityLogger(t *testing.T) {
	h := newTestLogHandler()
	logger := slog.New(h)

	compiled := mustCompile(NewGraph(counterSchema()).
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddEdge("inc1", "inc2").
		SetFinish("inc2").
		SetEntry("inc1"))

	result, err := compiled.Run(testCtx(), nil,
		WithObservabilityLogger(logger),
		WithThreadID("obs-thread"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.State["count"])

	var foundRunStart, foundRunComplete bool
	var nodeStarts, nodeCompletes int

	for _, r := range h.getRecords() {
		msg, _ := r["msg"].(string)
		switch msg {
		case "graph run starting":
			foundRunStart = true
			assert.Equal(t, "obs-thread", r["thread_id"])
			assert.Equal(t, "inc1", r["start_node"])
		case "graph run completed":
			foundRunComplete = true
			assert.Equal(t, float64(2), r["steps"])
		case "node starting":
			nodeStarts++
		case "node completed":
			nodeCompletes++
		}
	}

	assert.True(t, foundRunStart, "Expected 'graph run starting' log")
	assert.True(t, foundRunComplete, "Expected 'graph run completed' log")
	assert.Equal(t, 2, nodeStarts)
	assert.Equal(t, 2, nodeCompletes)
}

func TestRun_WithObservabilityLogger_Error(t *testing.T) {
	h := newTestLogHandler()
	logger := slog.New(h)

	compiled := mustCompile(NewGraph(counterSchema()).
		AddNode("ok", increment).
		AddNode("fail", makeFailingNode(errors.New("boom"))).
		AddEdge("ok", "fail").
		SetFinish("fail").
		SetEntry("ok"))

	_, err := compiled.Run(testCtx(), nil, WithObservabilityLogger(logger))
	require.Error(t, err)

	var foundNodeError, foundRunError bool
	for _, r := range h.getRecords() {
		msg, _ := r["msg"].(string)
		switch msg {
		case "node failed":
			foundNodeError = true
			assert.Equal(t, "fail", r["node_id"])
		case "graph run failed":
			foundRunError = true
			assert.Equal(t, "fail", r["last_node"])
		}
	}

	assert.True(t, foundNodeError, "Expected 'node failed' log")
	assert.True(t, foundRunError, "Expected 'graph run failed' log")
}

func TestRun_WithObservabilityLogger_InterruptAndResume(t *testing.T) {
	h := newTestLogHandler()
	logger := slog.New(h)
	store := checkpoint.NewMemoryStore()

	compiled := mustCompile(NewGraph(counterSchema()).
		AddNode("ask", func(ctx Context, s State) (Update, error) {
			_, err := Interrupt(ctx, "?")
			return nil, err
		}).
		SetFinish("ask").
		SetEntry("ask"))

	opts := []RunOption{WithObservabilityLogger(logger), WithCheckpointing(store), WithThreadID("t")}
	_, err := compiled.Run(testCtx(), nil, opts...)
	require.NoError(t, err)
	_, err = compiled.Resume(testCtx(), store, "t", "!", WithObservabilityLogger(logger))
	require.NoError(t, err)

	msgs := h.messages()
	assert.Contains(t, msgs, "run interrupted")
	assert.Contains(t, msgs, "run resuming")
	assert.Contains(t, msgs, "checkpoint saved")
}

func TestRun_NodeLoggerEnriched(t *testing.T) {
	h := newTestLogHandler()
	ctx := NewContext(context.Background(), WithLogger(slog.New(h)))

	compiled := mustCompile(NewGraph(counterSchema()).
		AddNode("work", func(ctx Context, s State) (Update, error) {
			ctx.Logger().Info("doing work")
			return nil, nil
		}).
		SetFinish("work").
		SetEntry("work"))

	_, err := compiled.Run(ctx, nil, WithThreadID("enriched"))
	require.NoError(t, err)

	records := h.getRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "enriched", records[0]["thread_id"])
	assert.Equal(t, "work", records[0]["node_id"])
	assert.Equal(t, float64(1), records[0]["step"])
}

func TestRun_WithMetricsRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	recorder, err := observability.NewMetricsRecorderWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	compiled := countToFive(counterSchema(), increment)
	_, err = compiled.Run(testCtx(), nil,
		WithMetricsRecorder(recorder),
		WithCheckpointing(checkpoint.NewMemoryStore()),
		WithThreadID("metrics"))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(5), sums["stategraph.node.executions"])
	assert.Equal(t, int64(1), sums["stategraph.graph.runs"])
	assert.True(t, names["stategraph.checkpoint.size_bytes"])
	assert.True(t, names["stategraph.node.latency_ms"])
}

func TestRun_WithSpanManager(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer provider.Shutdown(context.Background())

	compiled := mustCompile(NewGraph(counterSchema()).
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		SetFinish("b").
		SetEntry("a"))

	_, err := compiled.Run(testCtx(), nil,
		WithSpanManager(observability.NewSpanManagerWithProvider(provider)),
		WithGraphName("pair"))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		byName[s.Name()] = s
	}
	run := byName["stategraph.run"]
	require.NotNil(t, run)
	require.NotNil(t, byName["stategraph.node.a"])
	require.NotNil(t, byName["stategraph.node.b"])
	assert.Equal(t, run.SpanContext().SpanID(), byName["stategraph.node.a"].Parent().SpanID())
	assert.Equal(t, run.SpanContext().SpanID(), byName["stategraph.node.b"].Parent().SpanID())
}

func TestRun_WithMetricsAndTracing_GlobalProviders(t *testing.T) {
	compiled := mustCompile(NewGraph(counterSchema()).
		AddNode("inc", increment).
		SetFinish("inc").
		SetEntry("inc"))

	result, err := compiled.Run(testCtx(), nil,
		WithObservabilityLogger(slog.New(newTestLogHandler())),
		WithMetrics(true),
		WithTracing(true))

	require.NoError(t, err)
	assert.Equal(t, 1, result.State["count"])
}

func TestRun_ObservabilityOptions_AreApplied(t *testing.T) {
	t.Run("WithMetrics sets metricsEnabled", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithMetrics(true)(&cfg)
		assert.True(t, cfg.metricsEnabled)
		assert.NotNil(t, cfg.metrics)
	})

	t.Run("WithMetrics false sets noop", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithMetrics(false)(&cfg)
		assert.False(t, cfg.metricsEnabled)
		assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	})

	t.Run("WithTracing sets tracingEnabled", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithTracing(true)(&cfg)
		assert.True(t, cfg.tracingEnabled)
		assert.NotNil(t, cfg.spans)
	})

	t.Run("WithTracing false sets noop", func(t *testing.T) {
		cfg := defaultRunConfig()
		WithTracing(false)(&cfg)
		assert.False(t, cfg.tracingEnabled)
		assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)
	})
}
