package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

// TestNoopSpanManager_RunLifecycle walks the span calls one interrupted
// run makes and checks nothing is recorded or attached to the context.
func TestNoopSpanManager_RunLifecycle(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	runCtx, runSpan := sm.StartRunSpan(ctx, "review", "thread-1")
	assert.Equal(t, ctx, runCtx)
	assert.False(t, runSpan.IsRecording())
	assert.False(t, runSpan.SpanContext().IsValid())

	for step, node := range []string{"draft", "human_feedback"} {
		nodeCtx, nodeSpan := sm.StartNodeSpan(runCtx, node, step+1)
		assert.Equal(t, runCtx, nodeCtx, node)
		assert.False(t, nodeSpan.IsRecording(), node)
		sm.EndSpanWithError(nodeSpan, nil)
	}

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(runCtx, "interrupt",
			attribute.String("node_id", "human_feedback"),
			attribute.String("interrupt_id", "int-1"),
		)
		sm.EndSpanWithError(runSpan, errors.New("interrupted"))
		sm.EndSpanWithError(nil, nil)
	})
}

func TestNoopMetrics_RunLifecycle(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordNodeExecution(ctx, "draft", 20*time.Millisecond, nil)
		m.RecordCheckpoint(ctx, "draft", 512)
		m.RecordNodeExecution(ctx, "human_feedback", time.Millisecond, errors.New("node failed"))
		m.RecordInterrupt(ctx, "human_feedback")
		m.RecordGraphRun(ctx, "interrupted", 25*time.Millisecond)
	})
}
