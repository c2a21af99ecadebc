package stategraph

import (
	"log/slog"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"github.com/stretchr/testify/assert"
)

// TestDefaultRunConfig tests the defaults applied before options.
func TestDefaultRunConfig(t *testing.T) {
	cfg := defaultRunConfig()

	assert.Equal(t, 0, cfg.maxSteps, "no step limit by default")
	assert.True(t, cfg.checkpointFailureFatal)
	assert.Nil(t, cfg.checkpointStore)
	assert.Nil(t, cfg.logger)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)
	assert.Equal(t, "stategraph", cfg.graphName)
}

// TestWithMaxSteps_Valid tests valid step limits.
func TestWithMaxSteps_Valid(t *testing.T) {
	for _, n := range []int{1, 100, 1_000_000} {
		cfg := defaultRunConfig()
		WithMaxSteps(n)(&cfg)
		assert.Equal(t, n, cfg.maxSteps)
	}
}

// TestWithMaxSteps_PanicsOnNonPositive tests panic for zero and negative values.
func TestWithMaxSteps_PanicsOnNonPositive(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		assert.PanicsWithValue(t, "stategraph: max steps must be positive", func() {
			WithMaxSteps(n)
		})
	}
}

// TestRunOptions_Applied tests the remaining options set their fields.
func TestRunOptions_Applied(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	logger := slog.Default()

	cfg := newRunConfig([]RunOption{
		WithCheckpointing(store),
		WithThreadID("thread"),
		WithCheckpointFailureNonFatal(),
		WithObservabilityLogger(logger),
		WithGraphName("review"),
	})

	assert.Same(t, store, cfg.checkpointStore)
	assert.Equal(t, "thread", cfg.threadID)
	assert.False(t, cfg.checkpointFailureFatal)
	assert.Same(t, logger, cfg.logger)
	assert.Equal(t, "review", cfg.graphName)
}

// TestRunOptions_NilRecorderIgnored tests nil recorders keep the no-op defaults.
func TestRunOptions_NilRecorderIgnored(t *testing.T) {
	cfg := newRunConfig([]RunOption{WithMetricsRecorder(nil), WithSpanManager(nil)})

	assert.False(t, cfg.metricsEnabled)
	assert.False(t, cfg.tracingEnabled)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
}
