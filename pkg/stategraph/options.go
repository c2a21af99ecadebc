package stategraph

import (
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	// maxSteps is 0 when no limit applies.
	maxSteps int

	checkpointStore        checkpoint.Store
	threadID               string
	checkpointFailureFatal bool

	// sequence is the last checkpoint sequence written for the thread.
	sequence int

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	metricsEnabled bool
	spans          observability.SpanManager
	tracingEnabled bool
	graphName      string

	// emit receives step events for Stream. Returning false stops the run.
	emit func(StepEvent) bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		checkpointFailureFatal: true,
		metrics:                observability.NoopMetrics{},
		spans:                  observability.NoopSpanManager{},
		graphName:              "stategraph",
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxSteps limits the number of node executions in one invocation.
// There is no limit by default; loops are expected to terminate through
// their own routing. Exceeding the limit returns a *MaxStepsError.
//
// Panics if n <= 0.
//
// Example:
//
//	result, err := compiled.Run(ctx, input, stategraph.WithMaxSteps(100))
func WithMaxSteps(n int) RunOption {
	if n <= 0 {
		panic("stategraph: max steps must be positive")
	}
	return func(c *runConfig) {
		c.maxSteps = n
	}
}

// WithCheckpointing enables per-step checkpointing to store.
// WithThreadID must also be given.
//
// Example:
//
//	store := checkpoint.NewMemoryStore()
//	result, err := compiled.Run(ctx, input,
//	    stategraph.WithCheckpointing(store),
//	    stategraph.WithThreadID("thread-1"))
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithThreadID binds the run to a thread. With checkpointing enabled the
// run continues from the thread's latest checkpoint.
func WithThreadID(id string) RunOption {
	return func(c *runConfig) {
		c.threadID = id
	}
}

// WithCheckpointFailureNonFatal logs checkpoint save failures instead of
// failing the run.
func WithCheckpointFailureNonFatal() RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = false
	}
}

// WithObservabilityLogger enables run-level logging to logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables or disables OpenTelemetry metrics using the global
// meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		c.metricsEnabled = enabled
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder enables metrics with a specific recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m == nil {
			return
		}
		c.metricsEnabled = true
		c.metrics = m
	}
}

// WithTracing enables or disables OpenTelemetry tracing using the global
// tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager enables tracing with a specific span manager.
func WithSpanManager(s observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if s == nil {
			return
		}
		c.tracingEnabled = true
		c.spans = s
	}
}

// WithGraphName sets the graph name recorded on run spans.
func WithGraphName(name string) RunOption {
	return func(c *runConfig) {
		c.graphName = name
	}
}
