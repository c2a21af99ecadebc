package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Context provides execution context to nodes and routers.
// It extends context.Context with stategraph-specific services and metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each step with updated NodeID, Step and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with thread, node and
	// step context during execution. Never returns nil.
	Logger() *slog.Logger

	// RunID returns the identifier of this invocation. Every Run, Resume
	// or Stream call gets a fresh run ID unless one was fixed with
	// WithContextRunID.
	RunID() string

	// ThreadID returns the thread the run belongs to, or "" when the run is
	// not bound to a thread.
	ThreadID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// Step returns the 1-based step number within this invocation.
	Step() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger   *slog.Logger
	runID    string
	threadID string
	nodeID   string
	step     int

	// fixedRunID is set when the caller chose runID.
	fixedRunID bool

	// interrupts is set while a node is executing.
	interrupts *interruptScope
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// ThreadID returns the thread identifier.
func (c *executionContext) ThreadID() string {
	return c.threadID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Step returns the step number.
func (c *executionContext) Step() int {
	return c.step
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with thread_id, node_id and step during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID fixes the run identifier for every invocation made
// with the context. If not set, each invocation gets a new UUID.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
		c.fixedRunID = true
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithLogger(myLogger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// asExecutionContext returns ctx as the internal implementation, wrapping
// foreign Context implementations.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	logger := ctx.Logger()
	if logger == nil {
		logger = slog.Default()
	}
	return &executionContext{
		Context:  ctx,
		logger:   logger,
		runID:    ctx.RunID(),
		threadID: ctx.ThreadID(),
		nodeID:   ctx.NodeID(),
		step:     ctx.Step(),

		fixedRunID: true,
	}
}

// forThread returns a copy for one invocation bound to threadID.
func (c *executionContext) forThread(threadID string) *executionContext {
	cp := *c
	cp.threadID = threadID
	if !cp.fixedRunID {
		cp.runID = uuid.NewString()
	}
	return &cp
}

// withNode returns a derived context for one step of nodeID. parent carries
// the tracing span of the step.
func (c *executionContext) withNode(parent context.Context, nodeID string, step int, scope *interruptScope) *executionContext {
	return &executionContext{
		Context:    parent,
		logger:     observability.EnrichLogger(c.logger, c.threadID, nodeID, step),
		runID:      c.runID,
		threadID:   c.threadID,
		nodeID:     nodeID,
		step:       step,
		interrupts: scope,
	}
}
