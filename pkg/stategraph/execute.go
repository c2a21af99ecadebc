package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Result is the outcome of Run, Resume or a completed Stream.
type Result struct {
	// ThreadID is the thread the run was bound to, if any.
	ThreadID string
	// State is the state after the last completed step. On error it is the
	// state at the point of failure.
	State State
	// Interrupt is set when a node parked the thread. The run did not reach END.
	Interrupt *PendingInterrupt
	// Steps is the number of node executions that completed in this invocation.
	Steps int
	// Path lists the nodes that completed, in execution order.
	Path []string
}

// Interrupted reports whether the run stopped on an interrupt.
func (r *Result) Interrupted() bool {
	return r != nil && r.Interrupt != nil
}

// runStart is where an invocation begins.
type runStart struct {
	state        State
	node         string
	prevNode     string
	resumeValues []json.RawMessage
}

// Run executes the graph.
//
// Without checkpointing the run starts at the entry point from the schema's
// initial values with input merged on top. With WithCheckpointing and
// WithThreadID the run picks up the thread:
//   - no checkpoint: start at the entry point as above
//   - finished thread: merge input into the stored state and start at the
//     entry point again
//   - unfinished thread: merge input and continue at the stored next node
//   - parked thread: fail with a *ProtocolError wrapping ErrInterruptPending
//
// On error the returned Result, when non-nil, holds the state at the point
// of failure.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, stategraph.Update{"count": 0})
//	if err != nil {
//	    // result.State contains state at point of failure
//	}
func (cg *CompiledGraph) Run(ctx Context, input Update, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := newRunConfig(opts)
	return cg.execute(ctx, &cfg, func(ec *executionContext) (*runStart, error) {
		return cg.prepareRun(ec, &cfg, input)
	})
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// execute runs one invocation with run-level observability.
func (cg *CompiledGraph) execute(ctx Context, cfg *runConfig, prepare func(*executionContext) (*runStart, error)) (res *Result, runErr error) {
	if cfg.checkpointStore != nil && cfg.threadID == "" {
		return nil, ErrThreadIDRequired
	}

	if cfg.threadID != "" {
		if !cg.locks.acquire(cfg.threadID) {
			return nil, &ProtocolError{ThreadID: cfg.threadID, Err: ErrThreadBusy}
		}
		defer cg.locks.release(cfg.threadID)
	}

	ec := asExecutionContext(ctx).forThread(cfg.threadID)

	start, err := prepare(ec)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, cfg.threadID, start.node)

	tracingCtx, runSpan := cfg.spans.StartRunSpan(ec, cfg.graphName, cfg.threadID)
	defer func() {
		cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	res, runErr = cg.loop(tracingCtx, ec, cfg, start)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	switch {
	case errors.Is(runErr, errStreamStopped):
		cfg.metrics.RecordGraphRun(ec, "stopped", duration)
	case runErr != nil:
		cfg.metrics.RecordGraphRun(ec, "failed", duration)
		observability.LogRunError(cfg.logger, cfg.threadID, runErr, durationMs, lastNode(runErr))
	case res.Interrupted():
		cfg.metrics.RecordGraphRun(ec, "interrupted", duration)
	default:
		cfg.metrics.RecordGraphRun(ec, "completed", duration)
		observability.LogRunComplete(cfg.logger, cfg.threadID, durationMs, res.Steps)
	}

	return res, runErr
}

// prepareRun determines where Run starts.
func (cg *CompiledGraph) prepareRun(ctx context.Context, cfg *runConfig, input Update) (*runStart, error) {
	if cfg.checkpointStore == nil {
		return cg.initialStart(input)
	}

	cp, err := cfg.checkpointStore.Get(ctx, cfg.threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return cg.initialStart(input)
	}
	if err != nil {
		return nil, &CheckpointError{Op: "load", Err: err}
	}

	if cp.Pending != nil {
		return nil, &ProtocolError{ThreadID: cfg.threadID, NodeID: cp.Pending.NodeID, Err: ErrInterruptPending}
	}

	state, err := cg.restoreState(cp)
	if err != nil {
		return nil, err
	}
	state, err = cg.schema.Merge(state, input)
	if err != nil {
		return nil, err
	}
	cfg.sequence = cp.Sequence

	if cp.Finished(END) {
		return &runStart{state: state, node: cg.entryPoint}, nil
	}
	if !cg.HasNode(cp.NextNode) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResumeNode, cp.NextNode)
	}
	return &runStart{state: state, node: cp.NextNode, prevNode: cp.NodeID}, nil
}

func (cg *CompiledGraph) initialStart(input Update) (*runStart, error) {
	state, err := cg.schema.Init(input)
	if err != nil {
		return nil, err
	}
	return &runStart{state: state, node: cg.entryPoint}, nil
}

// restoreState checks the checkpoint version and decodes its state.
func (cg *CompiledGraph) restoreState(cp *checkpoint.Checkpoint) (State, error) {
	if cp.Version != checkpoint.Version {
		return nil, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}
	state, err := cg.schema.Decode(cp.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserializeState, err)
	}
	return state, nil
}

// loop is the step loop: run the node, merge its update, route, checkpoint.
func (cg *CompiledGraph) loop(tracingCtx context.Context, ec *executionContext, cfg *runConfig, start *runStart) (*Result, error) {
	res := &Result{ThreadID: cfg.threadID, State: start.state}
	state := start.state
	current := start.node
	prev := start.prevNode
	resumeValues := start.resumeValues

	for current != END {
		if cfg.maxSteps > 0 && res.Steps >= cfg.maxSteps {
			return res, &MaxStepsError{Max: cfg.maxSteps, LastNodeID: current, State: state}
		}

		if err := ec.Err(); err != nil {
			return res, &CancellationError{NodeID: current, State: state, Cause: err}
		}

		step := res.Steps + 1
		observability.LogNodeStart(cfg.logger, current, step)

		nodeTracingCtx, nodeSpan := cfg.spans.StartNodeSpan(tracingCtx, current, step)
		scope := newInterruptScope(current, resumeValues)
		nodeCtx := ec.withNode(nodeTracingCtx, current, step, scope)

		nodeStart := time.Now()
		cmd, err := cg.executeNode(nodeCtx, current, state)

		if scope.violation != nil {
			err = scope.violation
		} else if scope.pending != nil {
			cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, time.Since(nodeStart), nil)
			cfg.spans.AddSpanEvent(nodeTracingCtx, "interrupt",
				attribute.String("interrupt.id", scope.pending.ID))
			cfg.spans.EndSpanWithError(nodeSpan, nil)
			return cg.park(ec, cfg, res, state, current, prev, scope)
		}

		if err != nil && ec.Err() != nil {
			err = &CancellationError{NodeID: current, State: state, Cause: ec.Err(), WasExecuting: true}
		}

		next := ""
		updated := state
		if err == nil {
			updated, err = cg.schema.Merge(state, cmd.Update)
			if err != nil {
				err = &NodeError{NodeID: current, Op: "merge", Err: err}
			}
		}
		if err == nil {
			next, err = cg.route(nodeCtx, current, cmd, updated)
		}

		nodeDuration := time.Since(nodeStart)
		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, err)
		cfg.spans.EndSpanWithError(nodeSpan, err)

		if err != nil {
			observability.LogNodeError(cfg.logger, current, err)
			return res, err
		}
		observability.LogNodeComplete(cfg.logger, current, next, float64(nodeDuration.Milliseconds()))

		state = updated
		res.State = state
		res.Steps++
		res.Path = append(res.Path, current)

		if cfg.checkpointStore != nil {
			cp, err := cg.newCheckpoint(cfg, current, state, next)
			if err == nil {
				err = cg.saveCheckpoint(ec, cfg, cp.WithPrevNode(prev))
			}
			if err != nil {
				return res, err
			}
		}

		if cfg.emit != nil && !cfg.emit(StepEvent{
			Step:   step,
			NodeID: current,
			Update: cmd.Update,
			State:  cg.schema.Copy(state),
			Next:   next,
		}) {
			return res, errStreamStopped
		}

		prev = current
		current = next
		resumeValues = nil
	}

	return res, nil
}

// park records a pending interrupt and ends the invocation.
func (cg *CompiledGraph) park(ec *executionContext, cfg *runConfig, res *Result, state State, current, prev string, scope *interruptScope) (*Result, error) {
	pending := scope.pending
	res.Interrupt = pending

	observability.LogInterrupt(cfg.logger, cfg.threadID, current, pending.ID)
	cfg.metrics.RecordInterrupt(ec, current)

	if cfg.checkpointStore != nil {
		cp, err := cg.newCheckpoint(cfg, current, state, current)
		if err == nil {
			cp = cp.WithPrevNode(prev).
				WithPending(pending.checkpoint()).
				WithResumeValues(scope.consumed())
			err = cg.saveCheckpoint(ec, cfg, cp)
		}
		if err != nil {
			return res, err
		}
	}

	if cfg.emit != nil && !cfg.emit(StepEvent{
		Step:      res.Steps + 1,
		NodeID:    current,
		State:     cg.schema.Copy(state),
		Next:      current,
		Interrupt: pending,
	}) {
		return res, errStreamStopped
	}
	return res, nil
}

// newCheckpoint serializes state into the next checkpoint for the thread.
func (cg *CompiledGraph) newCheckpoint(cfg *runConfig, nodeID string, state State, next string) (*checkpoint.Checkpoint, error) {
	data, err := cg.schema.Encode(state)
	if err != nil {
		return nil, &CheckpointError{NodeID: nodeID, Op: "serialize", Err: fmt.Errorf("%w: %w", ErrSerializeState, err)}
	}
	cfg.sequence++
	return checkpoint.New(cfg.threadID, nodeID, cfg.sequence, data, next), nil
}

// saveCheckpoint persists cp. Failures are returned when checkpoint
// failures are fatal and logged otherwise.
func (cg *CompiledGraph) saveCheckpoint(ctx context.Context, cfg *runConfig, cp *checkpoint.Checkpoint) error {
	if err := cfg.checkpointStore.Put(ctx, cp); err != nil {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: cp.NodeID, Op: "save", Err: err}
		}
		observability.LogCheckpointError(cfg.logger, cp.NodeID, "save", err)
		return nil
	}

	observability.LogCheckpoint(cfg.logger, cp.NodeID, cp.Sequence, len(cp.State))
	cfg.metrics.RecordCheckpoint(ctx, cp.NodeID, int64(len(cp.State)))
	return nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph) executeNode(ctx *executionContext, nodeID string, state State) (cmd Command, err error) {
	n, exists := cg.nodes[nodeID]
	if !exists {
		return Command{}, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			cmd = Command{}
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	cmd, err = n.invoke(ctx, cg.schema.Copy(state))
	if err != nil {
		return Command{}, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}
	return cmd, nil
}

// route determines the node after current. A command's Goto wins, then
// the conditional edge, then the static edge.
func (cg *CompiledGraph) route(ctx Context, current string, cmd Command, state State) (next string, err error) {
	n := cg.nodes[current]

	if cmd.Goto != "" {
		if !slices.Contains(n.destinations, cmd.Goto) {
			return "", &RouterError{FromNode: current, Returned: cmd.Goto, Err: ErrUnknownRoute}
		}
		return cmd.Goto, nil
	}

	if ce, ok := cg.conditionalEdges[current]; ok {
		defer func() {
			if r := recover(); r != nil {
				next = ""
				err = &PanicError{NodeID: current, Value: r, Stack: string(debug.Stack())}
			}
		}()

		label := ce.router(ctx, cg.schema.Copy(state))
		if label == "" {
			return "", &RouterError{FromNode: current, Returned: label, Err: ErrInvalidRouterResult}
		}
		if ce.routes != nil {
			to, ok := ce.routes[label]
			if !ok {
				return "", &RouterError{FromNode: current, Returned: label, Err: ErrUnknownRoute}
			}
			return to, nil
		}
		if label != END && !cg.HasNode(label) {
			return "", &RouterError{FromNode: current, Returned: label, Err: ErrRouterTargetNotFound}
		}
		return label, nil
	}

	if to, ok := cg.edges[current]; ok {
		return to, nil
	}
	return "", &RouterError{FromNode: current, Err: ErrNoRoute}
}

// lastNode extracts the node an execution error refers to.
func lastNode(err error) string {
	var (
		nodeErr   *NodeError
		panicErr  *PanicError
		routerErr *RouterError
		maxErr    *MaxStepsError
		cancelErr *CancellationError
		cpErr     *CheckpointError
		protoErr  *ProtocolError
	)
	switch {
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	case errors.As(err, &cpErr):
		return cpErr.NodeID
	case errors.As(err, &protoErr):
		return protoErr.NodeID
	}
	return ""
}
