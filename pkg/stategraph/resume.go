package stategraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Resume continues a thread parked on an interrupt. The parked node runs
// again from the start; its Interrupt calls return the values given to
// earlier Resume calls in order, and the pending call returns value.
// Nodes completed before the interrupt are not re-run.
//
// Returns a *ProtocolError wrapping ErrNoPendingInterrupt when the thread
// has no checkpoint or is not parked.
//
// Example:
//
//	result, err := compiled.Run(ctx, input, stategraph.WithCheckpointing(store), stategraph.WithThreadID("t1"))
//	if result.Interrupted() {
//	    result, err = compiled.Resume(ctx, store, "t1", "approved")
//	}
func (cg *CompiledGraph) Resume(ctx Context, store checkpoint.Store, threadID string, value any, opts ...RunOption) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := newRunConfig(opts)
	cfg.checkpointStore = store
	cfg.threadID = threadID
	return cg.execute(ctx, &cfg, func(ec *executionContext) (*runStart, error) {
		return cg.prepareResume(ec, &cfg, value)
	})
}

// prepareResume determines where Resume starts.
func (cg *CompiledGraph) prepareResume(ec *executionContext, cfg *runConfig, value any) (*runStart, error) {
	cp, err := cfg.checkpointStore.Get(ec, cfg.threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, &ProtocolError{ThreadID: cfg.threadID, Err: ErrNoPendingInterrupt}
	}
	if err != nil {
		return nil, &CheckpointError{Op: "load", Err: err}
	}
	if cp.Pending == nil {
		return nil, &ProtocolError{ThreadID: cfg.threadID, NodeID: cp.NodeID, Err: ErrNoPendingInterrupt}
	}

	state, err := cg.restoreState(cp)
	if err != nil {
		return nil, err
	}
	nodeID := cp.Pending.NodeID
	if !cg.HasNode(nodeID) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResumeNode, nodeID)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode resume value: %w", err)
	}
	cfg.sequence = cp.Sequence

	observability.LogResume(cfg.logger, cfg.threadID, nodeID, cp.Sequence)

	return &runStart{
		state:        state,
		node:         nodeID,
		prevNode:     cp.PrevNodeID,
		resumeValues: append(slices.Clone(cp.ResumeValues), raw),
	}, nil
}

// Snapshot is the latest checkpointed position of a thread.
type Snapshot struct {
	ThreadID string
	// NodeID is the node that wrote the checkpoint.
	NodeID string
	// NextNode is the node the thread continues at, or END.
	NextNode string
	// State is the decoded state with declared field types.
	State State
	// Pending is set when the thread is parked on an interrupt.
	Pending  *PendingInterrupt
	Sequence int
	Time     time.Time
}

// Finished reports whether the thread reached END.
func (s *Snapshot) Finished() bool {
	return s.Pending == nil && s.NextNode == END
}

// GetState returns the latest snapshot of a thread.
// Returns checkpoint.ErrNotFound if the thread has no checkpoint.
func (cg *CompiledGraph) GetState(ctx context.Context, store checkpoint.Store, threadID string) (*Snapshot, error) {
	cp, err := store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return cg.snapshot(cp)
}

// UpdateState merges update into a thread's latest state and writes it as a
// new checkpoint, keeping the thread's position and any pending interrupt.
// A thread with no checkpoint is created at the entry point.
//
// Use it to edit state between runs, for example to correct a value before
// resuming a parked thread.
func (cg *CompiledGraph) UpdateState(ctx context.Context, store checkpoint.Store, threadID string, update Update) (*Snapshot, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	if !cg.locks.acquire(threadID) {
		return nil, &ProtocolError{ThreadID: threadID, Err: ErrThreadBusy}
	}
	defer cg.locks.release(threadID)

	latest, err := store.Get(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		state, err := cg.schema.Init(update)
		if err != nil {
			return nil, err
		}
		return cg.writeState(ctx, store, checkpoint.New(threadID, cg.entryPoint, 0, nil, cg.entryPoint), state)
	}
	if err != nil {
		return nil, &CheckpointError{Op: "load", Err: err}
	}

	state, err := cg.restoreState(latest)
	if err != nil {
		return nil, err
	}
	state, err = cg.schema.Merge(state, update)
	if err != nil {
		return nil, err
	}
	return cg.writeState(ctx, store, latest, state)
}

// writeState stores state as the successor of base.
func (cg *CompiledGraph) writeState(ctx context.Context, store checkpoint.Store, base *checkpoint.Checkpoint, state State) (*Snapshot, error) {
	data, err := cg.schema.Encode(state)
	if err != nil {
		return nil, &CheckpointError{NodeID: base.NodeID, Op: "serialize", Err: fmt.Errorf("%w: %w", ErrSerializeState, err)}
	}
	cp := checkpoint.New(base.ThreadID, base.NodeID, base.Sequence+1, data, base.NextNode).
		WithPrevNode(base.PrevNodeID).
		WithPending(base.Pending).
		WithResumeValues(base.ResumeValues)
	if err := store.Put(ctx, cp); err != nil {
		return nil, &CheckpointError{NodeID: cp.NodeID, Op: "save", Err: err}
	}
	return cg.snapshot(cp)
}

func (cg *CompiledGraph) snapshot(cp *checkpoint.Checkpoint) (*Snapshot, error) {
	state, err := cg.restoreState(cp)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ThreadID: cp.ThreadID,
		NodeID:   cp.NodeID,
		NextNode: cp.NextNode,
		State:    state,
		Pending:  pendingFromCheckpoint(cp.Pending),
		Sequence: cp.Sequence,
		Time:     cp.Timestamp,
	}, nil
}
