package stategraph

import (
	"errors"
	"iter"
	"slices"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// errStreamStopped ends a run when a Stream consumer stops iterating.
var errStreamStopped = errors.New("stream stopped by consumer")

// StepEvent describes one completed step, or the step that parked the
// thread on an interrupt.
type StepEvent struct {
	// Step is the 1-based step number within the invocation.
	Step int
	// NodeID is the node that ran.
	NodeID string
	// Update is the partial update the node returned.
	Update Update
	// State is the merged state after the step.
	State State
	// Next is the node that runs next, or END.
	Next string
	// Interrupt is set when the node parked the thread.
	Interrupt *PendingInterrupt
}

// Stream runs the graph like Run and yields an event after every step.
// A failed run yields a final zero event with the error. Breaking out of
// the loop stops the run after the current step; checkpoints written so
// far are kept and a later Run on the thread continues from them.
//
// Example:
//
//	for ev, err := range compiled.Stream(ctx, input) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(ev.NodeID, ev.State)
//	}
func (cg *CompiledGraph) Stream(ctx Context, input Update, opts ...RunOption) iter.Seq2[StepEvent, error] {
	return cg.stream(opts, func(opts []RunOption) error {
		_, err := cg.Run(ctx, input, opts...)
		return err
	})
}

// ResumeStream resumes a parked thread like Resume and yields an event
// after every step.
func (cg *CompiledGraph) ResumeStream(ctx Context, store checkpoint.Store, threadID string, value any, opts ...RunOption) iter.Seq2[StepEvent, error] {
	return cg.stream(opts, func(opts []RunOption) error {
		_, err := cg.Resume(ctx, store, threadID, value, opts...)
		return err
	})
}

func (cg *CompiledGraph) stream(opts []RunOption, run func([]RunOption) error) iter.Seq2[StepEvent, error] {
	return func(yield func(StepEvent, error) bool) {
		stopped := false
		emit := func(c *runConfig) {
			c.emit = func(ev StepEvent) bool {
				if !yield(ev, nil) {
					stopped = true
					return false
				}
				return true
			}
		}

		err := run(append(slices.Clip(opts), emit))
		if err != nil && !stopped && !errors.Is(err, errStreamStopped) {
			yield(StepEvent{}, err)
		}
	}
}
