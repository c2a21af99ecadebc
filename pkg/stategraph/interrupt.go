package stategraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// ErrInterruptOutsideNode indicates Interrupt was called with a Context
// that does not belong to an executing node.
var ErrInterruptOutsideNode = errors.New("interrupt called outside node execution")

// InterruptError is returned by Interrupt when the node must suspend.
// Nodes return it (or any error wrapping it) unchanged.
type InterruptError struct {
	// NodeID is the node that asked for input.
	NodeID string
	// Payload is the value surfaced to the caller.
	Payload any
}

// Error implements the error interface.
func (e *InterruptError) Error() string {
	return fmt.Sprintf("node %s interrupted", e.NodeID)
}

// PendingInterrupt describes a thread parked on an interrupt.
type PendingInterrupt struct {
	// ID uniquely identifies the interrupt.
	ID string
	// NodeID is the node that will be re-invoked on Resume.
	NodeID string
	// Index is the position of the Interrupt call within the node,
	// counting calls that already received resume values.
	Index int
	// Payload is the value passed to Interrupt, as JSON.
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (p *PendingInterrupt) Decode(v any) error {
	return json.Unmarshal(p.Payload, v)
}

func pendingFromCheckpoint(p *checkpoint.Pending) *PendingInterrupt {
	if p == nil {
		return nil
	}
	return &PendingInterrupt{ID: p.ID, NodeID: p.NodeID, Index: p.Index, Payload: p.Payload}
}

func (p *PendingInterrupt) checkpoint() *checkpoint.Pending {
	return &checkpoint.Pending{ID: p.ID, NodeID: p.NodeID, Index: p.Index, Payload: p.Payload}
}

// interruptScope tracks Interrupt calls during one node execution.
// The i-th Interrupt call returns resumeValues[i]; the first call past the
// end of resumeValues parks the node.
type interruptScope struct {
	nodeID       string
	resumeValues []json.RawMessage
	next         int
	pending      *PendingInterrupt
	violation    error
}

func newInterruptScope(nodeID string, resumeValues []json.RawMessage) *interruptScope {
	return &interruptScope{nodeID: nodeID, resumeValues: resumeValues}
}

// consumed returns the resume values handed out so far.
func (s *interruptScope) consumed() []json.RawMessage {
	return s.resumeValues[:s.next]
}

// Interrupt suspends the current node until the thread is resumed.
//
// On first execution it records payload and returns an *InterruptError
// that the node must return; the executor then parks the thread at this
// node. When the thread is resumed the node runs again from the start and
// this call returns the resume value instead. A node may call Interrupt
// several times; the i-th call receives the i-th resume value.
//
// Resume values cross a JSON boundary: they come back as the types
// encoding/json produces for an any (string, float64, map[string]any...).
// Use InterruptAs for a typed value.
//
// Example:
//
//	answer, err := stategraph.Interrupt(ctx, map[string]string{"ask": "feedback"})
//	if err != nil {
//	    return nil, err
//	}
func Interrupt(ctx Context, payload any) (any, error) {
	raw, err := interrupt(ctx, payload)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode resume value: %w", err)
	}
	return v, nil
}

// InterruptAs is Interrupt with the resume value decoded into T.
func InterruptAs[T any](ctx Context, payload any) (T, error) {
	var v T
	raw, err := interrupt(ctx, payload)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode resume value: %w", err)
	}
	return v, nil
}

func interrupt(ctx Context, payload any) (json.RawMessage, error) {
	ec, ok := ctx.(*executionContext)
	if !ok || ec.interrupts == nil {
		return nil, ErrInterruptOutsideNode
	}
	scope := ec.interrupts

	if scope.pending != nil {
		scope.violation = &ProtocolError{
			ThreadID: ec.threadID,
			NodeID:   ec.nodeID,
			Err:      ErrInterruptPending,
		}
		return nil, scope.violation
	}

	if scope.next < len(scope.resumeValues) {
		v := scope.resumeValues[scope.next]
		scope.next++
		return v, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode interrupt payload: %w", err)
	}
	scope.pending = &PendingInterrupt{
		ID:      uuid.New().String(),
		NodeID:  ec.nodeID,
		Index:   scope.next,
		Payload: data,
	}
	return nil, &InterruptError{NodeID: ec.nodeID, Payload: payload}
}
