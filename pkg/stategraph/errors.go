package stategraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates a node name was registered twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInvalidNodeID indicates a node name is empty, reserved or contains whitespace.
	ErrInvalidNodeID = errors.New("invalid node ID")

	// ErrDeadEnd indicates a node has no outgoing edge.
	ErrDeadEnd = errors.New("node has no outgoing edge")

	// ErrUnreachableNode indicates a node cannot be reached from the entry point.
	ErrUnreachableNode = errors.New("node unreachable from entry")

	// ErrConflictingEdges indicates a node has more than one way to pick its successor.
	ErrConflictingEdges = errors.New("conflicting edges")
)

// Sentinel errors for state merging.
var (
	// ErrUndeclaredField indicates an update or checkpoint names a field missing from the schema.
	ErrUndeclaredField = errors.New("undeclared state field")

	// ErrFieldType indicates a value cannot be stored in a field's declared type.
	ErrFieldType = errors.New("field type mismatch")
)

// Sentinel errors for execution.
var (
	// ErrMaxSteps indicates the run exceeded the limit set with WithMaxSteps.
	ErrMaxSteps = errors.New("exceeded maximum steps")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router function returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrRouterTargetNotFound indicates a router function returned an unknown node ID.
	ErrRouterTargetNotFound = errors.New("router returned unknown node")

	// ErrUnknownRoute indicates a router label or command destination is not declared.
	ErrUnknownRoute = errors.New("route not declared")

	// ErrNoRoute indicates a node finished without any way to choose a successor.
	ErrNoRoute = errors.New("no route from node")
)

// Sentinel errors for checkpointing and the interrupt protocol.
var (
	// ErrThreadIDRequired indicates checkpointing was enabled without a thread ID.
	ErrThreadIDRequired = errors.New("thread ID required for checkpointing")

	// ErrInterruptPending indicates the thread is parked on an interrupt, or a
	// node asked for a second interrupt while one was pending.
	ErrInterruptPending = errors.New("interrupt already pending")

	// ErrNoPendingInterrupt indicates Resume was called on a thread that is not parked.
	ErrNoPendingInterrupt = errors.New("no pending interrupt")

	// ErrThreadBusy indicates another run in this process holds the thread.
	ErrThreadBusy = errors.New("thread is already running")

	// ErrSerializeState indicates state serialization failed.
	ErrSerializeState = errors.New("failed to serialize state")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrInvalidResumeNode indicates the checkpointed node doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// MergeError reports a field that could not be merged or decoded.
type MergeError struct {
	// Field is the state field name.
	Field string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *MergeError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node where checkpointing failed.
	NodeID string
	// Op is the operation that failed ("save", "load", "serialize").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("execute" or "merge").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures the state when execution was cancelled.
type CancellationError struct {
	// NodeID is the node that was about to execute or was executing.
	NodeID string
	// State is the state at cancellation.
	State State
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
	// WasExecuting is true if cancellation occurred during node execution.
	WasExecuting bool
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.WasExecuting {
		return fmt.Sprintf("cancelled during node %s: %v", e.NodeID, e.Cause)
	}
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from routing after a node.
type RouterError struct {
	// FromNode is the node whose successor was being chosen.
	FromNode string
	// Returned is the label or destination that was returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// ProtocolError reports misuse of the interrupt/resume protocol or of a thread.
type ProtocolError struct {
	// ThreadID is the affected thread.
	ThreadID string
	// NodeID is the node involved, if any.
	NodeID string
	// Err is one of ErrInterruptPending, ErrNoPendingInterrupt or ErrThreadBusy.
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("thread %s: %v", e.ThreadID, e.Err)
	}
	return fmt.Sprintf("thread %s at node %s: %v", e.ThreadID, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// MaxStepsError provides context when the step limit is exceeded.
type MaxStepsError struct {
	// Max is the configured step limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination.
	State State
}

// Error implements the error interface.
func (e *MaxStepsError) Error() string {
	return fmt.Sprintf("exceeded maximum steps (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxSteps for errors.Is support.
func (e *MaxStepsError) Unwrap() error {
	return ErrMaxSteps
}
