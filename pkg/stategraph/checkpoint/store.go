// Package checkpoint provides durable per-thread snapshots of graph runs.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store persists checkpoints keyed by thread identifier.
// Implementations must be safe for concurrent use and must serialize
// writes per thread.
type Store interface {
	// Put appends a checkpoint to the thread's history.
	// The checkpoint's Sequence must be greater than the latest stored
	// sequence for the thread, otherwise ErrStaleCheckpoint is returned.
	Put(ctx context.Context, cp *Checkpoint) error

	// Get returns the latest checkpoint for a thread.
	// Returns ErrNotFound if the thread has no checkpoints.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)

	// List returns metadata for every checkpoint of a thread, ordered by sequence.
	// Returns empty slice (not error) if the thread has no checkpoints.
	List(ctx context.Context, threadID string) ([]Info, error)

	// Delete removes all checkpoints for a thread.
	// Returns nil if the thread has no checkpoints.
	Delete(ctx context.Context, threadID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	ThreadID  string
	NodeID    string
	NextNode  string
	Sequence  int
	Timestamp time.Time
	Size      int64
	Pending   bool
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a thread has no checkpoint.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrStaleCheckpoint indicates a write that does not advance the thread's sequence.
	ErrStaleCheckpoint = errors.New("stale checkpoint sequence")

	// ErrInvalidCheckpoint indicates a checkpoint missing its thread ID.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

func validate(cp *Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("%w: nil checkpoint", ErrInvalidCheckpoint)
	}
	if cp.ThreadID == "" {
		return fmt.Errorf("%w: thread ID is required", ErrInvalidCheckpoint)
	}
	return nil
}

func staleError(threadID string, got, latest int) error {
	return fmt.Errorf("%w: thread %s sequence %d <= %d", ErrStaleCheckpoint, threadID, got, latest)
}

func infoFor(cp *Checkpoint, size int) Info {
	return Info{
		ThreadID:  cp.ThreadID,
		NodeID:    cp.NodeID,
		NextNode:  cp.NextNode,
		Sequence:  cp.Sequence,
		Timestamp: cp.Timestamp,
		Size:      int64(size),
		Pending:   cp.Pending != nil,
	}
}
