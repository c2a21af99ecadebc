package checkpoint

import (
	"encoding/json"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of a thread: the merged state and
// the node that runs next. A checkpoint with a non-nil Pending is parked on
// an interrupt and NextNode names the interrupted node.
type Checkpoint struct {
	// Metadata
	Version   int       `json:"version"`
	ThreadID  string    `json:"thread_id"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	// Execution state
	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`

	// Interrupt bookkeeping
	Pending      *Pending          `json:"pending,omitempty"`
	ResumeValues []json.RawMessage `json:"resume_values,omitempty"`

	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// Pending records an interrupt raised by a node that has not been resumed.
type Pending struct {
	ID      string          `json:"id"`
	NodeID  string          `json:"node_id"`
	Index   int             `json:"index"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// New creates a new checkpoint with the given parameters.
// State must already be JSON-serialized.
func New(threadID, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		ThreadID:  threadID,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
	}
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// WithPending marks the checkpoint as parked on an interrupt.
func (c *Checkpoint) WithPending(p *Pending) *Checkpoint {
	c.Pending = p
	return c
}

// WithResumeValues records the resume values already supplied to the
// pending node, in the order its interrupt points consumed them.
func (c *Checkpoint) WithResumeValues(values []json.RawMessage) *Checkpoint {
	c.ResumeValues = values
	return c
}

// Finished reports whether the thread ran to the terminal marker.
func (c *Checkpoint) Finished(end string) bool {
	return c.Pending == nil && c.NextNode == end
}
