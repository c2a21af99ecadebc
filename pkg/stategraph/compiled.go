package stategraph

import (
	"slices"
	"sync"
)

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for Run()
// calls on distinct threads. The graph structure cannot be modified after
// compilation.
//
// Use the introspection methods (NodeIDs, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph struct {
	schema           *Schema
	nodes            map[string]node
	order            []string
	edges            map[string]string
	conditionalEdges map[string]conditionalEdge
	entryPoint       string

	// Pre-computed for efficient lookup
	successors   map[string][]string
	predecessors map[string][]string

	locks *threadLocks
}

// Schema returns the state schema the graph was built with.
func (cg *CompiledGraph) Schema() *Schema {
	return cg.schema
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in registration order.
func (cg *CompiledGraph) NodeIDs() []string {
	return slices.Clone(cg.order)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns every node ID (or END) that may run after the given
// node: its static edge, its route destinations and its command
// destinations. Returns nil for END or unknown nodes.
func (cg *CompiledGraph) Successors(id string) []string {
	if id == END {
		return nil
	}
	return slices.Clone(cg.successors[id])
}

// Predecessors returns the node IDs that may run immediately before the given node.
func (cg *CompiledGraph) Predecessors(id string) []string {
	return slices.Clone(cg.predecessors[id])
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph) IsConditional(id string) bool {
	_, exists := cg.conditionalEdges[id]
	return exists
}

// IsCommand returns true if the node was added with AddCommandNode.
func (cg *CompiledGraph) IsCommand(id string) bool {
	n, exists := cg.nodes[id]
	return exists && n.cmd != nil
}

// threadLocks rejects concurrent runs on one thread within a process.
type threadLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newThreadLocks() *threadLocks {
	return &threadLocks{active: make(map[string]struct{})}
}

// acquire marks threadID as running. It returns false if it already is.
func (l *threadLocks) acquire(threadID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.active[threadID]; busy {
		return false
	}
	l.active[threadID] = struct{}{}
	return true
}

func (l *threadLocks) release(threadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, threadID)
}
