package stategraph

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. Node registrations were valid (ErrInvalidNodeID, ErrDuplicateNode)
//  2. Entry point must be set and reference an existing node
//  3. Edge sources must be existing nodes; edge, route and command
//     destinations must be existing nodes or END
//  4. A node may have at most one static edge, and not both a static
//     and a conditional edge (ErrConflictingEdges)
//  5. Every node must have an outgoing edge (ErrDeadEnd)
//  6. Every node must be reachable from the entry point (ErrUnreachableNode)
//
// A graph with no path from the entry point to END compiles, but a
// warning is logged. Loop termination is up to the nodes and routers.
func (g *Graph) Compile() (*CompiledGraph, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	errs := slices.Clone(g.buildErrs)

	// Entry point
	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	// Edge references
	for _, from := range slices.Sorted(maps.Keys(g.edges)) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.edges[from] {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for _, from := range slices.Sorted(maps.Keys(g.conditionalEdges)) {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, ce := range g.conditionalEdges[from] {
			for _, label := range slices.Sorted(maps.Keys(ce.routes)) {
				if to := ce.routes[label]; !g.isTarget(to) {
					errs = append(errs, fmt.Errorf("%w: route '%s' from '%s' targets '%s'", ErrNodeNotFound, label, from, to))
				}
			}
		}
	}

	for _, id := range g.order {
		for _, to := range g.nodes[id].destinations {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: command destination '%s' from '%s' does not exist", ErrNodeNotFound, to, id))
			}
		}
	}

	// Conflicts and dead ends
	for _, id := range g.order {
		static := len(g.edges[id])
		conditional := len(g.conditionalEdges[id])

		switch {
		case static > 1:
			errs = append(errs, fmt.Errorf("%w: node '%s' has %d static edges", ErrConflictingEdges, id, static))
		case conditional > 1:
			errs = append(errs, fmt.Errorf("%w: node '%s' has %d conditional edges", ErrConflictingEdges, id, conditional))
		case static > 0 && conditional > 0:
			errs = append(errs, fmt.Errorf("%w: node '%s' has both static and conditional edges", ErrConflictingEdges, id))
		}

		if static == 0 && conditional == 0 && len(g.nodes[id].destinations) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDeadEnd, id))
		}
	}

	// Reachability
	if _, exists := g.nodes[g.entryPoint]; exists {
		reachable := g.findReachableNodes()
		for _, id := range g.order {
			if !reachable[id] {
				errs = append(errs, fmt.Errorf("%w: %s", ErrUnreachableNode, id))
			}
		}
		if len(errs) == 0 && !g.hasPathToEnd() {
			slog.Warn("graph has no path to END from entry", "entry", g.entryPoint)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

// isTarget reports whether id is a valid edge destination.
func (g *Graph) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, exists := g.nodes[id]
	return exists
}

// destinations returns every node (or END) that may follow id.
// A conditional edge without routes may lead to any node.
func (g *Graph) destinations(id string) []string {
	var out []string
	out = append(out, g.edges[id]...)
	for _, ce := range g.conditionalEdges[id] {
		if ce.routes == nil {
			out = append(out, g.order...)
			out = append(out, END)
			continue
		}
		for _, label := range slices.Sorted(maps.Keys(ce.routes)) {
			out = append(out, ce.routes[label])
		}
	}
	out = append(out, g.nodes[id].destinations...)

	seen := make(map[string]bool, len(out))
	return slices.DeleteFunc(out, func(s string) bool {
		if seen[s] {
			return true
		}
		seen[s] = true
		return false
	})
}

// findReachableNodes returns the set of nodes reachable from the entry point.
func (g *Graph) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)

	if g.entryPoint == "" {
		return reachable
	}

	// BFS from entry
	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.destinations(current) {
			if _, exists := g.nodes[target]; exists && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

// hasPathToEnd checks if END is reachable from the entry point.
func (g *Graph) hasPathToEnd() bool {
	visited := map[string]bool{g.entryPoint: true}
	queue := []string{g.entryPoint}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.destinations(current) {
			if target == END {
				return true
			}
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
	}
	return false
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph) buildCompiledGraph() *CompiledGraph {
	nodes := maps.Clone(g.nodes)

	edges := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = targets[0]
	}

	conditionalEdges := make(map[string]conditionalEdge, len(g.conditionalEdges))
	for from, ces := range g.conditionalEdges {
		conditionalEdges[from] = ces[0]
	}

	// Pre-compute successors and predecessors
	successors := make(map[string][]string, len(nodes))
	predecessors := make(map[string][]string)
	for _, id := range g.order {
		succ := g.destinations(id)
		successors[id] = succ
		for _, to := range succ {
			if to != END {
				predecessors[to] = append(predecessors[to], id)
			}
		}
	}

	return &CompiledGraph{
		schema:           g.schema,
		nodes:            nodes,
		order:            slices.Clone(g.order),
		edges:            edges,
		conditionalEdges: conditionalEdges,
		entryPoint:       g.entryPoint,
		successors:       successors,
		predecessors:     predecessors,
		locks:            newThreadLocks(),
	}
}
