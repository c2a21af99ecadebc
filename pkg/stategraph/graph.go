package stategraph

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Registration mistakes such as duplicate or malformed node IDs are
// recorded and reported together by Compile.
//
// Example:
//
//	schema := stategraph.NewSchema(
//	    stategraph.NewField[int]("count", stategraph.Overwrite),
//	)
//	graph := stategraph.NewGraph(schema).
//	    AddNode("increment", increment).
//	    AddConditionalEdges("increment", shouldContinue, map[string]string{
//	        "continue": "increment",
//	        "stop":     stategraph.END,
//	    }).
//	    SetEntry("increment")
//
//	compiled, err := graph.Compile()
type Graph struct {
	mu               sync.RWMutex
	schema           *Schema
	nodes            map[string]node
	order            []string
	edges            map[string][]string
	conditionalEdges map[string][]conditionalEdge
	entryPoint       string
	buildErrs        []error
}

// NewGraph creates a new graph builder over the given schema.
//
// Panics if schema is nil.
func NewGraph(schema *Schema) *Graph {
	if schema == nil {
		panic("stategraph: schema cannot be nil")
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]node),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string][]conditionalEdge),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if fn is nil. An empty, reserved or whitespace-containing id,
// or an id that is already registered, makes Compile fail.
func (g *Graph) AddNode(id string, fn NodeFunc) *Graph {
	if fn == nil {
		panic("stategraph: node function cannot be nil")
	}
	g.register(id, node{fn: fn})
	return g
}

// AddCommandNode adds a node that returns a Command and may route itself
// to any of destinations (node IDs or END).
// Returns the graph for method chaining.
//
// Panics if fn is nil.
func (g *Graph) AddCommandNode(id string, fn CommandFunc, destinations ...string) *Graph {
	if fn == nil {
		panic("stategraph: command function cannot be nil")
	}
	g.register(id, node{cmd: fn, destinations: append([]string(nil), destinations...)})
	return g
}

func (g *Graph) register(id string, n node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := validateNodeID(id); err != nil {
		g.buildErrs = append(g.buildErrs, err)
		return
	}
	if _, exists := g.nodes[id]; exists {
		g.buildErrs = append(g.buildErrs, fmt.Errorf("%w: %s", ErrDuplicateNode, id))
		return
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
}

func validateNodeID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: node ID cannot be empty", ErrInvalidNodeID)
	}
	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidNodeID, id)
	}
	if strings.ContainsAny(id, " \t\n\r") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidNodeID, id)
	}
	return nil
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or stategraph.END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph) AddEdge(from, to string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges adds a conditional edge where router picks the next
// node at runtime from the updated state.
// Returns the graph for method chaining.
//
// routes maps each label the router may return to a node ID or END. A nil
// routes map means the router returns node IDs directly; every node is then
// treated as a possible destination.
//
// Panics if router is nil.
func (g *Graph) AddConditionalEdges(from string, router RouterFunc, routes map[string]string) *Graph {
	if router == nil {
		panic("stategraph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conditionalEdges[from] = append(g.conditionalEdges[from], conditionalEdge{
		router: router,
		routes: maps.Clone(routes),
	})
	return g
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
func (g *Graph) SetEntry(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// SetFinish adds an edge from id to END.
// Returns the graph for method chaining.
func (g *Graph) SetFinish(id string) *Graph {
	return g.AddEdge(id, END)
}
