package stategraph

import (
	"context"
	"errors"
)

// Test schemas and node helpers used across tests.

// counterSchema has a single overwrite counter.
func counterSchema() *Schema {
	return NewSchema(NewField[int]("count", Overwrite))
}

// trackSchema records node names in an append field.
func trackSchema() *Schema {
	return NewSchema(
		NewField[[]string]("progress", Append),
		NewField[int]("count", Overwrite),
		NewField[bool]("go_left", Overwrite),
		NewField[bool]("done", Overwrite),
		NewField[string]("output", Overwrite),
	)
}

// increment adds one to "count".
func increment(ctx Context, s State) (Update, error) {
	return Update{"count": Value[int](s, "count") + 1}, nil
}

// passthrough returns an empty update.
func passthrough(ctx Context, s State) (Update, error) {
	return nil, nil
}

// makeTrackingNode creates a node that records its execution.
func makeTrackingNode(name string, tracker *[]string) NodeFunc {
	return func(ctx Context, s State) (Update, error) {
		*tracker = append(*tracker, name)
		return Update{"progress": name}, nil
	}
}

// makeFailingNode creates a node that returns the given error.
func makeFailingNode(err error) NodeFunc {
	return func(ctx Context, s State) (Update, error) {
		return nil, err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc {
	return func(ctx Context, s State) (Update, error) {
		panic(value)
	}
}

var errTest = errors.New("test error")

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}

// mustCompile compiles g or panics.
func mustCompile(g *Graph) *CompiledGraph {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}
