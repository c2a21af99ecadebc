package stategraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// NodeFunc is the signature for ordinary node functions.
// Nodes receive the execution context and a private copy of the current
// state, and return a partial update that the executor merges according to
// each field's policy. A nil update changes nothing.
//
// Example:
//
//	func increment(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
//	    n := stategraph.Value[int](s, "count") + 1
//	    return stategraph.Update{"count": n, "history": n}, nil
//	}
type NodeFunc func(ctx Context, state State) (Update, error)

// Command is a node result carrying both an update and a routing decision.
type Command struct {
	// Update is merged into the state before routing.
	Update Update
	// Goto names the next node, or END. It must be one of the destinations
	// declared with AddCommandNode. Empty means follow the node's edges.
	Goto string
}

// CommandFunc is the signature for nodes that choose their own successor.
//
// Example:
//
//	func human(ctx stategraph.Context, s stategraph.State) (stategraph.Command, error) {
//	    answer, err := stategraph.Interrupt(ctx, map[string]string{"ask": "feedback"})
//	    if err != nil {
//	        return stategraph.Command{}, err
//	    }
//	    if answer == "done" {
//	        return stategraph.Command{Goto: "end_node"}, nil
//	    }
//	    return stategraph.Command{Update: stategraph.Update{"messages": answer}, Goto: "model"}, nil
//	}
type CommandFunc func(ctx Context, state State) (Command, error)

// RouterFunc picks the next route from the state produced by the node it
// follows. The returned label is looked up in the routes passed to
// AddConditionalEdges; when no routes were given it must be a node ID or END.
//
// Example:
//
//	func shouldContinue(ctx stategraph.Context, s stategraph.State) string {
//	    if stategraph.Value[int](s, "count") < 5 {
//	        return "continue"
//	    }
//	    return "stop"
//	}
type RouterFunc func(ctx Context, state State) string

// node is a registered node. Exactly one of fn and cmd is set.
type node struct {
	fn           NodeFunc
	cmd          CommandFunc
	destinations []string
}

// invoke runs the node and normalizes its result to a Command.
func (n node) invoke(ctx Context, state State) (Command, error) {
	if n.cmd != nil {
		return n.cmd(ctx, state)
	}
	update, err := n.fn(ctx, state)
	return Command{Update: update}, err
}

// conditionalEdge is a router with its optional label mapping.
type conditionalEdge struct {
	router RouterFunc
	routes map[string]string
}
