package tools

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

// Node returns a node that executes the tool calls on the last message of
// the []llm.Message field and appends one tool message per call. The
// field must use the Append policy. A last message without tool calls
// produces no update.
//
// Example:
//
//	graph.AddNode("tool_node", tools.Node(registry, "messages"))
func Node(r *Registry, field string) stategraph.NodeFunc {
	return func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		last, ok := llm.Last(stategraph.Value[[]llm.Message](s, field))
		if !ok || !last.HasToolCalls() {
			return nil, nil
		}

		results := make([]llm.Message, 0, len(last.ToolCalls))
		for _, call := range last.ToolCalls {
			msg, err := r.Execute(ctx, ctx.Logger(), call)
			if err != nil {
				return nil, err
			}
			results = append(results, msg)
		}
		return stategraph.Update{field: results}, nil
	}
}

// Route returns a router that goes to toolNode when the last message of
// field requests tools, and to next otherwise.
//
// Example:
//
//	graph.AddConditionalEdges("chatbot", tools.Route("messages", "tool_node", stategraph.END), nil)
func Route(field, toolNode, next string) stategraph.RouterFunc {
	return func(_ stategraph.Context, s stategraph.State) string {
		last, ok := llm.Last(stategraph.Value[[]llm.Message](s, field))
		if ok && last.HasToolCalls() {
			return toolNode
		}
		return next
	}
}
