package workflows

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/tools"
)

// Chatbot builds a conversational graph over the messages field. With a
// nil registry it is a single chatbot node; otherwise tool calls are routed
// to tool_node and back. Run it with checkpointing and a thread ID to keep
// memory across turns.
func Chatbot(client llm.Client, registry *tools.Registry, opts ...Option) (*stategraph.CompiledGraph, error) {
	o := newOptions(opts)

	chatbot := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		req := llm.CompletionRequest{Messages: stategraph.Value[[]llm.Message](s, MessagesField)}
		if registry != nil {
			req.Tools = registry.Specs()
		}
		resp, err := o.complete(ctx, client, req)
		if err != nil {
			return nil, err
		}
		return stategraph.Update{MessagesField: resp.Message()}, nil
	}

	graph := stategraph.NewGraph(stategraph.NewSchema(messagesField())).
		AddNode("chatbot", chatbot).
		SetEntry("chatbot")

	if registry == nil {
		return graph.AddEdge("chatbot", stategraph.END).Compile()
	}
	return graph.
		AddNode("tool_node", tools.Node(registry, MessagesField)).
		AddConditionalEdges("chatbot", tools.Route(MessagesField, "tool_node", stategraph.END), map[string]string{
			"tool_node":    "tool_node",
			stategraph.END: stategraph.END,
		}).
		AddEdge("tool_node", "chatbot").
		Compile()
}

// LastReply returns the content of the final message in state.
func LastReply(s stategraph.State) string {
	last, _ := llm.Last(stategraph.Value[[]llm.Message](s, MessagesField))
	return last.Content
}
