package workflows

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

const (
	generationPrompt = "You are a twitter techie influencer assistant tasked with writing excellent twitter posts." +
		" Generate the best twitter post possible for the user's request." +
		" If the user provides critique, respond with a revised version of your previous attempts."

	reflectionPrompt = "You are a viral twitter influencer grading a tweet. Generate critique and recommendations for the user's tweet." +
		" Always provide detailed recommendations, including requests for length, virality, style, etc."
)

// DefaultReflectionMessages is the message count after which Reflection stops.
const DefaultReflectionMessages = 6

// Reflection builds the generate/reflect loop. generate writes a post,
// reflect critiques it as a user turn, and the loop ends once the
// conversation holds more than maxMessages messages.
func Reflection(client llm.Client, maxMessages int, opts ...Option) (*stategraph.CompiledGraph, error) {
	o := newOptions(opts)

	generate := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		resp, err := o.complete(ctx, client, llm.CompletionRequest{
			SystemPrompt: generationPrompt,
			Messages:     stategraph.Value[[]llm.Message](s, MessagesField),
		})
		if err != nil {
			return nil, err
		}
		return stategraph.Update{MessagesField: resp.Message()}, nil
	}

	reflect := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		resp, err := o.complete(ctx, client, llm.CompletionRequest{
			SystemPrompt: reflectionPrompt,
			Messages:     stategraph.Value[[]llm.Message](s, MessagesField),
		})
		if err != nil {
			return nil, err
		}
		return stategraph.Update{MessagesField: llm.UserMessage(resp.Content)}, nil
	}

	shouldContinue := func(_ stategraph.Context, s stategraph.State) string {
		if len(stategraph.Value[[]llm.Message](s, MessagesField)) > maxMessages {
			return stategraph.END
		}
		return "reflect"
	}

	return stategraph.NewGraph(stategraph.NewSchema(messagesField())).
		AddNode("generate", generate).
		AddNode("reflect", reflect).
		AddConditionalEdges("generate", shouldContinue, map[string]string{
			"reflect":      "reflect",
			stategraph.END: stategraph.END,
		}).
		AddEdge("reflect", "generate").
		SetEntry("generate").
		Compile()
}
