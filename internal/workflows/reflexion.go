package workflows

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
	"github.com/randalmurphal/stategraph/pkg/stategraph/tools"
)

// Tool names the reflexion actor answers through.
const (
	AnswerQuestionTool = "AnswerQuestion"
	ReviseAnswerTool   = "ReviseAnswer"
)

// DefaultReflexionIterations bounds the number of search rounds.
const DefaultReflexionIterations = 2

var actorPrompt = template.MustParse(`You are expert AI researcher.
Current time: ${time}

1. ${first_instruction}
2. Reflect and critique your answer. Be severe to maximize improvement.
3. After the reflection, **list 1-3 search queries separately** for researching improvements. Do not include them inside the reflection.

Answer the user's question above using the required format.`)

const reviseInstructions = `Revise your previous answer using the new information.
    - You should use the previous critique to add important information to your answer.
        - You MUST include numerical citations in your revised answer to ensure it can be verified.
        - Add a "References" section to the bottom of your answer (which does not count towards the word limit). In form of:
            - [1] https://example.com
            - [2] https://example.com
    - You should use the previous critique to remove superfluous information from your answer and make SURE it is not more than 250 words.`

// Critique is the actor's reflection on its own answer.
type Critique struct {
	Missing     string `json:"missing"`
	Superfluous string `json:"superfluous"`
}

// Answer is the structured output of the AnswerQuestion and ReviseAnswer
// tools.
type Answer struct {
	Answer        string   `json:"answer"`
	SearchQueries []string `json:"search_queries"`
	Reflection    Critique `json:"reflection"`
	References    []string `json:"references,omitempty"`
}

var (
	answerSpec = llm.ToolSpec{
		Name:        AnswerQuestionTool,
		Description: "Answer the question.",
		Parameters: json.RawMessage(`{"type":"object","required":["answer","search_queries","reflection"],` +
			`"properties":{"answer":{"type":"string"},"search_queries":{"type":"array","items":{"type":"string"}},` +
			`"reflection":{"type":"object","properties":{"missing":{"type":"string"},"superfluous":{"type":"string"}}}}}`),
	}
	reviseSpec = llm.ToolSpec{
		Name:        ReviseAnswerTool,
		Description: "Revise your original answer to your question.",
		Parameters: json.RawMessage(`{"type":"object","required":["answer","search_queries","reflection","references"],` +
			`"properties":{"answer":{"type":"string"},"search_queries":{"type":"array","items":{"type":"string"}},` +
			`"reflection":{"type":"object","properties":{"missing":{"type":"string"},"superfluous":{"type":"string"}}},` +
			`"references":{"type":"array","items":{"type":"string"}}}}`),
	}
)

// Reflexion builds the draft -> execute_tools -> revisor loop. The actor
// answers through a structured tool call carrying search queries; each
// query is run against search and the results are fed back for revision.
// The loop ends once more than maxIterations tool messages exist or the
// revisor stops asking for searches.
func Reflexion(client llm.Client, search tools.Tool, maxIterations int, opts ...Option) (*stategraph.CompiledGraph, error) {
	o := newOptions(opts)
	now := func() string { return time.Now().Format(time.RFC3339) }

	actor := func(instruction string, spec llm.ToolSpec) stategraph.NodeFunc {
		prompt := actorPrompt.Partial(map[string]any{"time": now, "first_instruction": instruction})
		return func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
			system, err := prompt.Render(nil)
			if err != nil {
				return nil, err
			}
			resp, err := o.complete(ctx, client, llm.CompletionRequest{
				SystemPrompt: system,
				Messages:     stategraph.Value[[]llm.Message](s, MessagesField),
				Tools:        []llm.ToolSpec{spec},
				ToolChoice:   spec.Name,
			})
			if err != nil {
				return nil, err
			}
			return stategraph.Update{MessagesField: resp.Message()}, nil
		}
	}

	executeTools := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		last, ok := llm.Last(stategraph.Value[[]llm.Message](s, MessagesField))
		if !ok || !last.HasToolCalls() {
			return nil, nil
		}

		var results []llm.Message
		for _, call := range last.ToolCalls {
			if call.Name != AnswerQuestionTool && call.Name != ReviseAnswerTool {
				continue
			}
			var answer Answer
			if err := json.Unmarshal(call.Arguments, &answer); err != nil {
				return nil, fmt.Errorf("decode %s arguments: %w", call.Name, err)
			}

			found := make(map[string]string, len(answer.SearchQueries))
			for _, query := range answer.SearchQueries {
				out, err := search.Invoke(ctx, query)
				if err != nil {
					return nil, fmt.Errorf("search %q: %w", query, err)
				}
				found[query] = out
			}
			content, err := json.Marshal(found)
			if err != nil {
				return nil, err
			}
			results = append(results, llm.ToolMessage(call, string(content)))
		}
		return stategraph.Update{MessagesField: results}, nil
	}

	eventLoop := func(_ stategraph.Context, s stategraph.State) string {
		msgs := stategraph.Value[[]llm.Message](s, MessagesField)
		if llm.CountRole(msgs, llm.RoleTool) > maxIterations {
			return stategraph.END
		}
		if last, ok := llm.Last(msgs); !ok || !last.HasToolCalls() {
			return stategraph.END
		}
		return "execute_tools"
	}

	return stategraph.NewGraph(stategraph.NewSchema(messagesField())).
		AddNode("draft", actor("Provide a detailed ~250 word answer", answerSpec)).
		AddNode("execute_tools", executeTools).
		AddNode("revisor", actor(reviseInstructions, reviseSpec)).
		AddEdge("draft", "execute_tools").
		AddEdge("execute_tools", "revisor").
		AddConditionalEdges("revisor", eventLoop, map[string]string{
			"execute_tools": "execute_tools",
			stategraph.END:  stategraph.END,
		}).
		SetEntry("draft").
		Compile()
}

// FinalAnswer extracts the latest structured answer from a reflexion
// conversation.
func FinalAnswer(messages []llm.Message) (Answer, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		for _, call := range messages[i].ToolCalls {
			if call.Name != AnswerQuestionTool && call.Name != ReviseAnswerTool {
				continue
			}
			var a Answer
			if json.Unmarshal(call.Arguments, &a) == nil {
				return a, true
			}
		}
	}
	return Answer{}, false
}
