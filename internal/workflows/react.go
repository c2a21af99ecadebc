package workflows

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
	"github.com/randalmurphal/stategraph/pkg/stategraph/tools"
)

// ReAct field names.
const (
	InputField   = "input"
	OutcomeField = "agent_outcome"
	StepsField   = "intermediate_steps"
)

// ReAct node names.
const (
	ReasonNode = "reason_node"
	ActNode    = "act_node"
)

var errNoAction = errors.New("act node reached without a pending action")

var reactPrompt = template.MustParse(`Answer the following questions as best you can. You have access to the following tools:

${tools}

Call a tool when you need more information. When you know the final answer, reply with it directly and call no tools.`)

// Action is a tool the agent decided to call.
type Action struct {
	Tool   string `json:"tool"`
	Input  string `json:"tool_input"`
	CallID string `json:"call_id"`
}

// Outcome is the result of one reasoning step: either an action to take
// or the final output.
type Outcome struct {
	Action   *Action `json:"action,omitempty"`
	Output   string  `json:"output,omitempty"`
	Finished bool    `json:"finished"`
}

// Step is an executed action and what the tool returned.
type Step struct {
	Action      Action `json:"action"`
	Observation string `json:"observation"`
}

// ReActSchema declares input (overwrite), agent_outcome (overwrite) and
// intermediate_steps (append).
func ReActSchema() *stategraph.Schema {
	return stategraph.NewSchema(
		stategraph.NewField[string](InputField, stategraph.Overwrite),
		stategraph.NewField[Outcome](OutcomeField, stategraph.Overwrite),
		stategraph.NewField[[]Step](StepsField, stategraph.Append),
	)
}

// ReAct builds the reason/act agent. reason_node asks the model for the
// next move given the input and the steps so far; act_node runs the chosen
// tool and records the observation. The run ends when the model answers
// without calling a tool.
func ReAct(client llm.Client, registry *tools.Registry, opts ...Option) (*stategraph.CompiledGraph, error) {
	o := newOptions(opts)

	var listing strings.Builder
	for _, spec := range registry.Specs() {
		listing.WriteString(spec.Name + ": " + spec.Description + "\n")
	}
	system := reactPrompt.MustRender(map[string]any{"tools": strings.TrimSpace(listing.String())})

	reason := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		msgs := []llm.Message{llm.UserMessage(stategraph.Value[string](s, InputField))}
		for _, step := range stategraph.Value[[]Step](s, StepsField) {
			call := llm.ToolCall{ID: step.Action.CallID, Name: step.Action.Tool, Arguments: json.RawMessage(step.Action.Input)}
			msgs = append(msgs, llm.AssistantMessage("", call), llm.ToolMessage(call, step.Observation))
		}

		resp, err := o.complete(ctx, client, llm.CompletionRequest{
			SystemPrompt: system,
			Messages:     msgs,
			Tools:        registry.Specs(),
		})
		if err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			return stategraph.Update{OutcomeField: Outcome{Output: resp.Content, Finished: true}}, nil
		}
		call := resp.ToolCalls[0]
		return stategraph.Update{OutcomeField: Outcome{Action: &Action{
			Tool:   call.Name,
			Input:  string(call.Arguments),
			CallID: call.ID,
		}}}, nil
	}

	act := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		action := stategraph.Value[Outcome](s, OutcomeField).Action
		if action == nil {
			return nil, errNoAction
		}
		msg, err := registry.Execute(ctx, ctx.Logger(), llm.ToolCall{
			ID:        action.CallID,
			Name:      action.Tool,
			Arguments: json.RawMessage(action.Input),
		})
		if err != nil {
			return nil, err
		}
		return stategraph.Update{StepsField: Step{Action: *action, Observation: msg.Content}}, nil
	}

	shouldContinue := func(_ stategraph.Context, s stategraph.State) string {
		if stategraph.Value[Outcome](s, OutcomeField).Finished {
			return stategraph.END
		}
		return ActNode
	}

	return stategraph.NewGraph(ReActSchema()).
		AddNode(ReasonNode, reason).
		AddNode(ActNode, act).
		AddConditionalEdges(ReasonNode, shouldContinue, map[string]string{
			ActNode:        ActNode,
			stategraph.END: stategraph.END,
		}).
		AddEdge(ActNode, ReasonNode).
		SetEntry(ReasonNode).
		Compile()
}
