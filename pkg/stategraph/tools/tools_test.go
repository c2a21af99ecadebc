package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upper() *tools.Func {
	return tools.New("upper", "Upper-cases the input.", func(_ context.Context, input string) (string, error) {
		out := []byte(input)
		for i, c := range out {
			if c >= 'a' && c <= 'z' {
				out[i] = c - 32
			}
		}
		return string(out), nil
	})
}

func failing(err error) *tools.Func {
	return tools.New("broken", "Always fails.", func(context.Context, string) (string, error) {
		return "", err
	})
}

func messages(msgs ...llm.Message) stategraph.State {
	return stategraph.State{"messages": msgs}
}

func TestRegistry(t *testing.T) {
	r, err := tools.NewRegistry([]tools.Tool{upper(), tools.Clock(nil)})
	require.NoError(t, err)

	assert.Equal(t, []string{"get_system_time", "upper"}, r.Names())

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "get_system_time", specs[0].Name)
	assert.JSONEq(t, `{"type":"object","properties":{"format":{"type":"string"}}}`, string(specs[0].Parameters))
	assert.Equal(t, "Upper-cases the input.", specs[1].Description)

	tool, ok := r.Get("upper")
	require.True(t, ok)
	out, err := tool.Invoke(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "GO", out)
}

func TestRegistry_Errors(t *testing.T) {
	_, err := tools.NewRegistry([]tools.Tool{upper(), upper()})
	assert.ErrorIs(t, err, registry.ErrDuplicate)

	r := tools.MustRegistry()
	assert.Error(t, r.Register(tools.New("", "", nil)))

	assert.Panics(t, func() { tools.MustRegistry(upper(), upper()) })
}

func TestNode_ExecutesToolCalls(t *testing.T) {
	r := tools.MustRegistry(upper())
	node := tools.Node(r, "messages")

	calls := []llm.ToolCall{
		{ID: "c1", Name: "upper", Arguments: json.RawMessage(`abc`)},
		{ID: "c2", Name: "missing"},
	}
	update, err := node(stategraph.NewContext(context.Background()), messages(
		llm.UserMessage("shout"),
		llm.AssistantMessage("", calls...),
	))
	require.NoError(t, err)

	got := update["messages"].([]llm.Message)
	require.Len(t, got, 2)
	assert.Equal(t, llm.Message{Role: llm.RoleTool, Content: "ABC", Name: "upper", ToolCallID: "c1"}, got[0])
	assert.Equal(t, "Tool 'missing' not found", got[1].Content)
	assert.Equal(t, "c2", got[1].ToolCallID)
}

func TestNode_NoToolCalls(t *testing.T) {
	node := tools.Node(tools.MustRegistry(upper()), "messages")
	ctx := stategraph.NewContext(context.Background())

	update, err := node(ctx, messages(llm.AssistantMessage("final answer")))
	require.NoError(t, err)
	assert.Nil(t, update)

	update, err = node(ctx, messages())
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestNode_ToolErrorBecomesMessage(t *testing.T) {
	node := tools.Node(tools.MustRegistry(failing(errors.New("boom"))), "messages")

	update, err := node(stategraph.NewContext(context.Background()), messages(
		llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "broken"}),
	))
	require.NoError(t, err)
	got := update["messages"].([]llm.Message)
	assert.Contains(t, got[0].Content, "error: ")
	assert.Contains(t, got[0].Content, "boom")
}

func TestNode_Cancelled(t *testing.T) {
	node := tools.Node(tools.MustRegistry(failing(context.Canceled)), "messages")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := node(stategraph.NewContext(ctx), messages(
		llm.AssistantMessage("", llm.ToolCall{ID: "c1", Name: "broken"}),
	))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	flaky := tools.New("search", "Flaky search.", func(context.Context, string) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &retry.ProviderError{Provider: "search", StatusCode: 503, Message: "busy"}
		}
		return "results", nil
	})
	cfg := retry.NewConfig(retry.WithMaxAttempts(3), retry.WithBackoff(time.Millisecond, time.Millisecond), retry.WithJitter(0))
	r, err := tools.NewRegistry([]tools.Tool{flaky}, tools.WithRetry(cfg))
	require.NoError(t, err)

	msg, err := r.Execute(context.Background(), nil, llm.ToolCall{ID: "c1", Name: "search"})
	require.NoError(t, err)
	assert.Equal(t, "results", msg.Content)
	assert.Equal(t, 3, attempts)
}

func TestRoute(t *testing.T) {
	route := tools.Route("messages", "tool_node", stategraph.END)
	ctx := stategraph.NewContext(context.Background())

	assert.Equal(t, "tool_node", route(ctx, messages(llm.AssistantMessage("", llm.ToolCall{Name: "x"}))))
	assert.Equal(t, stategraph.END, route(ctx, messages(llm.AssistantMessage("done"))))
	assert.Equal(t, stategraph.END, route(ctx, messages()))
}

func TestNode_InGraph(t *testing.T) {
	schema := stategraph.NewSchema(stategraph.NewField[[]llm.Message]("messages", stategraph.Append))
	client := llm.NewScripted(
		llm.Calls("", llm.ToolCall{ID: "c1", Name: "upper", Arguments: json.RawMessage(`hi`)}),
		llm.Text("The tool said HI"),
	)
	r := tools.MustRegistry(upper())

	compiled, err := stategraph.NewGraph(schema).
		AddNode("chatbot", func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
			resp, err := client.Complete(ctx, llm.CompletionRequest{
				Messages: stategraph.Value[[]llm.Message](s, "messages"),
				Tools:    r.Specs(),
			})
			if err != nil {
				return nil, err
			}
			return stategraph.Update{"messages": resp.Message()}, nil
		}).
		AddNode("tool_node", tools.Node(r, "messages")).
		AddConditionalEdges("chatbot", tools.Route("messages", "tool_node", stategraph.END), map[string]string{
			"tool_node":     "tool_node",
			stategraph.END: stategraph.END,
		}).
		AddEdge("tool_node", "chatbot").
		SetEntry("chatbot").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(stategraph.NewContext(context.Background()), stategraph.Update{
		"messages": llm.UserMessage("say hi loudly"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"chatbot", "tool_node", "chatbot"}, result.Path)
	msgs := stategraph.Value[[]llm.Message](result.State, "messages")
	require.Len(t, msgs, 4)
	assert.Equal(t, "HI", msgs[2].Content)
	assert.Equal(t, "The tool said HI", msgs[3].Content)
	assert.Len(t, client.LastRequest().Tools, 1)
}

func TestClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	clock := tools.Clock(func() time.Time { return fixed })
	ctx := context.Background()

	out, err := clock.Invoke(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 09:30:00", out)

	out, err = clock.Invoke(ctx, `{"format":"2006-01-02"}`)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", out)

	out, err = clock.Invoke(ctx, "15:04")
	require.NoError(t, err)
	assert.Equal(t, "09:30", out)
}

func TestStatic(t *testing.T) {
	search := tools.Static("search", "Canned search.", map[string]string{"go": "a language"}, "no results")
	out, err := search.Invoke(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "a language", out)

	out, err = search.Invoke(context.Background(), "rust")
	require.NoError(t, err)
	assert.Equal(t, "no results", out)
	assert.Nil(t, tools.Spec(search).Parameters)
}
