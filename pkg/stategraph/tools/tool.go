// Package tools defines the tool capability used by agent workflows, a
// registry of tools and a graph node that executes the tool calls the
// model asked for.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

// Tool is an external capability the model can call.
// Implementations must be safe for concurrent use.
type Tool interface {
	Name() string
	Description() string
	// Invoke runs the tool. input is the raw argument text from the tool call.
	Invoke(ctx context.Context, input string) (string, error)
}

// Func is a Tool backed by a function.
type Func struct {
	ToolName        string
	ToolDescription string
	// Parameters is an optional JSON Schema for the arguments.
	Parameters json.RawMessage
	Fn         func(ctx context.Context, input string) (string, error)
}

// New returns a Func tool.
func New(name, description string, fn func(ctx context.Context, input string) (string, error)) *Func {
	return &Func{ToolName: name, ToolDescription: description, Fn: fn}
}

// Name implements Tool.
func (f *Func) Name() string { return f.ToolName }

// Description implements Tool.
func (f *Func) Description() string { return f.ToolDescription }

// Invoke implements Tool.
func (f *Func) Invoke(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}

// Spec describes a tool for a completion request.
func Spec(t Tool) llm.ToolSpec {
	spec := llm.ToolSpec{Name: t.Name(), Description: t.Description()}
	if f, ok := t.(*Func); ok {
		spec.Parameters = f.Parameters
	}
	return spec
}

// Clock returns a tool reporting the current time. The input may be a Go
// time layout, or a JSON object {"format": layout}; the default layout is
// "2006-01-02 15:04:05".
func Clock(now func() time.Time) *Func {
	if now == nil {
		now = time.Now
	}
	return &Func{
		ToolName:        "get_system_time",
		ToolDescription: "Returns the current date and time in the specified format.",
		Parameters:      json.RawMessage(`{"type":"object","properties":{"format":{"type":"string"}}}`),
		Fn: func(_ context.Context, input string) (string, error) {
			layout := "2006-01-02 15:04:05"
			var args struct {
				Format string `json:"format"`
			}
			if json.Unmarshal([]byte(input), &args) == nil {
				if args.Format != "" {
					layout = args.Format
				}
			} else if input != "" {
				layout = input
			}
			return now().Format(layout), nil
		},
	}
}

// Static returns a tool answering from a fixed table, for tests and
// offline runs. Unknown inputs get fallback.
func Static(name, description string, answers map[string]string, fallback string) *Func {
	return &Func{
		ToolName:        name,
		ToolDescription: description,
		Fn: func(_ context.Context, input string) (string, error) {
			if out, ok := answers[input]; ok {
				return out, nil
			}
			return fallback, nil
		},
	}
}
