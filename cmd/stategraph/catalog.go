package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/stategraph/internal/workflows"
	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/tools"
)

type builder func() (*stategraph.CompiledGraph, error)

// catalog lists the workflows known to the CLI, wired to offline
// capabilities.
func catalog() *registry.Registry[string, builder] {
	search := tools.Static("search", "Web search.", nil, "no results (offline)")
	toolset := tools.MustRegistry(tools.Clock(nil), search)

	r := registry.New[string, builder]()
	r.MustRegister("counter", func() (*stategraph.CompiledGraph, error) {
		return workflows.Counter(5)
	})
	r.MustRegister("reflection", func() (*stategraph.CompiledGraph, error) {
		return workflows.Reflection(llm.Echo{}, workflows.DefaultReflectionMessages)
	})
	r.MustRegister("reflexion", func() (*stategraph.CompiledGraph, error) {
		return workflows.Reflexion(llm.Echo{}, search, workflows.DefaultReflexionIterations)
	})
	r.MustRegister("react", func() (*stategraph.CompiledGraph, error) {
		return workflows.ReAct(llm.Echo{}, toolset)
	})
	r.MustRegister("chat", func() (*stategraph.CompiledGraph, error) {
		return workflows.Chatbot(echoClient, nil)
	})
	r.MustRegister("review", func() (*stategraph.CompiledGraph, error) {
		return workflows.Review(draftWriter)
	})
	return r
}

func buildWorkflow(name string) (*stategraph.CompiledGraph, error) {
	b, err := catalog().Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("unknown workflow %q (available: %s)", name, strings.Join(catalog().Keys(), ", "))
	}
	return b()
}

var echoClient = llm.Echo{Prefix: "You said: "}

// draftWriter is an offline stand-in for a writing model: it drafts a post
// from the topic and the latest feedback in the prompt.
var draftWriter = llm.ClientFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var topic, feedback string
	for _, m := range req.Messages {
		for line := range strings.Lines(m.Content) {
			if v, ok := strings.CutPrefix(line, "LinkedIn Topic: "); ok {
				topic = strings.TrimSpace(v)
			}
			if v, ok := strings.CutPrefix(line, "Human Feedback: "); ok {
				feedback = strings.TrimSpace(v)
			}
		}
	}
	post := fmt.Sprintf("A post about %s.", topic)
	if feedback != "" && feedback != "No feedback yet" {
		post += fmt.Sprintf(" Revised for: %s.", feedback)
	}
	return llm.Text(post), nil
})
