package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
)

// Registry holds tools by name.
type Registry struct {
	tools *registry.Registry[string, Tool]
	retry retry.Config
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRetry retries transient tool failures with cfg.
func WithRetry(cfg retry.Config) RegistryOption {
	return func(r *Registry) {
		r.retry = cfg
	}
}

// NewRegistry returns a registry holding tools.
// Returns an error wrapping registry.ErrDuplicate if two tools share a name.
func NewRegistry(tools []Tool, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{tools: registry.New[string, Tool](), retry: retry.NoRetry}
	for _, opt := range opts {
		opt(r)
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error.
func MustRegistry(tools ...Tool) *Registry {
	r, err := NewRegistry(tools)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a tool.
func (r *Registry) Register(t Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("tools: tool name cannot be empty")
	}
	return r.tools.Register(t.Name(), t)
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// Names returns the tool names in sorted order.
func (r *Registry) Names() []string {
	return r.tools.Keys()
}

// Specs describes every tool, sorted by name, for a completion request.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, r.tools.Len())
	for _, t := range r.tools.All() {
		specs = append(specs, Spec(t))
	}
	return specs
}

// Execute runs one tool call and returns the tool message for it.
// An unknown tool or a failed call becomes the message content so the
// model can react; only cancellation of ctx is returned as an error.
func (r *Registry) Execute(ctx context.Context, logger *slog.Logger, call llm.ToolCall) (llm.Message, error) {
	t, ok := r.tools.Get(call.Name)
	if !ok {
		return llm.ToolMessage(call, fmt.Sprintf("Tool '%s' not found", call.Name)), nil
	}

	res := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		return t.Invoke(ctx, string(call.Arguments))
	})
	if res.Err != nil {
		if ctx.Err() != nil {
			return llm.Message{}, ctx.Err()
		}
		if logger != nil {
			logger.Warn("tool call failed",
				slog.String("tool", call.Name),
				slog.String("call_id", call.ID),
				slog.Int("attempts", res.Attempts),
				slog.String("error", res.Err.Error()),
			)
		}
		return llm.ToolMessage(call, "error: "+res.Err.Error()), nil
	}

	if logger != nil {
		logger.Debug("tool call completed",
			slog.String("tool", call.Name),
			slog.String("call_id", call.ID),
			slog.Duration("duration", res.Duration),
		)
	}
	return llm.ToolMessage(call, res.Value), nil
}
