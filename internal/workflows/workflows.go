// Package workflows builds the example agent workflows on top of the
// stategraph engine. Every external capability (model, tools) is passed in
// by the caller, so each workflow runs unchanged against real clients or
// the in-process fakes used by the tests and the CLI.
package workflows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/randalmurphal/stategraph/pkg/stategraph/retry"
)

// MessagesField is the append-only conversation field shared by the
// message based workflows.
const MessagesField = "messages"

func messagesField() stategraph.Field {
	return stategraph.NewField[[]llm.Message](MessagesField, stategraph.Append)
}

var errEmptyResponse = errors.New("model returned no response")

// Option configures a workflow builder.
type Option func(*options)

type options struct {
	retry retry.Config
	model string
}

func newOptions(opts []Option) options {
	o := options{retry: retry.NoRetry}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRetry retries transient model failures inside each node.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.retry = cfg
	}
}

// WithModel sets the model name placed on every completion request.
func WithModel(name string) Option {
	return func(o *options) {
		o.model = name
	}
}

// complete calls the model with the workflow's retry policy, logging
// retries through the node's logger.
func (o options) complete(ctx stategraph.Context, client llm.Client, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = o.model
	}
	cfg := o.retry
	if cfg.Logger == nil {
		cfg.Logger = ctx.Logger()
	}

	res := retry.Do(ctx, cfg, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return client.Complete(ctx, req)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Value == nil {
		return nil, errEmptyResponse
	}
	ctx.Logger().Debug("model call completed",
		slog.Int("attempts", res.Attempts),
		slog.Int("total_tokens", res.Value.Usage.TotalTokens),
	)
	return res.Value, nil
}
