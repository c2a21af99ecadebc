// Package llm defines the text generation capability used by workflow
// nodes, the message types exchanged with it, and in-process fakes.
//
// The engine never calls a model itself. Callers construct a Client once
// and capture it in node closures:
//
//	func generate(client llm.Client) stategraph.NodeFunc {
//	    return func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
//	        resp, err := client.Complete(ctx, llm.CompletionRequest{
//	            Messages: stategraph.Value[[]llm.Message](s, "messages"),
//	        })
//	        if err != nil {
//	            return nil, err
//	        }
//	        return stategraph.Update{"messages": resp.Message()}, nil
//	    }
//	}
package llm

import "context"

// Client generates a completion for a conversation.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}
