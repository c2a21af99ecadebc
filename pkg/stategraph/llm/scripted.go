package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrScriptExhausted is returned by Scripted once every response is used.
var ErrScriptExhausted = errors.New("scripted client: no responses left")

// Scripted is a Client that returns canned responses in order and records
// every request. It is safe for concurrent use.
type Scripted struct {
	mu        sync.Mutex
	responses []*CompletionResponse
	next      int
	err       error
	calls     []CompletionRequest
}

// NewScripted returns a client that answers with responses in order.
func NewScripted(responses ...*CompletionResponse) *Scripted {
	return &Scripted{responses: responses}
}

// NewScriptedText returns a client that answers with plain text responses.
func NewScriptedText(contents ...string) *Scripted {
	responses := make([]*CompletionResponse, len(contents))
	for i, c := range contents {
		responses[i] = Text(c)
	}
	return NewScripted(responses...)
}

// Text returns a finished response with content.
func Text(content string) *CompletionResponse {
	return &CompletionResponse{Content: content, FinishReason: "stop", Model: "scripted"}
}

// Calls returns a response that requests tools.
func Calls(content string, calls ...ToolCall) *CompletionResponse {
	return &CompletionResponse{Content: content, ToolCalls: calls, FinishReason: "tool_calls", Model: "scripted"}
}

// WithError makes every call fail with err.
func (s *Scripted) WithError(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// Complete implements Client.
func (s *Scripted) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cloneRequest(req))
	if s.err != nil {
		return nil, s.err
	}
	if s.next >= len(s.responses) {
		return nil, fmt.Errorf("%w (call %d)", ErrScriptExhausted, len(s.calls))
	}
	resp := *s.responses[s.next]
	s.next++
	resp.Usage = estimateUsage(req, resp.Content)
	return &resp, nil
}

// CallCount returns the number of Complete calls.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Requests returns copies of the recorded requests.
func (s *Scripted) Requests() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletionRequest, len(s.calls))
	copy(out, s.calls)
	return out
}

// LastRequest returns the most recent request, or nil.
func (s *Scripted) LastRequest() *CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	req := s.calls[len(s.calls)-1]
	return &req
}

// Remaining returns the number of unused responses.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses) - s.next
}

// Reset clears recorded calls and rewinds the script.
func (s *Scripted) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.next = 0
}

func cloneRequest(req CompletionRequest) CompletionRequest {
	req.Messages = append([]Message(nil), req.Messages...)
	req.Tools = append([]ToolSpec(nil), req.Tools...)
	return req
}

// Echo is a Client that repeats the last user message.
// It is used by the CLI when no model is configured.
type Echo struct {
	// Prefix is prepended to the reply.
	Prefix string
}

// Complete implements Client.
func (e Echo) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	content := e.Prefix + last
	resp := Text(content)
	resp.Model = "echo"
	resp.Usage = estimateUsage(req, content)
	return resp, nil
}

// estimateUsage approximates token counts as whitespace-separated words.
func estimateUsage(req CompletionRequest, output string) TokenUsage {
	in := len(strings.Fields(req.SystemPrompt))
	for _, m := range req.Messages {
		in += len(strings.Fields(m.Content))
	}
	out := len(strings.Fields(output))
	return TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
