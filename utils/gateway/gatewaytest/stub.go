// Package gatewaytest provides a scripted, call-counting Gateway for tests.
package gatewaytest

import (
	"context"
	"sync"
)

// Call records one Complete invocation
type Call struct {
	Prompt    string
	Model     string
	MaxTokens int
}

// Stub answers Complete calls from a script. Responses are returned in order
// and the last one repeats; Handler, when set, takes precedence.
type Stub struct {
	mu        sync.Mutex
	responses []string
	err       error
	Handler   func(prompt string) (string, error)
	calls     []Call
}

// New returns a stub that answers with the given responses in order
func New(responses ...string) *Stub {
	return &Stub{responses: responses}
}

// Failing returns a stub whose every call fails with err
func Failing(err error) *Stub {
	return &Stub{err: err}
}

// Func returns a stub that delegates to fn
func Func(fn func(prompt string) (string, error)) *Stub {
	return &Stub{Handler: fn}
}

// Complete implements gateway.Gateway
func (s *Stub) Complete(ctx context.Context, prompt, model string, maxTokens int) (string, error) {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, Call{Prompt: prompt, Model: model, MaxTokens: maxTokens})
	handler := s.Handler
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if handler != nil {
		return handler(prompt)
	}
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", nil
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

// CallCount returns how many times Complete was invoked
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Calls returns a copy of the recorded calls
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}
