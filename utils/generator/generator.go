// Package generator produces the AI-assisted artifacts of the wizard: the
// summary types, the initial instruction prompt and revised prompts. Every
// generator that has a deterministic fallback reports whether it was used.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/gateway"
)

var (
	// ErrGenerationFailure means the model output could not be turned into
	// the requested artifact. Generators with a fallback report it in
	// Generated.Err instead of returning it.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrNoFeedbackToIterate is returned by Iteration when no feedback entry
	// corrects anything
	ErrNoFeedbackToIterate = errors.New("no feedback to iterate on")
)

// Generated is the outcome of a generator call. When Fallback is set, Value
// came from a deterministic template and Err says why the model output was
// not used.
type Generated[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

func fallback[T any](value T, err error) Generated[T] {
	return Generated[T]{Value: value, Fallback: true, Err: err}
}

// Generator calls the gateway with a fixed model and token budget
type Generator struct {
	gw        gateway.Gateway
	model     string
	maxTokens int
}

// New creates a generator using model for every call
func New(gw gateway.Gateway, model string, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = config.DefaultMaxTokens
	}
	return &Generator{gw: gw, model: model, maxTokens: maxTokens}
}

// Model returns the model used for generation
func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) complete(ctx context.Context, what, prompt string) (string, error) {
	config.VerboseLog("[Generator] Requesting %s from %s", what, g.model)
	text, err := g.gw.Complete(ctx, prompt, g.model, g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", what, err)
	}
	config.DebugLog("[Generator] %s response: %d chars", what, len(text))
	return text, nil
}

// withRetryHint adds the gateway's recovery suggestion to err when it has one
func withRetryHint(op string, err error) error {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return fmt.Errorf("%s (%s): %w", op, gwErr.RetryHint(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
