// Package gateway is the single entry point for text generation calls. It
// resolves a model to a configured provider, bounds every call with a
// timeout and reports failures as typed *Error values.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/kris-hansen/summaprompt/utils/config"
	"github.com/kris-hansen/summaprompt/utils/models"
)

// Gateway completes a prompt with the given model
type Gateway interface {
	Complete(ctx context.Context, prompt, model string, maxTokens int) (string, error)
}

// Kind classifies gateway failures
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
	KindTransport    Kind = "transport"
	KindUnrecognized Kind = "unrecognized"
)

// Error is returned for every failed Complete call
type Error struct {
	Kind  Kind
	Model string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s error for model %s: %v", e.Kind, e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same call may succeed
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindTransport:
		return true
	}
	return false
}

// RetryHint is a short user-facing suggestion for recovering from the failure
func (e *Error) RetryHint() string {
	switch e.Kind {
	case KindTimeout:
		return "the model took too long to answer; retry or use a smaller batch"
	case KindRateLimited:
		return "the provider is rate limiting requests; wait a moment and retry"
	case KindUnauthorized:
		return "check the API key configured for this model's provider"
	case KindTransport:
		return "the provider could not be reached; check connectivity and retry"
	default:
		return "check the model name and provider configuration"
	}
}

// ProviderGateway resolves models through the provider registry
type ProviderGateway struct {
	env     *config.EnvConfig
	timeout time.Duration
	lookup  func(model string) models.Provider
}

// New creates a gateway backed by the registered providers
func New(env *config.EnvConfig) *ProviderGateway {
	timeout := env.Gateway.Timeout
	if timeout <= 0 {
		timeout = config.DefaultGatewayTimeout
	}
	g := &ProviderGateway{env: env, timeout: timeout}
	g.lookup = g.findProvider
	return g
}

// WithTimeout returns a copy of the gateway using a different call timeout
func (g *ProviderGateway) WithTimeout(timeout time.Duration) *ProviderGateway {
	clone := *g
	clone.timeout = timeout
	return &clone
}

func (g *ProviderGateway) findProvider(model string) models.Provider {
	if config.MockMode() {
		return models.GetProviderByName("mock")
	}
	return models.FindProvider(model)
}

type completion struct {
	text string
	err  error
}

// Complete sends the prompt to the provider serving model. The call is
// abandoned once the timeout elapses even if the provider ignores ctx.
func (g *ProviderGateway) Complete(ctx context.Context, prompt, model string, maxTokens int) (string, error) {
	provider := g.lookup(model)
	if provider == nil {
		return "", &Error{Kind: KindUnrecognized, Model: model, Err: fmt.Errorf("no provider found for model %s", model)}
	}

	if err := provider.Configure(g.env.APIKey(provider.Name())); err != nil {
		return "", &Error{Kind: KindUnauthorized, Model: model, Err: err}
	}
	g.applyEndpoint(provider)

	cfg := models.DefaultModelConfig()
	if maxTokens > 0 {
		cfg.MaxTokens = maxTokens
	}
	provider.SetConfig(cfg)
	provider.SetVerbose(config.Debug)

	config.VerboseLog("[Gateway] %s via %s (%d chars, max %d tokens)", model, provider.Name(), len(prompt), cfg.MaxTokens)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan completion, 1)
	start := time.Now()
	go func() {
		text, err := provider.SendPrompt(callCtx, model, prompt)
		done <- completion{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			kind := classify(callCtx, res.err)
			config.DebugLog("[Gateway] %s failed after %v: %s: %v", model, time.Since(start), kind, res.err)
			return "", &Error{Kind: kind, Model: model, Err: res.err}
		}
		config.DebugLog("[Gateway] %s answered in %v (%d chars)", model, time.Since(start), len(res.text))
		return res.text, nil
	case <-callCtx.Done():
		kind := classify(callCtx, callCtx.Err())
		config.DebugLog("[Gateway] %s abandoned after %v: %s", model, time.Since(start), kind)
		return "", &Error{Kind: kind, Model: model, Err: callCtx.Err()}
	}
}

type baseURLSetter interface{ SetBaseURL(string) }
type hostSetter interface{ SetHost(string) }
type endpointSetter interface{ SetEndpoint(string) }

// applyEndpoint honours a base_url configured for the provider in the env file
func (g *ProviderGateway) applyEndpoint(p models.Provider) {
	pc, ok := g.env.Providers[p.Name()]
	if !ok || pc == nil || pc.BaseURL == "" {
		return
	}
	switch s := p.(type) {
	case baseURLSetter:
		s.SetBaseURL(pc.BaseURL)
	case hostSetter:
		s.SetHost(pc.BaseURL)
	case endpointSetter:
		s.SetEndpoint(pc.BaseURL)
	}
}
