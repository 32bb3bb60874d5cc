package models

import (
	"context"
	"errors"
	"fmt"
)

// ModelConfig represents configuration options for model calls
type ModelConfig struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// DefaultModelConfig is the starting configuration for every provider
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature: 0.7,
		MaxTokens:   2000,
		TopP:        1.0,
	}
}

// Provider represents a model provider (e.g., Anthropic, OpenAI)
type Provider interface {
	Name() string
	SupportsModel(modelName string) bool
	SendPrompt(ctx context.Context, modelName string, prompt string) (string, error)
	Configure(apiKey string) error
	SetConfig(cfg ModelConfig)
	SetVerbose(verbose bool)
}

// StatusError is returned by HTTP based providers when the API answers with a
// non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API request failed with status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ErrNotConfigured is wrapped when a provider is used without credentials
var ErrNotConfigured = errors.New("provider not configured")
