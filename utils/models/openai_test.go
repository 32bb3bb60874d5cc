package models

import (
	"context"
	"errors"
	"testing"
)

func TestSupportsModel(t *testing.T) {
	provider := NewOpenAIProvider()

	tests := []struct {
		name     string
		model    string
		expected bool
	}{
		{"gpt-4", "gpt-4", true},
		{"gpt-4o-mini", "gpt-4o-mini", true},
		{"o1-preview", "o1-preview", true},
		{"o3-mini", "o3-mini", true},
		{"o4-mini-2025-04-16", "o4-mini-2025-04-16", true},
		{"upper case", "GPT-4.1-nano", true},

		{"empty string", "", false},
		{"invalid prefix", "invalid-model", false},
		{"partial match", "not-gpt-4", false},
		{"claude", "claude-3-5-haiku-latest", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := provider.SupportsModel(tt.model)
			if result != tt.expected {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, result, tt.expected)
			}
		})
	}
}

func TestCompatibleProvidersPrefixes(t *testing.T) {
	tests := []struct {
		provider *OpenAIProvider
		name     string
		model    string
	}{
		{NewXAIProvider(), "xai", "grok-2-latest"},
		{NewDeepseekProvider(), "deepseek", "deepseek-chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.provider.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", tt.provider.Name(), tt.name)
			}
			if !tt.provider.SupportsModel(tt.model) {
				t.Errorf("SupportsModel(%q) = false, want true", tt.model)
			}
			if tt.provider.SupportsModel("gpt-4o") {
				t.Errorf("SupportsModel(gpt-4o) = true, want false")
			}
		})
	}
}

func TestIsNewModelSeries(t *testing.T) {
	provider := NewOpenAIProvider()

	tests := []struct {
		name     string
		model    string
		expected bool
	}{
		{"o4-mini", "o4-mini", true},
		{"o1-preview", "o1-preview", true},
		{"o3-mini", "o3-mini", true},
		{"gpt-4o-mini", "gpt-4o-mini", true},

		{"gpt-4", "gpt-4", false},
		{"gpt-3.5-turbo", "gpt-3.5-turbo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := provider.isNewModelSeries(tt.model)
			if result != tt.expected {
				t.Errorf("isNewModelSeries(%q) = %v, want %v", tt.model, result, tt.expected)
			}
		})
	}
}

func TestCreateChatCompletionRequestUsesMaxTokens(t *testing.T) {
	provider := NewOpenAIProvider()
	provider.SetConfig(ModelConfig{Temperature: 0.2, MaxTokens: 321, TopP: 0.9})

	legacy := provider.createChatCompletionRequest("gpt-4", "hi")
	if legacy.MaxTokens != 321 || legacy.MaxCompletionTokens != 0 {
		t.Errorf("legacy request tokens = %d/%d, want 321/0", legacy.MaxTokens, legacy.MaxCompletionTokens)
	}

	modern := provider.createChatCompletionRequest("gpt-4o-mini", "hi")
	if modern.MaxCompletionTokens != 321 || modern.MaxTokens != 0 {
		t.Errorf("new series request tokens = %d/%d, want 0/321", modern.MaxTokens, modern.MaxCompletionTokens)
	}
}

func TestSendPromptWithoutKey(t *testing.T) {
	_, err := NewOpenAIProvider().SendPrompt(context.Background(), "gpt-4o", "hello")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SendPrompt without key error = %v, want ErrNotConfigured", err)
	}
}
