package models

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kris-hansen/summaprompt/utils/llmjson"
)

// MockProvider answers every prompt locally. It is selected for "mock-"
// models and for every model when SUMMAPROMPT_MODE=MOCK.
type MockProvider struct {
	verbose   bool
	responder func(prompt string) string
}

// NewMockProvider creates a mock provider with the default responder
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider name
func (m *MockProvider) Name() string {
	return "mock"
}

// SupportsModel accepts models prefixed with "mock-"
func (m *MockProvider) SupportsModel(modelName string) bool {
	return strings.HasPrefix(strings.ToLower(modelName), "mock-")
}

// Configure is a no-op; the mock needs no credentials
func (m *MockProvider) Configure(apiKey string) error {
	return nil
}

// SetConfig is a no-op
func (m *MockProvider) SetConfig(cfg ModelConfig) {}

// SetVerbose enables or disables verbose mode
func (m *MockProvider) SetVerbose(verbose bool) {
	m.verbose = verbose
}

// SetResponder replaces the function that produces mock output
func (m *MockProvider) SetResponder(fn func(prompt string) string) {
	m.responder = fn
}

// SendPrompt returns a canned response derived from the prompt
func (m *MockProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.verbose {
		fmt.Printf("[DEBUG][Mock] Prompt length: %d characters\n", len(prompt))
	}
	if m.responder != nil {
		return m.responder(prompt), nil
	}
	return mockResponse(prompt), nil
}

type mockItem struct {
	Text string `json:"text"`
}

// mockResponse summarizes any index-keyed item object found in the prompt by
// its first words, and otherwise echoes the prompt.
func mockResponse(prompt string) string {
	var items map[string]mockItem
	if err := llmjson.Decode(prompt, llmjson.Object, &items); err == nil && len(items) > 0 {
		type record struct {
			Index   int    `json:"index"`
			Summary string `json:"summary"`
			Type    string `json:"type"`
		}
		var records []record
		for key, item := range items {
			idx, err := strconv.Atoi(key)
			if err != nil || item.Text == "" {
				continue
			}
			records = append(records, record{Index: idx, Summary: firstWords(item.Text, 8), Type: "general"})
		}
		if len(records) > 0 {
			sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
			out, _ := json.Marshal(records)
			return string(out)
		}
	}
	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", firstWords(prompt, 16))
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}
