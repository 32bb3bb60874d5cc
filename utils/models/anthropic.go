package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicDefaultURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider handles Anthropic family of models
type AnthropicProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	config   ModelConfig
	verbose  bool
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider() *AnthropicProvider {
	return &AnthropicProvider{
		endpoint: anthropicDefaultURL,
		client:   &http.Client{},
		config:   DefaultModelConfig(),
	}
}

// debugf prints debug information if verbose mode is enabled
func (a *AnthropicProvider) debugf(format string, args ...interface{}) {
	if a.verbose {
		fmt.Printf("[DEBUG][Anthropic] "+format+"\n", args...)
	}
}

// Name returns the provider name
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// SupportsModel checks if the given model name is supported by Anthropic
func (a *AnthropicProvider) SupportsModel(modelName string) bool {
	isSupported := strings.HasPrefix(strings.ToLower(modelName), "claude-")
	a.debugf("Model %s support result: %v", modelName, isSupported)
	return isSupported
}

// Configure sets up the provider with necessary credentials
func (a *AnthropicProvider) Configure(apiKey string) error {
	a.debugf("Configuring Anthropic provider")
	if apiKey == "" {
		return fmt.Errorf("API key is required for Anthropic provider")
	}
	a.apiKey = apiKey
	return nil
}

// SetEndpoint overrides the messages endpoint
func (a *AnthropicProvider) SetEndpoint(endpoint string) {
	a.endpoint = endpoint
}

// SetConfig replaces the sampling configuration
func (a *AnthropicProvider) SetConfig(cfg ModelConfig) {
	a.config = cfg
}

// SetVerbose enables or disables verbose mode
func (a *AnthropicProvider) SetVerbose(verbose bool) {
	a.verbose = verbose
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SendPrompt sends a prompt to the specified model and returns the response
func (a *AnthropicProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	a.debugf("Preparing to send prompt to model: %s", modelName)
	a.debugf("Prompt length: %d characters", len(prompt))

	if a.apiKey == "" {
		return "", fmt.Errorf("Anthropic: %w: missing API key", ErrNotConfigured)
	}
	if !a.SupportsModel(modelName) {
		return "", fmt.Errorf("invalid Anthropic model: %s", modelName)
	}

	reqBody := anthropicRequest{
		Model: modelName,
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicContent{{Type: "text", Text: prompt}}},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "Anthropic", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("Anthropic API error: %s", response.Error.Message)
	}

	var sb strings.Builder
	for _, c := range response.Content {
		if c.Type == "" || c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no response content returned from Anthropic")
	}

	a.debugf("API call completed, response length: %d characters", sb.Len())
	return sb.String(), nil
}
