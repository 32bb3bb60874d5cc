package models

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider handles OpenAI models and any vendor that speaks the same
// chat completions protocol under a different base URL.
type OpenAIProvider struct {
	name     string
	label    string
	baseURL  string
	prefixes []string
	apiKey   string
	config   ModelConfig
	verbose  bool
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider() *OpenAIProvider {
	return newCompatibleProvider("openai", "OpenAI", "", []string{"gpt-", "o1-", "o3-", "o4-"})
}

func newCompatibleProvider(name, label, baseURL string, prefixes []string) *OpenAIProvider {
	return &OpenAIProvider{
		name:     name,
		label:    label,
		baseURL:  baseURL,
		prefixes: prefixes,
		config:   DefaultModelConfig(),
	}
}

// Name returns the provider name
func (o *OpenAIProvider) Name() string {
	return o.name
}

// debugf prints debug information if verbose mode is enabled
func (o *OpenAIProvider) debugf(format string, args ...interface{}) {
	if o.verbose {
		fmt.Printf("[DEBUG]["+o.label+"] "+format+"\n", args...)
	}
}

// SupportsModel checks if the given model name carries one of the provider's prefixes
func (o *OpenAIProvider) SupportsModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range o.prefixes {
		if strings.HasPrefix(modelName, prefix) {
			o.debugf("Model %s is supported (matches prefix %s)", modelName, prefix)
			return true
		}
	}
	o.debugf("Model %s is not supported (no matching prefix)", modelName)
	return false
}

// Configure sets up the provider with necessary credentials
func (o *OpenAIProvider) Configure(apiKey string) error {
	o.debugf("Configuring %s provider", o.label)
	if apiKey == "" {
		return fmt.Errorf("API key is required for %s provider", o.label)
	}
	o.apiKey = apiKey
	return nil
}

// SetBaseURL points the provider at a different endpoint
func (o *OpenAIProvider) SetBaseURL(baseURL string) {
	o.baseURL = baseURL
}

// SetConfig replaces the sampling configuration
func (o *OpenAIProvider) SetConfig(cfg ModelConfig) {
	o.config = cfg
}

// SetVerbose enables or disables verbose mode
func (o *OpenAIProvider) SetVerbose(verbose bool) {
	o.verbose = verbose
}

// isNewModelSeries checks if the model is part of the reasoning or 4o series,
// which only accept max_completion_tokens and fixed sampling parameters.
func (o *OpenAIProvider) isNewModelSeries(modelName string) bool {
	modelName = strings.ToLower(modelName)
	return strings.Contains(modelName, "4o") ||
		strings.HasPrefix(modelName, "o1") ||
		strings.HasPrefix(modelName, "o3") ||
		strings.HasPrefix(modelName, "o4")
}

func (o *OpenAIProvider) createChatCompletionRequest(modelName string, prompt string) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	if o.name == "openai" && o.isNewModelSeries(modelName) {
		req.MaxCompletionTokens = o.config.MaxTokens
		req.Temperature = 1.0
		req.TopP = 1.0
		o.debugf("Using fixed parameters for new model series")
	} else {
		req.MaxTokens = o.config.MaxTokens
		req.Temperature = float32(o.config.Temperature)
		req.TopP = float32(o.config.TopP)
		o.debugf("Using configured parameters: Temperature=%.2f, TopP=%.2f", o.config.Temperature, o.config.TopP)
	}
	return req
}

// SendPrompt sends a prompt to the specified model and returns the response
func (o *OpenAIProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	o.debugf("Preparing to send prompt to model: %s", modelName)
	o.debugf("Prompt length: %d characters", len(prompt))

	if o.apiKey == "" {
		return "", fmt.Errorf("%s: %w: missing API key", o.label, ErrNotConfigured)
	}
	if !o.SupportsModel(modelName) {
		return "", fmt.Errorf("invalid %s model: %s", o.label, modelName)
	}

	clientConfig := openai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		clientConfig.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	resp, err := client.CreateChatCompletion(ctx, o.createChatCompletionRequest(modelName, prompt))
	if err != nil {
		return "", fmt.Errorf("%s API error: %w", o.label, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned from %s", o.label)
	}

	response := resp.Choices[0].Message.Content
	o.debugf("API call completed, response length: %d characters", len(response))
	return response, nil
}
