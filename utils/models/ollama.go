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

const ollamaDefaultHost = "http://localhost:11434"

// OllamaProvider handles locally served Ollama models
type OllamaProvider struct {
	host    string
	client  *http.Client
	config  ModelConfig
	verbose bool
}

// OllamaRequest represents the request structure for Ollama API
type OllamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// OllamaResponse represents the response structure from Ollama API
type OllamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaProvider creates a new Ollama provider instance
func NewOllamaProvider() *OllamaProvider {
	return &OllamaProvider{
		host:   ollamaDefaultHost,
		client: &http.Client{},
		config: DefaultModelConfig(),
	}
}

// Name returns the provider name
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// debugf prints debug information if verbose mode is enabled
func (o *OllamaProvider) debugf(format string, args ...interface{}) {
	if o.verbose {
		fmt.Printf("[DEBUG][Ollama] "+format+"\n", args...)
	}
}

var ollamaPrefixes = []string{
	"llama", "codellama", "mistral", "mixtral", "gemma", "phi", "qwen",
	"neural-chat", "dolphin", "orca", "vicuna", "openchat", "solar",
}

// SupportsModel checks if the given model name belongs to a known local model family
func (o *OllamaProvider) SupportsModel(modelName string) bool {
	modelName = strings.ToLower(modelName)
	for _, prefix := range ollamaPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			o.debugf("Model %s is supported by Ollama (matches prefix: %s)", modelName, prefix)
			return true
		}
	}
	return false
}

// Configure sets up the provider (no API key needed for Ollama)
func (o *OllamaProvider) Configure(apiKey string) error {
	o.debugf("Configuring Ollama provider")
	return nil
}

// SetHost points the provider at a different Ollama server
func (o *OllamaProvider) SetHost(host string) {
	o.host = strings.TrimRight(host, "/")
}

// SetConfig replaces the sampling configuration
func (o *OllamaProvider) SetConfig(cfg ModelConfig) {
	o.config = cfg
}

// SetVerbose enables or disables verbose mode
func (o *OllamaProvider) SetVerbose(verbose bool) {
	o.verbose = verbose
}

// SendPrompt sends a prompt to the specified model and returns the response
func (o *OllamaProvider) SendPrompt(ctx context.Context, modelName string, prompt string) (string, error) {
	o.debugf("Preparing to send prompt to model: %s", modelName)
	o.debugf("Prompt length: %d characters", len(prompt))

	reqBody := OllamaRequest{
		Model:  modelName,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": o.config.Temperature,
			"num_predict": o.config.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		o.debugf("Error calling Ollama API: %v", err)
		return "", fmt.Errorf("error calling Ollama API (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "Ollama", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var ollamaResp OllamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	o.debugf("API call completed, response length: %d characters", len(ollamaResp.Response))
	return ollamaResp.Response, nil
}
