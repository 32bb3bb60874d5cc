package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model represents a single model configuration
type Model struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Provider represents a provider's configuration
type Provider struct {
	APIKey  string  `yaml:"api_key"`
	BaseURL string  `yaml:"base_url,omitempty"`
	Models  []Model `yaml:"models"`
}

// EnvConfig represents the complete environment configuration
type EnvConfig struct {
	Providers map[string]*Provider `yaml:"providers"`
	Server    *ServerConfig        `yaml:"server,omitempty"`
	Store     StoreConfig          `yaml:"store"`
	Workflow  WorkflowConfig       `yaml:"workflow"`
	Batch     BatchConfig          `yaml:"batch"`
	Gateway   GatewayConfig        `yaml:"gateway"`
	Input     InputConfig          `yaml:"input"`
}

// apiKeyEnv maps provider names to the environment variables that override
// the key stored in the env file.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GOOGLE_API_KEY",
	"xai":       "XAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
}

// GetEnvPath returns the environment file path from SUMMAPROMPT_ENV or the default
func GetEnvPath() string {
	if envPath := os.Getenv("SUMMAPROMPT_ENV"); envPath != "" {
		DebugLog("Using environment file from SUMMAPROMPT_ENV: %s", envPath)
		return envPath
	}
	DebugLog("Using default environment file: .env")
	return ".env"
}

// MockMode reports whether SUMMAPROMPT_MODE=MOCK routes every model to the
// offline mock provider.
func MockMode() bool {
	return strings.EqualFold(os.Getenv("SUMMAPROMPT_MODE"), "MOCK")
}

// NewEnvConfig returns an empty configuration with defaults applied
func NewEnvConfig() *EnvConfig {
	cfg := &EnvConfig{Providers: make(map[string]*Provider)}
	cfg.applyDefaults()
	return cfg
}

// LoadEnvConfig loads the environment configuration from the env file
func LoadEnvConfig(path string) (*EnvConfig, error) {
	DebugLog("Attempting to load environment configuration from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		DebugLog("Error reading environment file: %v", err)
		return nil, fmt.Errorf("error reading env file: %w", err)
	}

	var config EnvConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		DebugLog("Error parsing environment file: %v", err)
		return nil, fmt.Errorf("error parsing env file: %w", err)
	}
	if config.Providers == nil {
		config.Providers = make(map[string]*Provider)
	}
	config.applyDefaults()

	DebugLog("Successfully loaded environment configuration")
	return &config, nil
}

// LoadOrDefault loads the env file at path, returning defaults when it does
// not exist yet.
func LoadOrDefault(path string) (*EnvConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		VerboseLog("No environment file at %s, using defaults", path)
		return NewEnvConfig(), nil
	}
	return LoadEnvConfig(path)
}

// SaveEnvConfig saves the environment configuration to the env file
func SaveEnvConfig(path string, config *EnvConfig) error {
	DebugLog("Attempting to save environment configuration to: %s", path)

	data, err := yaml.Marshal(config)
	if err != nil {
		DebugLog("Error marshaling environment config: %v", err)
		return fmt.Errorf("error marshaling env config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		DebugLog("Error writing environment file: %v", err)
		return fmt.Errorf("error writing env file: %w", err)
	}

	DebugLog("Successfully saved environment configuration")
	return nil
}

// GetProviderConfig retrieves configuration for a specific provider
func (c *EnvConfig) GetProviderConfig(providerName string) (*Provider, error) {
	provider, exists := c.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found in configuration", providerName)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %s configuration is nil", providerName)
	}
	return provider, nil
}

// APIKey returns the key for a provider, preferring the environment variable
// over the env file.
func (c *EnvConfig) APIKey(providerName string) string {
	if name, ok := apiKeyEnv[providerName]; ok {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	if p, ok := c.Providers[providerName]; ok && p != nil {
		return p.APIKey
	}
	return ""
}

// AddProvider adds or updates a provider configuration
func (c *EnvConfig) AddProvider(name string, provider Provider) {
	if c.Providers == nil {
		c.Providers = make(map[string]*Provider)
	}
	providerCopy := provider
	c.Providers[name] = &providerCopy
}

// AddModelToProvider adds a model to a specific provider
func (c *EnvConfig) AddModelToProvider(providerName string, model Model) error {
	provider, exists := c.Providers[providerName]
	if !exists {
		return fmt.Errorf("provider %s not found", providerName)
	}

	for _, m := range provider.Models {
		if m.Name == model.Name {
			return fmt.Errorf("model %s already exists for provider %s", model.Name, providerName)
		}
	}

	provider.Models = append(provider.Models, model)
	return nil
}

// RemoveModelFromProvider drops a model from a provider's list
func (c *EnvConfig) RemoveModelFromProvider(providerName, modelName string) error {
	provider, exists := c.Providers[providerName]
	if !exists {
		return fmt.Errorf("provider %s not found", providerName)
	}
	for i, m := range provider.Models {
		if m.Name == modelName {
			provider.Models = append(provider.Models[:i], provider.Models[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("model %s not found for provider %s", modelName, providerName)
}

// UpdateAPIKey updates the API key for a specific provider
func (c *EnvConfig) UpdateAPIKey(providerName, apiKey string) error {
	provider, exists := c.Providers[providerName]
	if !exists {
		return fmt.Errorf("provider %s not found", providerName)
	}

	provider.APIKey = apiKey
	return nil
}

// ConfiguredModels lists every model name across providers, in provider order
func (c *EnvConfig) ConfiguredModels() []string {
	var names []string
	for _, providerName := range sortedKeys(c.Providers) {
		p := c.Providers[providerName]
		if p == nil {
			continue
		}
		for _, m := range p.Models {
			names = append(names, m.Name)
		}
	}
	return names
}

// GetServerConfig returns the server configuration, creating defaults if missing
func (c *EnvConfig) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		c.Server = DefaultServerConfig()
	}
	return c.Server
}

// UpdateServerConfig replaces the server configuration
func (c *EnvConfig) UpdateServerConfig(server ServerConfig) {
	c.Server = &server
}
