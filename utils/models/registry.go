package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kris-hansen/summaprompt/utils/config"
)

// Global registry instance
var registry = &ProviderRegistry{
	factories: make(map[string]Factory),
}

func init() {
	builtins := []struct {
		constructor func() Provider
		metadata    ProviderMetadata
	}{
		{func() Provider { return NewOpenAIProvider() }, ProviderMetadata{
			Name: "openai", Description: "OpenAI chat completions",
			ModelPrefixes: []string{"gpt-", "o1-", "o3-", "o4-"}, Priority: 100,
		}},
		{func() Provider { return NewAnthropicProvider() }, ProviderMetadata{
			Name: "anthropic", Description: "Anthropic messages API",
			ModelPrefixes: []string{"claude-"}, Priority: 100,
		}},
		{func() Provider { return NewGoogleProvider() }, ProviderMetadata{
			Name: "google", Description: "Google Gemini",
			ModelPrefixes: []string{"gemini-"}, Priority: 90,
		}},
		{func() Provider { return NewXAIProvider() }, ProviderMetadata{
			Name: "xai", Description: "X.AI grok over the OpenAI protocol",
			ModelPrefixes: []string{"grok-"}, Priority: 80,
		}},
		{func() Provider { return NewDeepseekProvider() }, ProviderMetadata{
			Name: "deepseek", Description: "Deepseek over the OpenAI protocol",
			ModelPrefixes: []string{"deepseek-"}, Priority: 80,
		}},
		{func() Provider { return NewOllamaProvider() }, ProviderMetadata{
			Name: "ollama", Description: "Local models served by Ollama",
			ModelPrefixes: ollamaPrefixes, Priority: 10,
		}},
		{func() Provider { return NewMockProvider() }, ProviderMetadata{
			Name: "mock", Description: "Offline canned responses",
			ModelPrefixes: []string{"mock-"}, Priority: 1,
		}},
	}
	for _, b := range builtins {
		if err := RegisterProvider(b.metadata.Name, NewProviderFactory(b.constructor, b.metadata)); err != nil {
			panic(err)
		}
	}
}

// ProviderRegistry manages registered provider factories
type ProviderRegistry struct {
	factories map[string]Factory
	mutex     sync.RWMutex
}

// Factory creates provider instances and provides metadata
type Factory interface {
	CreateProvider() Provider
	GetMetadata() ProviderMetadata
}

// ProviderFactory is a reusable factory for all provider types
type ProviderFactory struct {
	constructor func() Provider
	metadata    ProviderMetadata
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(constructor func() Provider, metadata ProviderMetadata) *ProviderFactory {
	return &ProviderFactory{
		constructor: constructor,
		metadata:    metadata,
	}
}

// CreateProvider creates a new provider instance using the constructor function
func (f *ProviderFactory) CreateProvider() Provider {
	return f.constructor()
}

// GetMetadata returns the provider metadata
func (f *ProviderFactory) GetMetadata() ProviderMetadata {
	return f.metadata
}

// ProviderMetadata contains information about a provider
type ProviderMetadata struct {
	Name          string
	Description   string
	ModelPrefixes []string // e.g., ["claude-", "gpt-"]
	Priority      int      // Higher priority = checked first
}

// RegisterProvider adds a provider factory to the registry
func RegisterProvider(name string, factory Factory) error {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if _, exists := registry.factories[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	registry.factories[name] = factory
	config.DebugLog("[Registry] Registered provider: %s", name)
	return nil
}

// FindProvider returns a fresh provider for the model using the global registry
func FindProvider(modelName string) Provider {
	return registry.FindProvider(modelName)
}

// FindProvider detects appropriate provider for model
func (r *ProviderRegistry) FindProvider(modelName string) Provider {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	config.DebugLog("[Registry] Finding provider for model: %s", modelName)

	var candidates []ProviderMetadata
	byName := make(map[string]Factory)

	for name, factory := range r.factories {
		metadata := factory.GetMetadata()
		for _, prefix := range metadata.ModelPrefixes {
			if strings.HasPrefix(strings.ToLower(modelName), prefix) {
				candidates = append(candidates, metadata)
				byName[name] = factory
				break
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Name < candidates[j].Name
	})

	if len(candidates) > 0 {
		selected := candidates[0]
		config.DebugLog("[Registry] Selected provider %s for model %s (priority: %d)",
			selected.Name, modelName, selected.Priority)
		return byName[selected.Name].CreateProvider()
	}

	config.DebugLog("[Registry] No provider found for model %s", modelName)
	return nil
}

// GetAvailableProviders returns list of registered providers
func GetAvailableProviders() []ProviderMetadata {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	var providers []ProviderMetadata
	for _, factory := range registry.factories {
		providers = append(providers, factory.GetMetadata())
	}

	sort.Slice(providers, func(i, j int) bool {
		if providers[i].Priority != providers[j].Priority {
			return providers[i].Priority > providers[j].Priority
		}
		return providers[i].Name < providers[j].Name
	})

	return providers
}

// GetProviderByName returns a specific provider by name
func GetProviderByName(name string) Provider {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	if factory, exists := registry.factories[name]; exists {
		return factory.CreateProvider()
	}
	return nil
}

// ListRegisteredProviders returns names of all registered providers
func ListRegisteredProviders() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	var names []string
	for name := range registry.factories {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
