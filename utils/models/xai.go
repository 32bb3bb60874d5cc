package models

// NewXAIProvider creates a provider for X.AI grok models over the
// OpenAI-compatible endpoint.
func NewXAIProvider() *OpenAIProvider {
	return newCompatibleProvider("xai", "XAI", "https://api.x.ai/v1", []string{"grok-"})
}
