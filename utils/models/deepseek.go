package models

// NewDeepseekProvider creates a provider for Deepseek models over the
// OpenAI-compatible endpoint.
func NewDeepseekProvider() *OpenAIProvider {
	return newCompatibleProvider("deepseek", "Deepseek", "https://api.deepseek.com/v1", []string{"deepseek-"})
}
