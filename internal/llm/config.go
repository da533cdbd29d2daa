// Package llm provides the language-model client used by the optional
// model-backed text analyzer.
package llm

// ModelTier selects a model by capability.
type ModelTier string

const (
	// TierLite is for classification-style scoring of short texts
	TierLite ModelTier = "lite"
	// TierStandard is for longer texts that need more reasoning
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Config holds the model configuration
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature: 0.1,
	}
}

// GetModel returns the model name for a given tier, falling back to the
// standard tier and then to any configured model.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok && model != "" {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok && model != "" {
		return model
	}
	for _, model := range c.Models {
		if model != "" {
			return model
		}
	}
	return ""
}
