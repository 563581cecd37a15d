// Package llm provides the model clients used to score assessment answers
// and draft job postings. Providers are selected by configuration and share
// one Client interface.
package llm

import "strings"

// ModelTier represents the capability level of a model
type ModelTier string

const (
	// TierLite is for short structured judgments such as scoring one answer
	TierLite ModelTier = "lite"
	// TierStandard is for longer reasoning
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI covers OpenAI and any compatible endpoint, including Azure deployments
	ProviderOpenAI Provider = "openai"
)

// Config holds the model configuration for a client
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	BaseURL     string
	Temperature float32
}

// DefaultConfig returns the Gemini configuration
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		Temperature: 0.1,
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o",
		},
		Temperature: 0.3,
	}
}

// ConfigFor returns the default configuration for provider. A non-empty
// model pins every tier to that model; a non-empty baseURL redirects the
// OpenAI client to a compatible endpoint.
func ConfigFor(provider, model, baseURL string) *Config {
	var cfg *Config
	switch Provider(strings.ToLower(provider)) {
	case ProviderOpenAI:
		cfg = DefaultOpenAIConfig()
	default:
		cfg = DefaultGeminiConfig()
	}
	if model != "" {
		for tier := range cfg.Models {
			cfg.Models[tier] = model
		}
	}
	cfg.BaseURL = baseURL
	return cfg
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of the Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		next.Models[k] = v
	}
	next.Models[tier] = model
	return &next
}
