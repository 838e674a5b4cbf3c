// Package llm provides LLM configuration and client abstractions used by the email classifier.
package llm

import "os"

// ModelTier selects a model by cost and capability
type ModelTier string

const (
	// TierLite handles short single-email classification
	TierLite ModelTier = "lite"
	// TierStandard handles long or noisy bodies the lite model misreads
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// ModelEnvVar overrides the lite-tier model name.
const ModelEnvVar = "GEMINI_MODEL"

// Config holds the model settings used for classification calls
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the Gemini settings, honoring GEMINI_MODEL.
func DefaultConfig() *Config {
	cfg := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		// Labels must be stable across reruns of the same email
		Temperature:     0.1,
		MaxOutputTokens: 500,
	}
	if model := os.Getenv(ModelEnvVar); model != "" {
		cfg = cfg.WithModel(TierLite, model)
	}
	return cfg
}

// GetModel returns the model for a tier, falling back to the lite model.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	return c.Models[TierLite]
}

// WithModel returns a copy with tier mapped to model.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
