package llm

import (
	"fmt"
	"strings"

	"repairchat/internal/config"
)

// ModelInfo contains parsed provider and model information
type ModelInfo struct {
	Provider string // Provider name: "openai", "anthropic"
	Model    string // Model identifier for that provider
}

// ParseModel extracts provider information from a model string
//
// Supported formats:
//   - "anthropic/claude-haiku-4-5-20251001" → {Provider: "anthropic", Model: "claude-haiku-4-5-20251001"}
//   - "gpt-4o-mini" with configured provider "openai" → {Provider: "openai", Model: "gpt-4o-mini"}
//
// Rules:
//   - If model contains "/" → split on first "/"; the prefix overrides configuredProvider
//   - Else → configuredProvider, unless the model name clearly belongs to another provider
func ParseModel(modelStr, configuredProvider string) (*ModelInfo, error) {
	if modelStr == "" {
		return nil, fmt.Errorf("model string cannot be empty")
	}

	// Check if provider is explicitly specified (contains "/")
	if provider, model, ok := strings.Cut(modelStr, "/"); ok {
		provider = strings.ToLower(provider)
		if provider == "" {
			return nil, fmt.Errorf("provider cannot be empty in model string: %s", modelStr)
		}
		if model == "" {
			return nil, fmt.Errorf("model cannot be empty in model string: %s", modelStr)
		}
		if !knownProvider(provider) {
			return nil, fmt.Errorf("unsupported provider %q in model string: %s", provider, modelStr)
		}

		return &ModelInfo{
			Provider: provider,
			Model:    model,
		}, nil
	}

	inferred := inferProvider(modelStr)
	switch {
	case configuredProvider == "" && inferred == "":
		return nil, fmt.Errorf("unable to infer provider from model: %s", modelStr)
	case configuredProvider == "":
		configuredProvider = inferred
	case inferred != "" && inferred != configuredProvider:
		return nil, fmt.Errorf("model %s belongs to %s, but the configured provider is %s", modelStr, inferred, configuredProvider)
	}

	return &ModelInfo{
		Provider: configuredProvider,
		Model:    modelStr,
	}, nil
}

// inferProvider infers the provider from model name prefix
func inferProvider(model string) string {
	modelLower := strings.ToLower(model)

	// Anthropic models
	if strings.HasPrefix(modelLower, "claude-") {
		return config.ProviderAnthropic
	}

	// OpenAI models
	for _, prefix := range []string{"gpt-", "o1-", "o3-", "o4-"} {
		if strings.HasPrefix(modelLower, prefix) {
			return config.ProviderOpenAI
		}
	}

	// Unknown: OpenAI-compatible servers host arbitrary names
	return ""
}

func knownProvider(name string) bool {
	return name == config.ProviderOpenAI || name == config.ProviderAnthropic
}
