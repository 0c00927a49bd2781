package llm

import (
	"fmt"
	"net/http"

	"repairchat/internal/capabilities"
	"repairchat/internal/config"
	llmSvc "repairchat/internal/domain/services/llm"
	"repairchat/internal/service/llm/providers/anthropic"
	"repairchat/internal/service/llm/providers/openai"
)

// ProviderFactory creates the configured completion provider
type ProviderFactory struct {
	config     *config.Config
	registry   *capabilities.Registry
	httpClient *http.Client
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(cfg *config.Config, registry *capabilities.Registry) *ProviderFactory {
	return &ProviderFactory{
		config:   cfg,
		registry: registry,
	}
}

// ResolvedModel is the model every exchange is sent to
type ResolvedModel struct {
	Provider  string
	Model     string
	MaxTokens int
}

// Resolve parses COMPLETION_MODEL, checks it against the provider's
// catalogue and settles the reply token cap.
func (f *ProviderFactory) Resolve() (*ResolvedModel, error) {
	info, err := ParseModel(f.config.CompletionModel, f.config.CompletionProvider)
	if err != nil {
		return nil, fmt.Errorf("COMPLETION_MODEL: %w", err)
	}

	caps, err := f.registry.GetModelCapabilities(info.Provider, info.Model)
	if err != nil {
		return nil, fmt.Errorf("COMPLETION_MODEL: %w", err)
	}

	maxTokens := f.config.CompletionMaxTokens
	if maxTokens <= 0 {
		maxTokens = caps.DefaultMaxTokens
	}
	if caps.MaxOutput > 0 && maxTokens > caps.MaxOutput {
		return nil, fmt.Errorf("COMPLETION_MAX_TOKENS %d exceeds %s limit of %d", maxTokens, caps.ID, caps.MaxOutput)
	}

	return &ResolvedModel{
		Provider:  info.Provider,
		Model:     caps.ID,
		MaxTokens: maxTokens,
	}, nil
}

// GetProvider returns a provider instance for the named provider
//
// Supported providers:
//   - "openai" - OpenAI or any OpenAI-compatible endpoint (COMPLETION_BASE_URL)
//   - "anthropic" - Claude models via Anthropic API
func (f *ProviderFactory) GetProvider(name string) (llmSvc.CompletionProvider, error) {
	switch name {
	case config.ProviderOpenAI:
		return f.createOpenAIProvider()

	case config.ProviderAnthropic:
		return f.createAnthropicProvider()

	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

// createOpenAIProvider creates an OpenAI provider instance
func (f *ProviderFactory) createOpenAIProvider() (llmSvc.CompletionProvider, error) {
	if f.config.CompletionAPIKey == "" {
		return nil, fmt.Errorf("COMPLETION_API_KEY environment variable not set")
	}

	provider, err := openai.NewProvider(f.config.CompletionAPIKey, f.config.CompletionBaseURL, f.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI provider: %w", err)
	}

	return provider, nil
}

// createAnthropicProvider creates an Anthropic provider instance
func (f *ProviderFactory) createAnthropicProvider() (llmSvc.CompletionProvider, error) {
	if f.config.CompletionAPIKey == "" {
		return nil, fmt.Errorf("COMPLETION_API_KEY environment variable not set")
	}

	provider, err := anthropic.NewProvider(f.config.CompletionAPIKey, f.config.CompletionBaseURL, f.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}

	return provider, nil
}
