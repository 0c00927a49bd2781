package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"repairchat/internal/domain"
	domainllm "repairchat/internal/domain/services/llm"
	"repairchat/internal/service/llm/providers"
)

// defaultMaxTokens is used when neither the request nor the catalogue sets one;
// the Messages API requires a value.
const defaultMaxTokens = 1024

// Provider implements the CompletionProvider interface for Anthropic (Claude) models.
type Provider struct {
	client *anthropic.Client
}

// NewProvider creates a new Anthropic provider with the given API key.
// The SDK's automatic retries are disabled: a completion is not safe to resend.
func NewProvider(apiKey, baseURL string, httpClient *http.Client) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	client := anthropic.NewClient(opts...)

	return &Provider{
		client: &client,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "anthropic"
}

// SupportsModel returns true if this provider supports the given model.
// Anthropic models start with "claude-"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// Complete sends the system instruction and the single user message to Claude.
func (p *Provider) Complete(ctx context.Context, req *domainllm.CompletionRequest) (*domainllm.CompletionResponse, error) {
	if !p.SupportsModel(req.Model) {
		return nil, fmt.Errorf("model '%s' is not supported by Anthropic provider", req.Model)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	apiParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Message)),
		},
	}
	if req.SystemInstruction != "" {
		apiParams.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: req.SystemInstruction,
			},
		}
	}

	message, err := p.client.Messages.New(ctx, apiParams)
	if err != nil {
		return nil, classifyError(err)
	}

	return convertFromAnthropicResponse(message), nil
}

// convertFromAnthropicResponse joins the text blocks of the reply
func convertFromAnthropicResponse(message *anthropic.Message) *domainllm.CompletionResponse {
	out := &domainllm.CompletionResponse{Model: string(message.Model)}

	var parts []string
	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) > 0 {
		text := strings.Join(parts, "\n")
		out.Text = &text
	}
	return out
}

func classifyError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		body := apiErr.RawJSON()
		if body == "" {
			body = apiErr.Error()
		}
		return &domain.UpstreamRejectedError{
			ProviderStatus: apiErr.StatusCode,
			Body:           body,
		}
	}
	return providers.ClassifyTransportError(err)
}
