package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"repairchat/internal/domain"
	llmSvc "repairchat/internal/domain/services/llm"
	"repairchat/internal/service/llm/providers"
)

// Provider implements CompletionProvider for OpenAI and OpenAI-compatible
// chat completion APIs.
type Provider struct {
	client *openai.Client
}

// NewProvider creates an OpenAI provider. An empty baseURL uses the
// public OpenAI endpoint; httpClient may be nil.
func NewProvider(apiKey, baseURL string, httpClient *http.Client) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	return &Provider{client: openai.NewClientWithConfig(cfg)}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Complete sends the system instruction and the single user message.
func (p *Provider) Complete(ctx context.Context, req *llmSvc.CompletionRequest) (*llmSvc.CompletionResponse, error) {
	apiReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: req.Message},
		},
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, classifyError(err)
	}

	out := &llmSvc.CompletionResponse{Model: resp.Model}
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		text := resp.Choices[0].Message.Content
		out.Text = &text
	}
	return out, nil
}

// classifyError separates error responses from transport failures
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.UpstreamRejectedError{
			ProviderStatus: apiErr.HTTPStatusCode,
			Body:           errorBody(apiErr),
		}
	}

	// non-JSON error body, e.g. from a gateway in front of the API
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.UpstreamRejectedError{
			ProviderStatus: reqErr.HTTPStatusCode,
			Body:           reqErr.Error(),
		}
	}

	return providers.ClassifyTransportError(err)
}

// errorBody re-encodes the decoded error object in the API's own
// {"error": {...}} shape, keeping code, type and param alongside the message.
func errorBody(apiErr *openai.APIError) string {
	raw, err := json.Marshal(struct {
		Error *openai.APIError `json:"error"`
	}{apiErr})
	if err != nil {
		return apiErr.Error()
	}
	return string(raw)
}
