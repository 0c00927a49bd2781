package llm

import (
	"context"
)

// CompletionProvider is the external model answering user messages.
// Implementations map their failures onto *domain.UpstreamConnectionError,
// *domain.UpstreamRejectedError and *domain.UpstreamFailureError.
type CompletionProvider interface {
	// Complete sends one request and waits for the full reply.
	// It never retries: a failed call may already have been billed.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "anthropic")
	Name() string
}

// CompletionRequest is a single stateless exchange: no earlier turns are sent.
type CompletionRequest struct {
	SystemInstruction string
	Message           string
	Model             string
	MaxTokens         int // 0 lets the provider decide
}

// CompletionResponse holds the first choice of the provider's answer.
type CompletionResponse struct {
	// Text is nil when the provider answered without message text.
	Text  *string
	Model string
}
