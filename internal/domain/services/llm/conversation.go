package llm

import (
	"context"

	"repairchat/internal/domain/models"
	"repairchat/internal/domain/models/llm"
)

// ConversationService turns one inbound message into a completion call and,
// for signed-in users, a persisted exchange.
type ConversationService interface {
	// HandleMessage runs one exchange.
	//   - no conversation, no topic: new conversation titled with the message
	//   - no conversation, topic: new conversation titled with the topic,
	//     topic description used as the message unless one was supplied
	//   - conversation: append, after checking the actor owns it
	// Guests never persist anything. Nothing is written when the provider fails.
	HandleMessage(ctx context.Context, req *HandleMessageRequest) (*ExchangeResult, error)
}

// HandleMessageRequest is the DTO for one inbound message
type HandleMessageRequest struct {
	Actor          models.Actor `json:"-"` // Set by handler from auth context
	Message        string       `json:"message"`
	ConversationID *string      `json:"conversation_id,omitempty"`
	TopicID        *string      `json:"-"` // Set by handler from the route
}

// ExchangeResult is returned for every accepted exchange
type ExchangeResult struct {
	AssistantMessage string  `json:"assistant_message"`
	ConversationID   *string `json:"conversation_id"`
	// Turns is set for guest topic previews: the exchange that was not saved.
	Turns []llm.Turn `json:"turns,omitempty"`
}
