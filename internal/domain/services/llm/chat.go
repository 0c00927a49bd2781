package llm

import (
	"context"

	"repairchat/internal/domain/models/llm"
)

// ChatService exposes a user's saved conversations
type ChatService interface {
	// ListChats returns the user's chats, newest first
	ListChats(ctx context.Context, userID string) ([]llm.Chat, error)

	// GetChat returns one chat after checking ownership
	GetChat(ctx context.Context, chatID, userID string) (*llm.Chat, error)

	// ListTurns returns the chat's turns in creation order after checking ownership
	ListTurns(ctx context.Context, chatID, userID string) ([]llm.Turn, error)

	// DeleteChat removes the chat and its turns after checking ownership
	DeleteChat(ctx context.Context, chatID, userID string) (*llm.Chat, error)
}
