package llm

import (
	"context"

	"repairchat/internal/domain/models/llm"
)

// ChatRepository defines the interface for chat data access
type ChatRepository interface {
	// CreateChat inserts a chat and fills in its ID and CreatedAt
	CreateChat(ctx context.Context, chat *llm.Chat) error

	// GetChat retrieves a chat by ID (scoped to user)
	// Returns domain.ErrNotFound if not found
	GetChat(ctx context.Context, chatID, userID string) (*llm.Chat, error)

	// GetChatByIDOnly retrieves a chat by ID only (no user scoping)
	// Used by ResourceAuthorizer when authorization is handled separately
	// Returns domain.ErrNotFound if not found
	GetChatByIDOnly(ctx context.Context, chatID string) (*llm.Chat, error)

	// ListChatsByUser retrieves all chats owned by a user, newest first
	// Returns empty slice if no chats found
	ListChatsByUser(ctx context.Context, userID string) ([]llm.Chat, error)

	// DeleteChat removes a chat and its turns and returns the deleted chat
	// Returns domain.ErrNotFound if not found
	DeleteChat(ctx context.Context, chatID, userID string) (*llm.Chat, error)
}
