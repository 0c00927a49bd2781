package auth

import (
	"context"
	"fmt"

	"repairchat/internal/domain"
	llmRepo "repairchat/internal/domain/repositories/llm"
	"repairchat/internal/domain/services"
)

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// A user can access a chat only if they created it.
type OwnerBasedAuthorizer struct {
	chatRepo llmRepo.ChatRepository
}

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(chatRepo llmRepo.ChatRepository) services.ResourceAuthorizer {
	return &OwnerBasedAuthorizer{chatRepo: chatRepo}
}

// CanAccessChat checks if user owns the chat
func (a *OwnerBasedAuthorizer) CanAccessChat(ctx context.Context, userID, chatID string) error {
	// Get chat by UUID only (no user scoping) so a foreign chat is
	// distinguishable from a missing one
	chat, err := a.chatRepo.GetChatByIDOnly(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get chat for auth: %w", err)
	}

	if chat.UserID != userID {
		return fmt.Errorf("access denied to chat %s: %w", chatID, domain.ErrForbidden)
	}
	return nil
}
