package chat

import (
	"context"
	"log/slog"

	llmModels "repairchat/internal/domain/models/llm"
	llmRepo "repairchat/internal/domain/repositories/llm"
	"repairchat/internal/domain/services"
	llmSvc "repairchat/internal/domain/services/llm"
)

// Service implements the ChatService interface
// Handles reading and deleting saved conversations
type Service struct {
	chatRepo   llmRepo.ChatRepository
	turnRepo   llmRepo.TurnRepository
	authorizer services.ResourceAuthorizer
	logger     *slog.Logger
}

// NewService creates a new chat service
func NewService(
	chatRepo llmRepo.ChatRepository,
	turnRepo llmRepo.TurnRepository,
	authorizer services.ResourceAuthorizer,
	logger *slog.Logger,
) llmSvc.ChatService {
	return &Service{
		chatRepo:   chatRepo,
		turnRepo:   turnRepo,
		authorizer: authorizer,
		logger:     logger,
	}
}

// ListChats retrieves all chats of a user
func (s *Service) ListChats(ctx context.Context, userID string) ([]llmModels.Chat, error) {
	return s.chatRepo.ListChatsByUser(ctx, userID)
}

// GetChat retrieves a chat by ID
func (s *Service) GetChat(ctx context.Context, chatID, userID string) (*llmModels.Chat, error) {
	if err := s.authorizer.CanAccessChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	return s.chatRepo.GetChat(ctx, chatID, userID)
}

// ListTurns retrieves a chat's turns in creation order
func (s *Service) ListTurns(ctx context.Context, chatID, userID string) ([]llmModels.Turn, error) {
	if err := s.authorizer.CanAccessChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	return s.turnRepo.ListTurns(ctx, chatID)
}

// DeleteChat hard-deletes a chat together with its turns
func (s *Service) DeleteChat(ctx context.Context, chatID, userID string) (*llmModels.Chat, error) {
	if err := s.authorizer.CanAccessChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	deletedChat, err := s.chatRepo.DeleteChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat deleted",
		"id", chatID,
		"user_id", userID,
	)

	return deletedChat, nil
}
