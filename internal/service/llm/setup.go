package llm

import (
	"log/slog"

	"repairchat/internal/capabilities"
	"repairchat/internal/config"
	"repairchat/internal/domain/repositories"
	llmRepo "repairchat/internal/domain/repositories/llm"
	"repairchat/internal/domain/services"
	llmSvc "repairchat/internal/domain/services/llm"
	"repairchat/internal/service/llm/chat"
	"repairchat/internal/service/llm/conversation"
)

// SetupProvider builds the configured completion provider and resolves its
// model against the embedded catalogue.
func SetupProvider(cfg *config.Config, registry *capabilities.Registry, logger *slog.Logger) (llmSvc.CompletionProvider, *ResolvedModel, error) {
	factory := NewProviderFactory(cfg, registry)

	model, err := factory.Resolve()
	if err != nil {
		return nil, nil, err
	}

	provider, err := factory.GetProvider(model.Provider)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("completion provider ready",
		"provider", provider.Name(),
		"model", model.Model,
		"max_tokens", model.MaxTokens,
		"timeout", cfg.CompletionTimeout.String(),
	)

	return provider, model, nil
}

// Services holds all LLM-related services
type Services struct {
	Chat         llmSvc.ChatService
	Conversation llmSvc.ConversationService
}

// SetupServices initializes all LLM services with proper dependency injection
func SetupServices(
	chatRepo llmRepo.ChatRepository,
	turnRepo llmRepo.TurnRepository,
	topicRepo repositories.TopicRepository,
	txManager repositories.TransactionManager,
	authorizer services.ResourceAuthorizer,
	provider llmSvc.CompletionProvider,
	model *ResolvedModel,
	cfg *config.Config,
	logger *slog.Logger,
) *Services {
	chatService := chat.NewService(
		chatRepo,
		turnRepo,
		authorizer,
		logger,
	)

	conversationService := conversation.NewService(
		chatRepo,
		turnRepo,
		topicRepo,
		txManager,
		authorizer,
		provider,
		conversation.Config{
			SystemInstruction: cfg.SystemInstruction,
			Model:             model.Model,
			MaxTokens:         model.MaxTokens,
			Timeout:           cfg.CompletionTimeout,
		},
		logger,
	)

	return &Services{
		Chat:         chatService,
		Conversation: conversationService,
	}
}
