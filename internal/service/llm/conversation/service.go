package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"repairchat/internal/config"
	"repairchat/internal/domain"
	llmModels "repairchat/internal/domain/models/llm"
	"repairchat/internal/domain/repositories"
	llmRepo "repairchat/internal/domain/repositories/llm"
	"repairchat/internal/domain/services"
	llmSvc "repairchat/internal/domain/services/llm"
	"repairchat/internal/service/llm/providers"
)

// DefaultSystemInstruction keeps the assistant on appliance repair.
const DefaultSystemInstruction = "You are a household appliance repair assistant. " +
	"Help the user diagnose, maintain and repair appliances such as washers, dryers, " +
	"refrigerators, dishwashers, ovens and microwaves. Give clear, safe, step by step " +
	"guidance and say when a qualified technician is needed. If the user asks about " +
	"anything unrelated to appliance repair, politely decline and steer back to the topic."

// EmptyReplyPlaceholder is stored and returned when the provider answers
// without any message text.
const EmptyReplyPlaceholder = "No response received."

// Config holds the completion settings used for every exchange
type Config struct {
	SystemInstruction string
	Model             string
	MaxTokens         int
	Timeout           time.Duration
}

// Service implements the ConversationService interface
type Service struct {
	chatRepo   llmRepo.ChatRepository
	turnRepo   llmRepo.TurnRepository
	topicRepo  repositories.TopicRepository
	txManager  repositories.TransactionManager
	authorizer services.ResourceAuthorizer
	provider   llmSvc.CompletionProvider
	config     Config
	logger     *slog.Logger
}

// NewService creates a new conversation service
func NewService(
	chatRepo llmRepo.ChatRepository,
	turnRepo llmRepo.TurnRepository,
	topicRepo repositories.TopicRepository,
	txManager repositories.TransactionManager,
	authorizer services.ResourceAuthorizer,
	provider llmSvc.CompletionProvider,
	cfg Config,
	logger *slog.Logger,
) llmSvc.ConversationService {
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	return &Service{
		chatRepo:   chatRepo,
		turnRepo:   turnRepo,
		topicRepo:  topicRepo,
		txManager:  txManager,
		authorizer: authorizer,
		provider:   provider,
		config:     cfg,
		logger:     logger,
	}
}

// exchange is one resolved inbound message, ready to send
type exchange struct {
	body    string  // what the user turn says
	title   string  // title of the conversation to create, empty when appending
	chatID  *string // existing conversation
	topicID *string // origin topic of a new conversation
}

// HandleMessage runs one exchange
func (s *Service) HandleMessage(ctx context.Context, req *llmSvc.HandleMessageRequest) (*llmSvc.ExchangeResult, error) {
	if err := s.validateHandleMessageRequest(req); err != nil {
		return nil, domain.NewValidationError("invalid message", err)
	}

	if req.ConversationID != nil && req.Actor.IsGuest() {
		return nil, fmt.Errorf("guests cannot continue a saved conversation: %w", domain.ErrUnauthorized)
	}

	ex, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	reply, err := s.complete(ctx, ex.body)
	if err != nil {
		s.logger.Error("completion failed",
			"provider", s.provider.Name(),
			"guest", req.Actor.IsGuest(),
			"conversation_id", ex.chatID,
			"error", err,
		)
		return nil, err
	}

	if req.Actor.IsGuest() {
		result := &llmSvc.ExchangeResult{AssistantMessage: reply}
		if req.TopicID != nil {
			now := time.Now()
			result.Turns = []llmModels.Turn{
				{Speaker: llmModels.SpeakerUser, Body: ex.body, CreatedAt: now},
				{Speaker: llmModels.SpeakerAssistant, Body: reply, CreatedAt: now},
			}
		}
		return result, nil
	}

	chatID, err := s.persist(ctx, req.Actor.UserID, ex, reply)
	if err != nil {
		return nil, err
	}

	return &llmSvc.ExchangeResult{
		AssistantMessage: reply,
		ConversationID:   &chatID,
	}, nil
}

// resolve works out body and conversation identity, and checks ownership
// of an existing conversation before any upstream call is made.
func (s *Service) resolve(ctx context.Context, req *llmSvc.HandleMessageRequest) (*exchange, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" && (req.ConversationID != nil || req.TopicID == nil) {
		return nil, messageRequired("cannot be blank")
	}

	if req.ConversationID != nil {
		if err := s.authorizer.CanAccessChat(ctx, req.Actor.UserID, *req.ConversationID); err != nil {
			return nil, err
		}
		return &exchange{body: message, chatID: req.ConversationID}, nil
	}

	if req.TopicID == nil {
		return &exchange{body: message, title: truncateTitle(message)}, nil
	}

	topic, err := s.topicRepo.GetTopic(ctx, *req.TopicID)
	if err != nil {
		return nil, err
	}

	body := message
	if body == "" {
		body = strings.TrimSpace(topic.Description)
	}
	if body == "" {
		return nil, messageRequired("topic has no description; a message is required")
	}

	return &exchange{
		body:    body,
		title:   truncateTitle(topic.Title),
		topicID: &topic.ID,
	}, nil
}

func messageRequired(reason string) error {
	return domain.NewValidationError("invalid message", validation.Errors{"message": errors.New(reason)})
}

// complete sends one stateless request: no earlier turns are included.
func (s *Service) complete(ctx context.Context, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	resp, err := s.provider.Complete(ctx, &llmSvc.CompletionRequest{
		SystemInstruction: s.config.SystemInstruction,
		Message:           body,
		Model:             s.config.Model,
		MaxTokens:         s.config.MaxTokens,
	})
	if err != nil {
		return "", providers.ClassifyTransportError(err)
	}

	if resp == nil || resp.Text == nil {
		s.logger.Warn("completion returned no text", "provider", s.provider.Name())
		return EmptyReplyPlaceholder, nil
	}
	return *resp.Text, nil
}

// persist writes the conversation (when new) and both turns atomically.
func (s *Service) persist(ctx context.Context, userID string, ex *exchange, reply string) (string, error) {
	var chatID string
	created := false

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if ex.chatID != nil {
			chatID = *ex.chatID
		} else {
			chat := &llmModels.Chat{
				UserID:        userID,
				Title:         ex.title,
				OriginTopicID: ex.topicID,
			}
			if err := s.chatRepo.CreateChat(txCtx, chat); err != nil {
				return fmt.Errorf("create chat: %w", err)
			}
			chatID = chat.ID
			created = true
		}

		userTurn := &llmModels.Turn{
			ChatID:   chatID,
			AuthorID: userID,
			Speaker:  llmModels.SpeakerUser,
			Body:     ex.body,
		}
		if err := s.turnRepo.CreateTurn(txCtx, userTurn); err != nil {
			return fmt.Errorf("create user turn: %w", err)
		}

		assistantTurn := &llmModels.Turn{
			ChatID:   chatID,
			AuthorID: userID,
			Speaker:  llmModels.SpeakerAssistant,
			Body:     reply,
		}
		if err := s.turnRepo.CreateTurn(txCtx, assistantTurn); err != nil {
			return fmt.Errorf("create assistant turn: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("exchange saved",
		"chat_id", chatID,
		"user_id", userID,
		"new_chat", created,
	)
	return chatID, nil
}

// truncateTitle cuts a title to the column limit without splitting a rune
func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= config.MaxChatTitleLength {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:config.MaxChatTitleLength]))
}

func (s *Service) validateHandleMessageRequest(req *llmSvc.HandleMessageRequest) error {
	// a topic can stand in for the message
	messageRules := []validation.Rule{validation.RuneLength(0, config.MaxMessageLength)}
	if req.TopicID == nil {
		messageRules = append(messageRules, validation.Required)
	}

	return validation.ValidateStruct(req,
		validation.Field(&req.Message, messageRules...),
		validation.Field(&req.ConversationID, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&req.TopicID, validation.NilOrNotEmpty),
	)
}
