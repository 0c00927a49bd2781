package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"repairchat/internal/config"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	llmModels "repairchat/internal/domain/models/llm"
	llmSvc "repairchat/internal/domain/services/llm"
	"repairchat/internal/repository/memory"
	"repairchat/internal/service/auth"
)

// MockProvider is a mock type for the CompletionProvider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Complete(ctx context.Context, req *llmSvc.CompletionRequest) (*llmSvc.CompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llmSvc.CompletionResponse), args.Error(1)
}

func (m *MockProvider) Name() string { return "mock" }

type harness struct {
	svc      llmSvc.ConversationService
	provider *MockProvider
	store    *memory.Store
	chats    interface {
		ListChatsByUser(ctx context.Context, userID string) ([]llmModels.Chat, error)
		GetChatByIDOnly(ctx context.Context, chatID string) (*llmModels.Chat, error)
	}
	turns interface {
		ListTurns(ctx context.Context, chatID string) ([]llmModels.Turn, error)
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore(logger)
	chatRepo := memory.NewChatRepository(store)
	turnRepo := memory.NewTurnRepository(store)
	topicRepo := memory.NewTopicRepository(store)
	provider := &MockProvider{}

	require.NoError(t, topicRepo.UpsertTopic(context.Background(), &models.Topic{
		ID:          "dishwasher-drain",
		Title:       "Dishwasher will not drain",
		Description: "Standing water stays in the bottom of my dishwasher after a cycle.",
	}))

	svc := NewService(
		chatRepo,
		turnRepo,
		topicRepo,
		memory.NewTransactionManager(store),
		auth.NewOwnerBasedAuthorizer(chatRepo),
		provider,
		Config{Model: "test-model", Timeout: time.Second},
		logger,
	)
	return &harness{svc: svc, provider: provider, store: store, chats: chatRepo, turns: turnRepo}
}

func reply(text string) *llmSvc.CompletionResponse {
	return &llmSvc.CompletionResponse{Text: &text, Model: "test-model"}
}

func strPtr(s string) *string { return &s }

func (h *harness) chatCount(t *testing.T, userID string) int {
	chats, err := h.chats.ListChatsByUser(context.Background(), userID)
	require.NoError(t, err)
	return len(chats)
}

func TestHandleMessage_NewConversation(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.MatchedBy(func(req *llmSvc.CompletionRequest) bool {
		return req.Message == "My dryer makes a squealing noise" &&
			req.SystemInstruction == DefaultSystemInstruction &&
			req.Model == "test-model"
	})).Return(reply("Check the idler pulley."), nil).Once()

	res, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:   models.UserActor("user-1", "10.0.0.1"),
		Message: "My dryer makes a squealing noise",
	})
	require.NoError(t, err)
	require.NotNil(t, res.ConversationID)
	assert.Equal(t, "Check the idler pulley.", res.AssistantMessage)
	assert.Empty(t, res.Turns)

	chat, err := h.chats.GetChatByIDOnly(context.Background(), *res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "My dryer makes a squealing noise", chat.Title)
	assert.Equal(t, "user-1", chat.UserID)
	assert.Nil(t, chat.OriginTopicID)

	turns, err := h.turns.ListTurns(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, llmModels.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, "My dryer makes a squealing noise", turns[0].Body)
	assert.Equal(t, llmModels.SpeakerAssistant, turns[1].Speaker)
	assert.Equal(t, "Check the idler pulley.", turns[1].Body)
	assert.Equal(t, 1, h.chatCount(t, "user-1"))
	h.provider.AssertExpectations(t)
}

func TestHandleMessage_AppendToExistingConversation(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.Anything).Return(reply("ok"), nil).Twice()

	actor := models.UserActor("user-1", "10.0.0.1")
	first, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{Actor: actor, Message: "Oven not heating"})
	require.NoError(t, err)

	second, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:          actor,
		Message:        "The bake element looks fine",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)
	assert.Equal(t, *first.ConversationID, *second.ConversationID)

	assert.Equal(t, 1, h.chatCount(t, "user-1"))
	turns, err := h.turns.ListTurns(context.Background(), *first.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "The bake element looks fine", turns[2].Body)
}

func TestHandleMessage_TopicSeeded(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.MatchedBy(func(req *llmSvc.CompletionRequest) bool {
		return strings.HasPrefix(req.Message, "Standing water")
	})).Return(reply("Clean the filter."), nil).Once()

	res, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:   models.UserActor("user-1", "10.0.0.1"),
		TopicID: strPtr("dishwasher-drain"),
	})
	require.NoError(t, err)

	chat, err := h.chats.GetChatByIDOnly(context.Background(), *res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Dishwasher will not drain", chat.Title)
	require.NotNil(t, chat.OriginTopicID)
	assert.Equal(t, "dishwasher-drain", *chat.OriginTopicID)

	turns, err := h.turns.ListTurns(context.Background(), chat.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.True(t, strings.HasPrefix(turns[0].Body, "Standing water"))
}

func TestHandleMessage_TopicWithMessageOverride(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.MatchedBy(func(req *llmSvc.CompletionRequest) bool {
		return req.Message == "It also smells"
	})).Return(reply("Clean the filter."), nil).Once()

	res, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:   models.UserActor("user-1", "10.0.0.1"),
		Message: "It also smells",
		TopicID: strPtr("dishwasher-drain"),
	})
	require.NoError(t, err)

	chat, err := h.chats.GetChatByIDOnly(context.Background(), *res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Dishwasher will not drain", chat.Title)
}

func TestHandleMessage_UnknownTopic(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:   models.GuestActor("10.0.0.2"),
		TopicID: strPtr("microwave-sparks"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	h.provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestHandleMessage_GuestPersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.Anything).Return(reply("Try resetting it."), nil).Twice()
	guest := models.GuestActor("10.0.0.2")

	res, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{Actor: guest, Message: "Fridge is warm"})
	require.NoError(t, err)
	assert.Nil(t, res.ConversationID)
	assert.Empty(t, res.Turns)

	preview, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{Actor: guest, TopicID: strPtr("dishwasher-drain")})
	require.NoError(t, err)
	assert.Nil(t, preview.ConversationID)
	require.Len(t, preview.Turns, 2)
	assert.Equal(t, llmModels.SpeakerUser, preview.Turns[0].Speaker)
	assert.Equal(t, llmModels.SpeakerAssistant, preview.Turns[1].Speaker)
	assert.Equal(t, "Try resetting it.", preview.Turns[1].Body)

	assert.Equal(t, 0, h.chatCount(t, ""))
}

func TestHandleMessage_GuestCannotContinueConversation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:          models.GuestActor("10.0.0.2"),
		Message:        "hello",
		ConversationID: strPtr("some-chat"),
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestHandleMessage_ForeignConversationForbidden(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.Anything).Return(reply("ok"), nil).Once()

	owned, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:   models.UserActor("owner", "10.0.0.1"),
		Message: "Washer shakes",
	})
	require.NoError(t, err)

	_, err = h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:          models.UserActor("intruder", "10.0.0.3"),
		Message:        "let me in",
		ConversationID: owned.ConversationID,
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:          models.UserActor("intruder", "10.0.0.3"),
		Message:        "let me in",
		ConversationID: strPtr("6c1f7f7e-0000-4000-8000-000000000000"),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// only the owner's first exchange reached the provider
	h.provider.AssertNumberOfCalls(t, "Complete", 1)
	turns, err := h.turns.ListTurns(context.Background(), *owned.ConversationID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestHandleMessage_UpstreamFailureWritesNothing(t *testing.T) {
	failures := []struct {
		name string
		err  error
		is   error
	}{
		{"rejected", &domain.UpstreamRejectedError{ProviderStatus: 429, Body: `{"error":"quota"}`}, domain.ErrUpstream},
		{"connection", &domain.UpstreamConnectionError{Cause: errors.New("dial tcp: connection refused")}, domain.ErrUpstream},
		{"unclassified", errors.New("stream reset"), domain.ErrUpstream},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.provider.On("Complete", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			_, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
				Actor:   models.UserActor("user-1", "10.0.0.1"),
				Message: "Freezer frosting over",
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			assert.Equal(t, 0, h.chatCount(t, "user-1"))
		})
	}
}

func TestHandleMessage_EmptyReplyUsesPlaceholder(t *testing.T) {
	h := newHarness(t)
	h.provider.On("Complete", mock.Anything, mock.Anything).Return(&llmSvc.CompletionResponse{Model: "test-model"}, nil).Once()

	res, err := h.svc.HandleMessage(context.Background(), &llmSvc.HandleMessageRequest{
		Actor:   models.UserActor("user-1", "10.0.0.1"),
		Message: "Ice maker stopped",
	})
	require.NoError(t, err)
	assert.Equal(t, EmptyReplyPlaceholder, res.AssistantMessage)

	turns, err := h.turns.ListTurns(context.Background(), *res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, EmptyReplyPlaceholder, turns[1].Body)
}

func TestHandleMessage_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		req  *llmSvc.HandleMessageRequest
	}{
		{"missing message", &llmSvc.HandleMessageRequest{Actor: models.UserActor("u", "ip")}},
		{"blank message", &llmSvc.HandleMessageRequest{Actor: models.UserActor("u", "ip"), Message: "   "}},
		{"too long", &llmSvc.HandleMessageRequest{Actor: models.UserActor("u", "ip"), Message: strings.Repeat("a", config.MaxMessageLength+1)}},
		{"empty conversation id", &llmSvc.HandleMessageRequest{Actor: models.UserActor("u", "ip"), Message: "hi", ConversationID: strPtr("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.HandleMessage(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, 422, verr.StatusCode())
		})
	}
	h.provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestTruncateTitle(t *testing.T) {
	long := strings.Repeat("é", config.MaxChatTitleLength+20)
	got := truncateTitle(long)
	assert.Equal(t, config.MaxChatTitleLength, len([]rune(got)))
	assert.Equal(t, "short", truncateTitle("  short  "))
}
