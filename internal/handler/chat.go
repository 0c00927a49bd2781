package handler

import (
	"log/slog"
	"net/http"

	"repairchat/internal/domain/services/llm"
	"repairchat/internal/httputil"
)

// ChatHandler handles chat HTTP requests
// Handlers only communicate with services, never repositories
type ChatHandler struct {
	chatService         llm.ChatService
	conversationService llm.ConversationService
	logger              *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(
	chatService llm.ChatService,
	conversationService llm.ConversationService,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		conversationService: conversationService,
		logger:              logger,
	}
}

// sendMessageBody is the body of POST /api/chat/messages
type sendMessageBody struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// topicChatBody is the body of POST /api/topics/{id}/chat
type topicChatBody struct {
	Message string `json:"message"`
}

// SendMessage answers a message, starting or extending a conversation
// POST /api/chat/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	result, err := h.conversationService.HandleMessage(r.Context(), &llm.HandleMessageRequest{
		Actor:          httputil.GetActor(r),
		Message:        body.Message,
		ConversationID: body.ConversationID,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, "message answered", result)
}

// StartTopicChat starts a conversation about a topic. Guests get a
// preview that is not saved.
// POST /api/topics/{id}/chat
func (h *ChatHandler) StartTopicChat(w http.ResponseWriter, r *http.Request) {
	topicID, ok := pathID(w, r, "Topic")
	if !ok {
		return
	}

	var body topicChatBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	result, err := h.conversationService.HandleMessage(r.Context(), &llm.HandleMessageRequest{
		Actor:   httputil.GetActor(r),
		Message: body.Message,
		TopicID: &topicID,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	status := http.StatusCreated
	if result.ConversationID == nil {
		status = http.StatusOK
	}
	httputil.RespondSuccess(w, status, "topic conversation started", result)
}

// ListChats retrieves all chats of the caller
// GET /api/chats
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(r.Context(), httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, "chats retrieved", chats)
}

// GetChat retrieves a chat by ID
// GET /api/chats/{id}
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "Chat")
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), chatID, httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, "chat retrieved", chat)
}

// ListTurns retrieves a chat's turns in creation order
// GET /api/chats/{id}/turns
func (h *ChatHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "Chat")
	if !ok {
		return
	}

	turns, err := h.chatService.ListTurns(r.Context(), chatID, httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, "turns retrieved", turns)
}

// DeleteChat removes a chat and its turns
// DELETE /api/chats/{id}
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "Chat")
	if !ok {
		return
	}

	deleted, err := h.chatService.DeleteChat(r.Context(), chatID, httputil.GetUserID(r))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondSuccess(w, http.StatusOK, "chat deleted", deleted)
}
