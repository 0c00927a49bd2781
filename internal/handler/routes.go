package handler

import (
	"net/http"

	"repairchat/internal/middleware"
)

// Guest-limited endpoint keys. Counters are kept per key, so renaming one
// resets every guest's usage of it.
const (
	EndpointChatMessage = "chat.message"
	EndpointTopicChat   = "chat.topic"
)

// Routes bundles the handlers served by the API
type Routes struct {
	Chat   *ChatHandler
	Health *HealthHandler
	Models *ModelsHandler
	Guests *middleware.GuestLimiter
}

// Register mounts every route on mux (Go 1.22+ enhanced patterns)
func (rt *Routes) Register(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", rt.Health.HealthCheck)

	// Model catalogue
	mux.HandleFunc("GET /api/models", rt.Models.ListModels)

	// Message routes (open to guests, rate limited for them)
	mux.HandleFunc("POST /api/chat/messages", rt.Guests.Limit(EndpointChatMessage, rt.Chat.SendMessage))
	mux.HandleFunc("POST /api/topics/{id}/chat", rt.Guests.Limit(EndpointTopicChat, rt.Chat.StartTopicChat))

	// Saved conversations (signed-in users only)
	mux.HandleFunc("GET /api/chats", middleware.RequireUser(rt.Chat.ListChats))
	mux.HandleFunc("GET /api/chats/{id}", middleware.RequireUser(rt.Chat.GetChat))
	mux.HandleFunc("GET /api/chats/{id}/turns", middleware.RequireUser(rt.Chat.ListTurns))
	mux.HandleFunc("DELETE /api/chats/{id}", middleware.RequireUser(rt.Chat.DeleteChat))
}
