package httputil

import (
	"context"
	"net/http"

	"repairchat/internal/domain/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor adds the caller to the request context
func WithActor(r *http.Request, actor models.Actor) *http.Request {
	ctx := context.WithValue(r.Context(), actorKey, actor)
	return r.WithContext(ctx)
}

// GetActor retrieves the caller from context. Without authentication
// middleware it is a guest with no identity.
func GetActor(r *http.Request) models.Actor {
	actor, _ := r.Context().Value(actorKey).(models.Actor)
	return actor
}

// GetUserID retrieves the authenticated user's ID, empty for guests
func GetUserID(r *http.Request) string {
	return GetActor(r).UserID
}

// WithRequestID adds the request ID to the request context
func WithRequestID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDKey, id))
}

// GetRequestID retrieves the request ID, empty when none was assigned
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
