package services

import "context"

// ResourceAuthorizer checks if a user can access resources.
// Services call it before operating on a resource they were handed by ID.
type ResourceAuthorizer interface {
	// CanAccessChat returns nil when userID owns the chat,
	// domain.ErrForbidden when someone else does and
	// domain.ErrNotFound when the chat does not exist.
	CanAccessChat(ctx context.Context, userID, chatID string) error
}
