package llm

import (
	"context"

	"repairchat/internal/domain/models/llm"
)

// TurnRepository provides append-only access to conversation turns
type TurnRepository interface {
	// CreateTurn appends a turn and fills in its ID and CreatedAt
	// Returns domain.ErrNotFound if the chat does not exist
	CreateTurn(ctx context.Context, turn *llm.Turn) error

	// ListTurns returns all turns of a chat in creation order
	ListTurns(ctx context.Context, chatID string) ([]llm.Turn, error)
}
