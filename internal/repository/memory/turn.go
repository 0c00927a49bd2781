package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models/llm"
	llmRepo "repairchat/internal/domain/repositories/llm"
)

// TurnRepository implements llm.TurnRepository
type TurnRepository struct {
	store *Store
}

// NewTurnRepository creates a turn repository over store
func NewTurnRepository(store *Store) llmRepo.TurnRepository {
	return &TurnRepository{store: store}
}

// CreateTurn appends a turn. The chat may be one created earlier in the
// same transaction.
func (r *TurnRepository) CreateTurn(ctx context.Context, turn *llm.Turn) error {
	if !turn.Speaker.Valid() {
		return fmt.Errorf("invalid speaker %q", turn.Speaker)
	}

	tx := getTx(ctx)

	r.store.mu.Lock()
	_, exists := r.store.chats[turn.ChatID]
	r.store.mu.Unlock()
	if !exists && (tx == nil || !tx.pendingChats[turn.ChatID]) {
		return fmt.Errorf("chat %s: %w", turn.ChatID, domain.ErrNotFound)
	}

	turn.ID = uuid.NewString()
	turn.CreatedAt = time.Now()
	stored := *turn

	appendTurn := func(s *Store) {
		s.turns[stored.ChatID] = append(s.turns[stored.ChatID], stored)
	}

	if tx != nil {
		// the chat may be deleted before commit, as a foreign key would catch
		tx.checks = append(tx.checks, func(s *Store) error {
			if _, ok := s.chats[stored.ChatID]; !ok && !tx.pendingChats[stored.ChatID] {
				return fmt.Errorf("chat %s: %w", stored.ChatID, domain.ErrNotFound)
			}
			return nil
		})
		tx.ops = append(tx.ops, appendTurn)
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	appendTurn(r.store)
	return nil
}

// ListTurns returns a copy of the chat's turns in creation order
func (r *TurnRepository) ListTurns(ctx context.Context, chatID string) ([]llm.Turn, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	turns := make([]llm.Turn, len(r.store.turns[chatID]))
	copy(turns, r.store.turns[chatID])
	return turns, nil
}
