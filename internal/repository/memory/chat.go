package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models/llm"
	llmRepo "repairchat/internal/domain/repositories/llm"
)

// ChatRepository implements llm.ChatRepository
type ChatRepository struct {
	store *Store
}

// NewChatRepository creates a chat repository over store
func NewChatRepository(store *Store) llmRepo.ChatRepository {
	return &ChatRepository{store: store}
}

// CreateChat assigns an ID and creation time. Inside a transaction the chat
// is visible to other callers only after commit.
func (r *ChatRepository) CreateChat(ctx context.Context, chat *llm.Chat) error {
	if chat.OriginTopicID != nil {
		r.store.mu.Lock()
		_, ok := r.store.topics[*chat.OriginTopicID]
		r.store.mu.Unlock()
		if !ok {
			return fmt.Errorf("origin topic %s: %w", *chat.OriginTopicID, domain.ErrNotFound)
		}
	}

	chat.ID = uuid.NewString()
	chat.CreatedAt = time.Now()
	stored := *chat

	insert := func(s *Store) {
		s.chats[stored.ID] = stored
	}

	if tx := getTx(ctx); tx != nil {
		tx.pendingChats[stored.ID] = true
		tx.ops = append(tx.ops, insert)
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	insert(r.store)
	return nil
}

// GetChat returns the chat only if userID owns it
func (r *ChatRepository) GetChat(ctx context.Context, chatID, userID string) (*llm.Chat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	chat, ok := r.store.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return &chat, nil
}

// GetChatByIDOnly returns the chat regardless of owner
func (r *ChatRepository) GetChatByIDOnly(ctx context.Context, chatID string) (*llm.Chat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	chat, ok := r.store.chats[chatID]
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return &chat, nil
}

// ListChatsByUser returns the user's chats, newest first
func (r *ChatRepository) ListChatsByUser(ctx context.Context, userID string) ([]llm.Chat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	chats := []llm.Chat{}
	for _, chat := range r.store.chats {
		if chat.UserID == userID {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

// DeleteChat removes the chat and its turns
func (r *ChatRepository) DeleteChat(ctx context.Context, chatID, userID string) (*llm.Chat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	chat, ok := r.store.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	delete(r.store.chats, chatID)
	delete(r.store.turns, chatID)
	return &chat, nil
}
