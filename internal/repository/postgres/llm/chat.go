package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"repairchat/internal/domain"
	llmModels "repairchat/internal/domain/models/llm"
	llmRepo "repairchat/internal/domain/repositories/llm"
	"repairchat/internal/repository/postgres"
)

// PostgresChatRepository implements the ChatRepository interface using PostgreSQL
type PostgresChatRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewChatRepository creates a new PostgresChatRepository
func NewChatRepository(config *postgres.RepositoryConfig) llmRepo.ChatRepository {
	return &PostgresChatRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateChat creates a new chat
func (r *PostgresChatRepository) CreateChat(ctx context.Context, chat *llmModels.Chat) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, title, origin_topic_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, r.tables.Chats)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		chat.UserID,
		chat.Title,
		chat.OriginTopicID,
	).Scan(&chat.ID, &chat.CreatedAt)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) && chat.OriginTopicID != nil {
			return fmt.Errorf("topic %s: %w", *chat.OriginTopicID, domain.ErrNotFound)
		}
		return fmt.Errorf("create chat: %w", err)
	}

	return nil
}

const chatColumns = `id, user_id, title, origin_topic_id, created_at`

func scanChat(row pgx.Row) (*llmModels.Chat, error) {
	var chat llmModels.Chat
	if err := row.Scan(
		&chat.ID,
		&chat.UserID,
		&chat.Title,
		&chat.OriginTopicID,
		&chat.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChat retrieves a chat by ID owned by userID
func (r *PostgresChatRepository) GetChat(ctx context.Context, chatID, userID string) (*llmModels.Chat, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND user_id = $2
	`, chatColumns, r.tables.Chats)

	executor := postgres.GetExecutor(ctx, r.pool)
	chat, err := scanChat(executor.QueryRow(ctx, query, chatID, userID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return chat, nil
}

// GetChatByIDOnly retrieves a chat regardless of owner
func (r *PostgresChatRepository) GetChatByIDOnly(ctx context.Context, chatID string) (*llmModels.Chat, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, chatColumns, r.tables.Chats)

	executor := postgres.GetExecutor(ctx, r.pool)
	chat, err := scanChat(executor.QueryRow(ctx, query, chatID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}

	return chat, nil
}

// ListChatsByUser retrieves all chats for a user
func (r *PostgresChatRepository) ListChatsByUser(ctx context.Context, userID string) ([]llmModels.Chat, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, chatColumns, r.tables.Chats)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := []llmModels.Chat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, *chat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}

	return chats, nil
}

// DeleteChat deletes a chat; turns go with it through ON DELETE CASCADE
func (r *PostgresChatRepository) DeleteChat(ctx context.Context, chatID, userID string) (*llmModels.Chat, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = $1 AND user_id = $2
		RETURNING %s
	`, r.tables.Chats, chatColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	chat, err := scanChat(executor.QueryRow(ctx, query, chatID, userID))
	if err != nil {
		if postgres.IsPgNoRowsError(err) || postgres.IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("delete chat: %w", err)
	}

	return chat, nil
}
