package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"repairchat/internal/domain"
	llmModels "repairchat/internal/domain/models/llm"
	llmRepo "repairchat/internal/domain/repositories/llm"
	"repairchat/internal/repository/postgres"
)

// PostgresTurnRepository implements the TurnRepository interface using PostgreSQL
type PostgresTurnRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewTurnRepository creates a new PostgresTurnRepository
func NewTurnRepository(config *postgres.RepositoryConfig) llmRepo.TurnRepository {
	return &PostgresTurnRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// CreateTurn appends a turn to its chat
func (r *PostgresTurnRepository) CreateTurn(ctx context.Context, turn *llmModels.Turn) error {
	if !turn.Speaker.Valid() {
		return fmt.Errorf("%w: unknown speaker %q", domain.ErrValidation, turn.Speaker)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (chat_id, author_id, speaker, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		turn.ChatID,
		turn.AuthorID,
		string(turn.Speaker),
		turn.Body,
	).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		if postgres.IsPgForeignKeyError(err) || postgres.IsPgInvalidTextError(err) {
			return fmt.Errorf("chat %s: %w", turn.ChatID, domain.ErrNotFound)
		}
		return fmt.Errorf("create turn: %w", err)
	}

	return nil
}

// ListTurns returns a chat's turns in insertion order
func (r *PostgresTurnRepository) ListTurns(ctx context.Context, chatID string) ([]llmModels.Turn, error) {
	// seq breaks ties between turns written in the same transaction
	query := fmt.Sprintf(`
		SELECT id, chat_id, author_id, speaker, body, created_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY seq ASC
	`, r.tables.Turns)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []llmModels.Turn{}
	for rows.Next() {
		var turn llmModels.Turn
		var speaker string
		if err := rows.Scan(
			&turn.ID,
			&turn.ChatID,
			&turn.AuthorID,
			&speaker,
			&turn.Body,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Speaker = llmModels.Speaker(speaker)
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}
