package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	"repairchat/internal/domain/repositories"
)

// PostgresTopicRepository implements TopicRepository using PostgreSQL
type PostgresTopicRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewTopicRepository creates a new PostgresTopicRepository
func NewTopicRepository(config *RepositoryConfig) repositories.TopicRepository {
	return &PostgresTopicRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// GetTopic retrieves a topic by ID
func (r *PostgresTopicRepository) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	query := fmt.Sprintf(`
		SELECT id, title, description, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.Topics)

	var topic models.Topic
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, topicID).Scan(
		&topic.ID,
		&topic.Title,
		&topic.Description,
		&topic.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("topic %s: %w", topicID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}

	return &topic, nil
}

// UpsertTopic inserts a topic or replaces its title and description
func (r *PostgresTopicRepository) UpsertTopic(ctx context.Context, topic *models.Topic) error {
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, description, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, description = EXCLUDED.description
		RETURNING created_at
	`, r.tables.Topics)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		topic.ID,
		topic.Title,
		topic.Description,
		topic.CreatedAt,
	).Scan(&topic.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert topic: %w", err)
	}

	return nil
}
