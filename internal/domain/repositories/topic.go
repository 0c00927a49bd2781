package repositories

import (
	"context"

	"repairchat/internal/domain/models"
)

// TopicRepository reads topics. Topic management lives outside this
// service; Upsert exists for seeding.
type TopicRepository interface {
	// GetTopic returns domain.ErrNotFound if the topic does not exist
	GetTopic(ctx context.Context, topicID string) (*models.Topic, error)

	// UpsertTopic inserts or replaces a topic by ID
	UpsertTopic(ctx context.Context, topic *models.Topic) error
}
