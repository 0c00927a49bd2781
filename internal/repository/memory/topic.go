package memory

import (
	"context"
	"fmt"
	"time"

	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	"repairchat/internal/domain/repositories"
)

// TopicRepository implements repositories.TopicRepository
type TopicRepository struct {
	store *Store
}

// NewTopicRepository creates a topic repository over store
func NewTopicRepository(store *Store) repositories.TopicRepository {
	return &TopicRepository{store: store}
}

// GetTopic returns a copy of the topic
func (r *TopicRepository) GetTopic(ctx context.Context, topicID string) (*models.Topic, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	topic, ok := r.store.topics[topicID]
	if !ok {
		return nil, fmt.Errorf("topic %s: %w", topicID, domain.ErrNotFound)
	}
	return &topic, nil
}

// UpsertTopic stores topic, keeping the creation time of an existing one
func (r *TopicRepository) UpsertTopic(ctx context.Context, topic *models.Topic) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.topics[topic.ID]; ok {
		topic.CreatedAt = existing.CreatedAt
	} else if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}
	r.store.topics[topic.ID] = *topic
	return nil
}
