// Package seed loads repair topics from YAML and writes them to a store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"repairchat/internal/config"
	"repairchat/internal/domain/models"
	"repairchat/internal/domain/repositories"
)

//go:embed data/topics.yaml
var defaultTopics []byte

type topicFile struct {
	Topics []models.Topic `yaml:"topics"`
}

// DefaultTopics returns the built-in topic catalogue
func DefaultTopics() ([]models.Topic, error) {
	return LoadTopics(bytes.NewReader(defaultTopics))
}

// LoadTopics parses and validates a topics file. Duplicate ids are rejected.
func LoadTopics(r io.Reader) ([]models.Topic, error) {
	var file topicFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	seen := make(map[string]bool, len(file.Topics))
	for i := range file.Topics {
		t := &file.Topics[i]
		if err := validation.ValidateStruct(t,
			validation.Field(&t.ID, validation.Required, validation.Length(1, 128)),
			validation.Field(&t.Title, validation.Required, validation.RuneLength(1, config.MaxChatTitleLength)),
			validation.Field(&t.Description, validation.RuneLength(0, config.MaxMessageLength)),
		); err != nil {
			return nil, fmt.Errorf("topic %d (%q): %w", i, t.ID, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("topic %q listed twice", t.ID)
		}
		seen[t.ID] = true
	}
	return file.Topics, nil
}

// SeedTopics upserts every topic, so reruns are safe.
func SeedTopics(ctx context.Context, repo repositories.TopicRepository, topics []models.Topic, logger *slog.Logger) error {
	for i := range topics {
		if err := repo.UpsertTopic(ctx, &topics[i]); err != nil {
			return fmt.Errorf("seed topic %q: %w", topics[i].ID, err)
		}
		logger.Debug("topic seeded", "id", topics[i].ID)
	}
	logger.Info("topics seeded", "count", len(topics))
	return nil
}
