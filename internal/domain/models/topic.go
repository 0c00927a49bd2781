package models

import "time"

// Topic is a repair subject managed outside this service. Conversations
// can be seeded from one.
type Topic struct {
	ID          string    `json:"id" db:"id" yaml:"id"`
	Title       string    `json:"title" db:"title" yaml:"title"`
	Description string    `json:"description" db:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" yaml:"-"`
}
