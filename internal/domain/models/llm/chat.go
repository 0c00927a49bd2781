package llm

import (
	"time"
)

// Chat is a titled conversation owned by the user who started it.
// It is never modified after creation; only deletion is allowed.
type Chat struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Title         string    `json:"title" db:"title"`
	OriginTopicID *string   `json:"origin_topic_id,omitempty" db:"origin_topic_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
