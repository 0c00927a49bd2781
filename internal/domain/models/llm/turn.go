package llm

import (
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Valid reports whether s is a known speaker.
func (s Speaker) Valid() bool {
	return s == SpeakerUser || s == SpeakerAssistant
}

// Turn is one message of a conversation. Turns are append-only and ordered
// by creation.
type Turn struct {
	ID        string    `json:"id,omitempty" db:"id"`
	ChatID    string    `json:"chat_id,omitempty" db:"chat_id"`
	AuthorID  string    `json:"author_id,omitempty" db:"author_id"`
	Speaker   Speaker   `json:"speaker" db:"speaker"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
