package config

const (
	// MaxChatTitleLength is the maximum length for chat titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255). Titles derived from
	// long messages are truncated to this length.
	MaxChatTitleLength = 255

	// MaxMessageLength is the maximum length of a single user message.
	MaxMessageLength = 4000

	// MaxClientIdentityLength bounds the guest identity stored on counter rows.
	MaxClientIdentityLength = 255
)
