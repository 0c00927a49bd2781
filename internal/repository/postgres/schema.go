package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func schemaStatements(t *TableNames) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			title       VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Topics),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id         TEXT NOT NULL,
			title           VARCHAR(255) NOT NULL,
			origin_topic_id TEXT REFERENCES %s(id) ON DELETE SET NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Chats, t.Topics),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_created_idx ON %s (user_id, created_at DESC)`, t.Chats, t.Chats),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			chat_id    UUID NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			author_id  TEXT NOT NULL,
			speaker    TEXT NOT NULL CHECK (speaker IN ('user', 'assistant')),
			body       TEXT NOT NULL,
			seq        BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Turns, t.Chats),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_chat_seq_idx ON %s (chat_id, seq)`, t.Turns, t.Turns),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			client_identity   VARCHAR(255) NOT NULL,
			endpoint          VARCHAR(255) NOT NULL,
			request_count     INTEGER NOT NULL DEFAULT 0 CHECK (request_count >= 0),
			window_started_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (client_identity, endpoint)
		)`, t.GuestCounters),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_window_idx ON %s (window_started_at)`, t.GuestCounters, t.GuestCounters),
	}
}

// EnsureSchema creates the service's tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, stmt := range schemaStatements(tables) {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes the service's tables. Used by repairctl in dev/test.
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.Turns, tables.Chats, tables.Topics, tables.GuestCounters} {
		if _, err := pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, table)); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
