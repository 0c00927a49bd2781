package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"repairchat/internal/config"
	"repairchat/internal/domain/repositories"
	llmRepo "repairchat/internal/domain/repositories/llm"
	rlRepo "repairchat/internal/domain/repositories/ratelimit"
	"repairchat/internal/repository/memory"
	"repairchat/internal/repository/postgres"
	postgresLLM "repairchat/internal/repository/postgres/llm"
	postgresRatelimit "repairchat/internal/repository/postgres/ratelimit"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is the set of repositories over one store
type Backend struct {
	Chats     llmRepo.ChatRepository
	Turns     llmRepo.TurnRepository
	Topics    repositories.TopicRepository
	Counters  rlRepo.CounterRepository
	TxManager repositories.TransactionManager

	// Pool is nil for the in-memory store
	Pool *pgxpool.Pool
	// Tables is nil for the in-memory store
	Tables *postgres.TableNames
}

// Open selects the store from cfg: Postgres when DATABASE_URL is set,
// memory otherwise. Postgres tables are created when missing.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn("DATABASE_URL not set, using in-memory store (data is lost on restart)")
		store := memory.NewStore(logger)
		return &Backend{
			Chats:     memory.NewChatRepository(store),
			Turns:     memory.NewTurnRepository(store),
			Topics:    memory.NewTopicRepository(store),
			Counters:  memory.NewCounterRepository(store),
			TxManager: memory.NewTransactionManager(store),
		}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		pool.Close()
		return nil, fmt.Errorf("prepare database: %w", err)
	}

	logger.Info("database connected",
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
		"table_prefix", cfg.TablePrefix,
	)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	return &Backend{
		Chats:     postgresLLM.NewChatRepository(repoConfig),
		Turns:     postgresLLM.NewTurnRepository(repoConfig),
		Topics:    postgres.NewTopicRepository(repoConfig),
		Counters:  postgresRatelimit.NewCounterRepository(repoConfig),
		TxManager: postgres.NewTransactionManager(pool, logger),
		Pool:      pool,
		Tables:    tables,
	}, nil
}

// Pinger returns the health probe for the store, nil for memory.
func (b *Backend) Pinger() Pinger {
	if b.Pool == nil {
		return nil
	}
	return b.Pool
}

// Close releases the connection pool, if any.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}
