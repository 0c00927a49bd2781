package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"repairchat/internal/config"
	"repairchat/internal/domain/models"
	"repairchat/internal/repository/postgres"
	postgresRatelimit "repairchat/internal/repository/postgres/ratelimit"
	"repairchat/internal/seed"
	serviceRatelimit "repairchat/internal/service/ratelimit"
)

// env is what every subcommand needs: configuration, a logger and a pool.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repairctl",
		Short:         "Maintenance tasks for the repair chat database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newDropTablesCmd(),
		newSeedTopicsCmd(),
		newSweepCountersCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				if err := postgres.EnsureSchema(ctx, e.pool, e.tables); err != nil {
					return err
				}
				e.logger.Info("schema ready", "table_prefix", e.cfg.TablePrefix)
				return nil
			})
		},
	}
}

func newDropTablesCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "drop-tables",
		Short: "Drop every table of the current environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				if e.cfg.Environment == "prod" {
					return errors.New("refusing to drop tables in the prod environment")
				}
				if !confirmed {
					return fmt.Errorf("this drops all %q tables; rerun with --yes", e.cfg.TablePrefix)
				}
				if err := postgres.DropSchema(ctx, e.pool, e.tables); err != nil {
					return err
				}
				e.logger.Info("tables dropped", "table_prefix", e.cfg.TablePrefix)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the drop")
	return cmd
}

func newSeedTopicsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-topics",
		Short: "Upsert repair topics from a YAML file (built-in catalogue by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topics, err := loadTopics(file)
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				if err := postgres.EnsureSchema(ctx, e.pool, e.tables); err != nil {
					return err
				}
				repo := postgres.NewTopicRepository(e.repoConfig())
				return seed.SeedTopics(ctx, repo, topics, e.logger)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "topics YAML file")
	return cmd
}

func newSweepCountersCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-counters",
		Short: "Delete guest usage counters whose window started long ago",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan < config.GuestRateWindow {
				return fmt.Errorf("--older-than (%s) must be at least the rate window (%s)", olderThan, config.GuestRateWindow)
			}
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				sweeper := serviceRatelimit.NewSweeper(
					postgresRatelimit.NewCounterRepository(e.repoConfig()),
					olderThan,
					e.logger,
				)
				deleted, err := sweeper.Sweep(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d counters\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "minimum age of the counter window")
	return cmd
}

func loadTopics(path string) ([]models.Topic, error) {
	if path == "" {
		return seed.DefaultTopics()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open topics file: %w", err)
	}
	defer f.Close()
	return seed.LoadTopics(f)
}

// withEnv loads configuration, connects and runs fn.
func withEnv(ctx context.Context, fn func(ctx context.Context, e *env) error) error {
	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.UsesMemoryStore() {
		return errors.New("DATABASE_URL is required")
	}

	logger, closer, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, &env{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		tables: postgres.NewTableNames(cfg.TablePrefix),
	})
}

func (e *env) repoConfig() *postgres.RepositoryConfig {
	return &postgres.RepositoryConfig{
		Pool:   e.pool,
		Tables: e.tables,
		Logger: e.logger,
	}
}
