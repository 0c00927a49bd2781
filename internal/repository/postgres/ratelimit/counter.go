package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"repairchat/internal/domain/models/ratelimit"
	"repairchat/internal/domain/repositories"
	rlRepo "repairchat/internal/domain/repositories/ratelimit"
	"repairchat/internal/repository/postgres"
)

// ErrNoTransaction is returned when a row lock is requested outside ExecTx.
var ErrNoTransaction = errors.New("guest counter lock requires a transaction")

// PostgresCounterRepository implements CounterRepository with row-level locks
type PostgresCounterRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewCounterRepository creates a new PostgresCounterRepository
func NewCounterRepository(config *postgres.RepositoryConfig) rlRepo.CounterRepository {
	return &PostgresCounterRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// LockCounter creates the row if needed, then takes FOR UPDATE on it.
//
// The insert uses ON CONFLICT DO NOTHING so two first requests for the same
// key do not fail: the second blocks on the unique index until the first
// commits, then the SELECT ... FOR UPDATE waits for the row lock.
func (r *PostgresCounterRepository) LockCounter(ctx context.Context, key ratelimit.Key, now time.Time) (*ratelimit.GuestUsageCounter, error) {
	tx := repositories.GetTx(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (client_identity, endpoint, request_count, window_started_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (client_identity, endpoint) DO NOTHING
	`, r.tables.GuestCounters)
	if _, err := tx.Exec(ctx, insert, key.ClientIdentity, key.Endpoint, now); err != nil {
		return nil, fmt.Errorf("create guest counter: %w", err)
	}

	lock := fmt.Sprintf(`
		SELECT client_identity, endpoint, request_count, window_started_at
		FROM %s
		WHERE client_identity = $1 AND endpoint = $2
		FOR UPDATE
	`, r.tables.GuestCounters)

	var counter ratelimit.GuestUsageCounter
	err := tx.QueryRow(ctx, lock, key.ClientIdentity, key.Endpoint).Scan(
		&counter.ClientIdentity,
		&counter.Endpoint,
		&counter.RequestCount,
		&counter.WindowStartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("lock guest counter: %w", err)
	}

	return &counter, nil
}

// SaveCounter writes count and window start for a locked counter
func (r *PostgresCounterRepository) SaveCounter(ctx context.Context, counter *ratelimit.GuestUsageCounter) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET request_count = $1, window_started_at = $2
		WHERE client_identity = $3 AND endpoint = $4
	`, r.tables.GuestCounters)

	result, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query,
		counter.RequestCount,
		counter.WindowStartedAt,
		counter.ClientIdentity,
		counter.Endpoint,
	)
	if err != nil {
		return fmt.Errorf("save guest counter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("save guest counter %s/%s: row vanished", counter.ClientIdentity, counter.Endpoint)
	}

	return nil
}

// DeleteCountersBefore removes counters idle since before cutoff.
// SKIP LOCKED leaves rows that an in-flight check is holding.
func (r *PostgresCounterRepository) DeleteCountersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE (client_identity, endpoint) IN (
			SELECT client_identity, endpoint
			FROM %[1]s
			WHERE window_started_at < $1
			FOR UPDATE SKIP LOCKED
		)
	`, r.tables.GuestCounters)

	result, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale guest counters: %w", err)
	}

	return result.RowsAffected(), nil
}
