package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repairchat/internal/domain/models/ratelimit"
	rlRepo "repairchat/internal/domain/repositories/ratelimit"
)

// ErrNoTransaction is returned when a counter is locked outside ExecTx.
var ErrNoTransaction = errors.New("guest counter lock requires a transaction")

// CounterRepository implements ratelimit.CounterRepository with one lock
// per key, so different keys never wait on each other.
type CounterRepository struct {
	store *Store
}

// NewCounterRepository creates a counter repository over store
func NewCounterRepository(store *Store) rlRepo.CounterRepository {
	return &CounterRepository{store: store}
}

// LockCounter takes the key lock for the rest of the transaction and
// returns the committed counter, or a fresh one when none exists.
func (r *CounterRepository) LockCounter(ctx context.Context, key ratelimit.Key, now time.Time) (*ratelimit.GuestUsageCounter, error) {
	tx := getTx(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}

	if staged, ok := tx.counters[key]; ok {
		return &staged, nil
	}

	if _, held := tx.held[key]; !held {
		l, err := r.store.lockKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lock guest counter: %w", err)
		}
		tx.held[key] = l
	}

	r.store.mu.Lock()
	counter, ok := r.store.counters[key]
	r.store.mu.Unlock()

	if !ok {
		counter = ratelimit.GuestUsageCounter{
			ClientIdentity:  key.ClientIdentity,
			Endpoint:        key.Endpoint,
			RequestCount:    0,
			WindowStartedAt: now,
		}
		// created rows survive a rejected check, as with INSERT before FOR UPDATE
		tx.counters[key] = counter
	}
	return &counter, nil
}

// SaveCounter stages the counter until commit
func (r *CounterRepository) SaveCounter(ctx context.Context, counter *ratelimit.GuestUsageCounter) error {
	tx := getTx(ctx)
	if tx == nil {
		return ErrNoTransaction
	}
	key := counter.Key()
	if _, held := tx.held[key]; !held {
		return fmt.Errorf("save guest counter %s/%s: not locked", key.ClientIdentity, key.Endpoint)
	}
	tx.counters[key] = *counter
	return nil
}

// DeleteCountersBefore removes stale counters, skipping keys that an
// in-flight check currently holds.
func (r *CounterRepository) DeleteCountersBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	var stale []ratelimit.Key
	for key, c := range r.store.counters {
		if c.WindowStartedAt.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	r.store.mu.Unlock()

	var deleted int64
	for _, key := range stale {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		l, ok := r.store.tryLockKey(key)
		if !ok {
			continue
		}
		r.store.mu.Lock()
		// re-check: the counter may have been refreshed since the scan
		if c, exists := r.store.counters[key]; exists && c.WindowStartedAt.Before(cutoff) {
			delete(r.store.counters, key)
			deleted++
		}
		r.store.mu.Unlock()
		r.store.unlockKey(key, l)
	}
	return deleted, nil
}
