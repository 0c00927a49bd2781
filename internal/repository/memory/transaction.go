package memory

import (
	"context"
	"fmt"

	"repairchat/internal/domain/models/ratelimit"
	"repairchat/internal/domain/repositories"
)

type txContextKey struct{}

// memTx collects the writes of one ExecTx call.
type memTx struct {
	held         map[ratelimit.Key]*keyLock
	counters     map[ratelimit.Key]ratelimit.GuestUsageCounter
	pendingChats map[string]bool
	checks       []func(s *Store) error // all must pass under Store.mu before ops run
	ops          []func(s *Store)       // applied in order under Store.mu on commit
}

func newMemTx() *memTx {
	return &memTx{
		held:         map[ratelimit.Key]*keyLock{},
		counters:     map[ratelimit.Key]ratelimit.GuestUsageCounter{},
		pendingChats: map[string]bool{},
	}
}

func getTx(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txContextKey{}).(*memTx)
	return tx
}

// TransactionManager implements repositories.TransactionManager for the store
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager over store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx runs fn, applies its staged writes if it returns nil and releases
// every key lock it took. A nested call joins the outer transaction.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}

	tx := newMemTx()
	defer func() {
		for key, l := range tx.held {
			tm.store.unlockKey(key, l)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		tm.store.logger.Debug("transaction rolled back", "error", err)
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	if err := tm.store.commit(tx); err != nil {
		tm.store.logger.Debug("transaction rolled back at commit", "error", err)
		return err
	}
	return nil
}

// commit applies tx atomically, or nothing when a check fails.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, check := range tx.checks {
		if err := check(s); err != nil {
			return err
		}
	}

	for key, c := range tx.counters {
		s.counters[key] = c
	}
	for _, op := range tx.ops {
		op(s)
	}
	return nil
}
