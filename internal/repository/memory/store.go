// Package memory keeps every repository in process memory. It backs local
// development and tests and offers the same locking guarantees as the
// Postgres repositories: a guest counter locked inside ExecTx stays locked
// until the transaction ends, and writes made inside a transaction become
// visible only on commit.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"repairchat/internal/domain/models"
	"repairchat/internal/domain/models/llm"
	"repairchat/internal/domain/models/ratelimit"
)

// Store holds all tables. Use the New*Repository constructors to get the
// repository views over it.
type Store struct {
	mu       sync.Mutex
	topics   map[string]models.Topic
	chats    map[string]llm.Chat
	turns    map[string][]llm.Turn // chat ID -> turns in creation order
	counters map[ratelimit.Key]ratelimit.GuestUsageCounter

	locksMu  sync.Mutex
	keyLocks map[ratelimit.Key]*keyLock

	logger *slog.Logger
}

// NewStore creates an empty store
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		topics:   map[string]models.Topic{},
		chats:    map[string]llm.Chat{},
		turns:    map[string][]llm.Turn{},
		counters: map[ratelimit.Key]ratelimit.GuestUsageCounter{},
		keyLocks: map[ratelimit.Key]*keyLock{},
		logger:   logger,
	}
}

// keyLock is the lock of one counter key. A full channel means locked.
// refs counts holders and waiters; the entry is dropped when it reaches zero.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// acquireRef returns the lock entry for key, registering the caller.
func (s *Store) acquireRef(key ratelimit.Key) *keyLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.keyLocks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.keyLocks[key] = l
	}
	l.refs++
	return l
}

// releaseRef unregisters the caller and forgets unused entries.
func (s *Store) releaseRef(key ratelimit.Key, l *keyLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.keyLocks, key)
	}
}

// lockKey blocks until key is free or ctx is done.
func (s *Store) lockKey(ctx context.Context, key ratelimit.Key) (*keyLock, error) {
	l := s.acquireRef(key)
	select {
	case l.ch <- struct{}{}:
		return l, nil
	case <-ctx.Done():
		s.releaseRef(key, l)
		return nil, ctx.Err()
	}
}

// tryLockKey takes key only if nobody holds it.
func (s *Store) tryLockKey(key ratelimit.Key) (*keyLock, bool) {
	l := s.acquireRef(key)
	select {
	case l.ch <- struct{}{}:
		return l, true
	default:
		s.releaseRef(key, l)
		return nil, false
	}
}

func (s *Store) unlockKey(key ratelimit.Key, l *keyLock) {
	<-l.ch
	s.releaseRef(key, l)
}

// lockedKeys reports how many key locks are tracked.
func (s *Store) lockedKeys() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.keyLocks)
}
