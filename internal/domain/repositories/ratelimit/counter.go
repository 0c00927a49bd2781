package ratelimit

import (
	"context"
	"time"

	"repairchat/internal/domain/models/ratelimit"
)

// CounterRepository stores guest usage counters.
type CounterRepository interface {
	// LockCounter returns the counter for key, creating it with
	// RequestCount=0 and WindowStartedAt=now when absent. The counter stays
	// locked against other LockCounter calls for the same key until the
	// surrounding transaction ends, so it must be called inside
	// TransactionManager.ExecTx. Different keys never contend.
	LockCounter(ctx context.Context, key ratelimit.Key, now time.Time) (*ratelimit.GuestUsageCounter, error)

	// SaveCounter writes the counter's mutable fields. Must run in the same
	// transaction that locked it.
	SaveCounter(ctx context.Context, counter *ratelimit.GuestUsageCounter) error

	// DeleteCountersBefore removes counters whose window started before cutoff
	// and returns how many were removed.
	DeleteCountersBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
