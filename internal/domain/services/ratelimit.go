package services

import (
	"context"
	"time"

	"repairchat/internal/domain/models"
	"repairchat/internal/domain/models/ratelimit"
)

// GuestRateLimiter admits or rejects unauthenticated requests.
type GuestRateLimiter interface {
	// Check decides whether actor may call key.Endpoint at now under policy.
	// Authenticated actors are always admitted without touching storage.
	// A storage failure is returned as *domain.StorageUnavailableError and
	// carries no decision.
	Check(ctx context.Context, actor models.Actor, key ratelimit.Key, now time.Time, policy ratelimit.Policy) (ratelimit.Decision, error)
}

// CounterSweeper evicts guest counters whose window lapsed long ago.
type CounterSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}
