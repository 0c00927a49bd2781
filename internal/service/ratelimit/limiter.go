package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"repairchat/internal/domain"
	"repairchat/internal/domain/models"
	rlModels "repairchat/internal/domain/models/ratelimit"
	"repairchat/internal/domain/repositories"
	rlRepo "repairchat/internal/domain/repositories/ratelimit"
	"repairchat/internal/domain/services"
)

// Limiter implements GuestRateLimiter on top of a locking counter store.
type Limiter struct {
	counterRepo rlRepo.CounterRepository
	txManager   repositories.TransactionManager
	logger      *slog.Logger
}

// NewLimiter creates a new guest rate limiter
func NewLimiter(
	counterRepo rlRepo.CounterRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) services.GuestRateLimiter {
	return &Limiter{
		counterRepo: counterRepo,
		txManager:   txManager,
		logger:      logger,
	}
}

// Check locks the counter for key, decides and writes back in one transaction.
func (l *Limiter) Check(ctx context.Context, actor models.Actor, key rlModels.Key, now time.Time, policy rlModels.Policy) (rlModels.Decision, error) {
	if !actor.IsGuest() {
		return rlModels.Decision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit}, nil
	}
	if policy.Limit <= 0 || policy.Window <= 0 {
		return rlModels.Decision{}, fmt.Errorf("invalid rate limit policy %+v", policy)
	}

	var decision rlModels.Decision
	err := l.txManager.ExecTx(ctx, func(ctx context.Context) error {
		counter, err := l.counterRepo.LockCounter(ctx, key, now)
		if err != nil {
			return err
		}

		var changed bool
		decision, changed = decide(counter, now, policy)
		if !changed {
			return nil
		}
		return l.counterRepo.SaveCounter(ctx, counter)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return rlModels.Decision{}, err
		}
		l.logger.Error("guest rate limit check failed",
			"client_identity", key.ClientIdentity,
			"endpoint", key.Endpoint,
			"error", err,
		)
		return rlModels.Decision{}, &domain.StorageUnavailableError{Cause: err}
	}

	if !decision.Allowed {
		l.logger.Info("guest request rejected",
			"client_identity", key.ClientIdentity,
			"endpoint", key.Endpoint,
			"limit", policy.Limit,
		)
	}
	return decision, nil
}

// decide applies one request to counter. It mutates counter only when the
// request is admitted and reports whether it did.
func decide(counter *rlModels.GuestUsageCounter, now time.Time, policy rlModels.Policy) (rlModels.Decision, bool) {
	switch {
	case now.Sub(counter.WindowStartedAt) >= policy.Window:
		counter.RequestCount = 1
		counter.WindowStartedAt = now
	case counter.RequestCount >= policy.Limit:
		return rlModels.Decision{
			Allowed:   false,
			Limit:     policy.Limit,
			Remaining: 0,
			ResetAt:   counter.WindowStartedAt.Add(policy.Window),
		}, false
	default:
		counter.RequestCount++
		// the window restarts at every admitted request
		counter.WindowStartedAt = now
	}

	return rlModels.Decision{
		Allowed:   true,
		Limit:     policy.Limit,
		Remaining: policy.Limit - counter.RequestCount,
		ResetAt:   counter.WindowStartedAt.Add(policy.Window),
	}, true
}
