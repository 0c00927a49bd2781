package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rlRepo "repairchat/internal/domain/repositories/ratelimit"
	"repairchat/internal/domain/services"
)

// Sweeper deletes counters that have been idle for longer than ttl.
// ttl must be at least the rate window, otherwise eviction would reset a
// counter that still decides admissions.
type Sweeper struct {
	counterRepo rlRepo.CounterRepository
	ttl         time.Duration
	logger      *slog.Logger
}

// NewSweeper creates a counter sweeper
func NewSweeper(counterRepo rlRepo.CounterRepository, ttl time.Duration, logger *slog.Logger) services.CounterSweeper {
	return &Sweeper{
		counterRepo: counterRepo,
		ttl:         ttl,
		logger:      logger,
	}
}

// Sweep removes counters whose window started before now - ttl
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.counterRepo.DeleteCountersBefore(ctx, now.Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep guest counters: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("swept guest counters", "deleted", deleted, "ttl", s.ttl.String())
	}
	return deleted, nil
}

// Run sweeps every interval until ctx is done
func Run(ctx context.Context, sweeper services.CounterSweeper, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := sweeper.Sweep(ctx, now); err != nil {
				logger.Warn("guest counter sweep failed", "error", err)
			}
		}
	}
}
