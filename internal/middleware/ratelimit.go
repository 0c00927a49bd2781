package middleware

import (
	"net/http"
	"strconv"
	"time"

	"repairchat/internal/domain"
	"repairchat/internal/domain/models/ratelimit"
	"repairchat/internal/domain/services"
	"repairchat/internal/httputil"
)

// GuestLimiter gates guest-accessible routes with a GuestRateLimiter
type GuestLimiter struct {
	limiter services.GuestRateLimiter
	policy  ratelimit.Policy
	now     func() time.Time
}

// NewGuestLimiter creates a guest limiter applying policy to every route it wraps
func NewGuestLimiter(limiter services.GuestRateLimiter, policy ratelimit.Policy) *GuestLimiter {
	return &GuestLimiter{
		limiter: limiter,
		policy:  policy,
		now:     time.Now,
	}
}

// Limit wraps next so guests are counted under endpoint. A rejected or
// failed check never reaches next.
func (g *GuestLimiter) Limit(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := httputil.GetActor(r)
		if !actor.IsGuest() {
			next(w, r)
			return
		}

		now := g.now()
		key := ratelimit.Key{ClientIdentity: actor.ClientIdentity, Endpoint: endpoint}
		decision, err := g.limiter.Check(r.Context(), actor, key, now, g.policy)
		if err != nil {
			httputil.RespondDomainError(w, err)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			httputil.RespondDomainError(w, &domain.RateLimitedError{
				Limit:      g.policy.Limit,
				Window:     g.policy.Window,
				RetryAfter: decision.RetryAfter(now),
			})
			return
		}

		next(w, r)
	}
}
