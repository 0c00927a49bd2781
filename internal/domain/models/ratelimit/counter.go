package ratelimit

import "time"

// Key identifies a guest counter: who is calling and which route.
type Key struct {
	ClientIdentity string
	Endpoint       string
}

// Policy bounds how many requests a key may make per window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// GuestUsageCounter is the persisted usage of one key.
// WindowStartedAt moves forward on every admitted request.
type GuestUsageCounter struct {
	ClientIdentity  string    `json:"client_identity" db:"client_identity"`
	Endpoint        string    `json:"endpoint" db:"endpoint"`
	RequestCount    int       `json:"request_count" db:"request_count"`
	WindowStartedAt time.Time `json:"window_started_at" db:"window_started_at"`
}

// Key returns the counter's identity.
func (c *GuestUsageCounter) Key() Key {
	return Key{ClientIdentity: c.ClientIdentity, Endpoint: c.Endpoint}
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window lapses. Zero for authenticated callers.
	ResetAt time.Time
}

// RetryAfter is how long a rejected caller has to wait, measured from now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() {
		return 0
	}
	if wait := d.ResetAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}
