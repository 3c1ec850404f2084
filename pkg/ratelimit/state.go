// Package ratelimit paces API requests and honours provider throttling.
//
// Requests are spaced by a token bucket (golang.org/x/time/rate). When the
// API answers 429 the Retry-After delay is recorded as throttle state and
// every subsequent request waits it out. With a Redis client the throttle
// state is shared by all processes pulling with the same credential.
package ratelimit

import (
	"time"
)

// Redis key prefix for throttle state storage. The credential fingerprint is
// appended so separate tokens are throttled independently.
const RedisKeyThrottledUntil = "li:rate_limit:throttled_until"

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After.
const DefaultRetryAfter = 30 * time.Second

// MaxRetryAfter caps the delay taken from a Retry-After header.
const MaxRetryAfter = 10 * time.Minute

// ThrottleState records an active provider throttle.
type ThrottleState struct {
	// ThrottledUntil is when requests may resume.
	ThrottledUntil time.Time `json:"throttled_until"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsThrottled reports whether requests must still wait at now.
func (s *ThrottleState) IsThrottled(now time.Time) bool {
	return now.Before(s.ThrottledUntil)
}

// TimeUntilReset returns how long requests must wait at now, or 0.
func (s *ThrottleState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ThrottledUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
