package cache

import "time"

// Entry is a cached API response.
type Entry struct {
	// Data is the raw response body.
	Data []byte `json:"data"`

	// StatusCode is the HTTP status of the cached response.
	StatusCode int `json:"status_code"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired reports whether the entry is stale at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time left until expiration at now, or 0 if expired.
func (e *Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
