package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcomes recorded on CacheLookups.
const (
	lookupHit     = "hit"
	lookupAbsent  = "absent"
	lookupExpired = "expired"
)

var (
	// CacheLookups counts reads of cached LinkedIn API pages by outcome.
	// An expired entry is deleted on read and reported separately from a key
	// that was never stored.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkedin_cache_lookups_total",
			Help: "Reads of cached LinkedIn API response pages by outcome (hit, absent, expired)",
		},
		[]string{"result"},
	)

	// CacheStoredBytes counts encoded entry bytes written to Redis. Redis
	// evicts by TTL, so this is write volume rather than resident size.
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkedin_cache_stored_bytes_total",
			Help: "Encoded bytes of LinkedIn API response pages written to Redis",
		},
	)

	// CacheErrors counts failed cache operations. A stored entry that no
	// longer decodes is reported as "decode" and treated as absent by callers.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkedin_cache_errors_total",
			Help: "Failed LinkedIn response cache operations by operation (get, decode, set, delete)",
		},
		[]string{"operation"},
	)
)
