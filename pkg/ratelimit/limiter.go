package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
)

var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkedin_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a request slot",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkedin_rate_limit_throttles_total",
		Help: "Total number of 429 responses received",
	})
)

// Config holds limiter settings.
type Config struct {
	// RequestsPerSecond spaces requests; <= 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the token bucket size (min 1).
	Burst int

	// Redis optionally shares throttle state across processes.
	Redis *redis.Client

	// Scope distinguishes credentials sharing one Redis.
	Scope string
}

// Limiter gates outgoing requests.
type Limiter struct {
	bucket *rate.Limiter
	redis  *redis.Client
	key    string
	clock  clockwork.Clock
	logger zerolog.Logger

	mu    sync.Mutex
	local ThrottleState
}

// NewLimiter creates a limiter from cfg.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	key := RedisKeyThrottledUntil
	if cfg.Scope != "" {
		key += ":" + cfg.Scope
	}

	return &Limiter{
		bucket: rate.NewLimiter(limit, burst),
		redis:  cfg.Redis,
		key:    key,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
}

// WithClock replaces the clock used for throttle waits.
func (l *Limiter) WithClock(clock clockwork.Clock) *Limiter {
	l.clock = clock
	return l
}

// State returns the current throttle state.
func (l *Limiter) State(ctx context.Context) (*ThrottleState, error) {
	if l.redis == nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		s := l.local
		return &s, nil
	}

	unix, err := l.redis.Get(ctx, l.key).Int64()
	if errors.Is(err, redis.Nil) {
		return &ThrottleState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}
	return &ThrottleState{ThrottledUntil: time.UnixMilli(unix)}, nil
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	start := l.clock.Now()
	defer func() {
		rateLimitWaitSeconds.Observe(l.clock.Since(start).Seconds())
	}()

	state, err := l.State(ctx)
	if err != nil {
		// Throttle state is advisory; pacing still applies.
		l.logger.Warn().Err(err).Msg("Throttle state unavailable")
	} else if wait := state.TimeUntilReset(l.clock.Now()); wait > 0 {
		l.logger.Warn().
			Dur("wait", wait).
			Time("throttled_until", state.ThrottledUntil).
			Msg("API throttled - delaying request")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}

	return l.bucket.Wait(ctx)
}

// Observe inspects a response and records throttling on 429.
func (l *Limiter) Observe(ctx context.Context, status int, headers http.Header) error {
	if status != http.StatusTooManyRequests {
		return nil
	}

	rateLimitThrottlesTotal.Inc()

	now := l.clock.Now()
	state := ThrottleState{
		ThrottledUntil: now.Add(parseRetryAfter(headers.Get("Retry-After"), now)),
		LastUpdate:     now,
	}

	l.logger.Warn().
		Int(logging.FieldStatus, status).
		Time("throttled_until", state.ThrottledUntil).
		Msg("API rate limit hit")

	if l.redis == nil {
		l.mu.Lock()
		if state.ThrottledUntil.After(l.local.ThrottledUntil) {
			l.local = state
		}
		l.mu.Unlock()
		return nil
	}

	ttl := state.ThrottledUntil.Sub(now)
	if err := l.redis.Set(ctx, l.key, state.ThrottledUntil.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}
	return nil
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return DefaultRetryAfter
	}

	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(now)
	} else {
		return DefaultRetryAfter
	}

	if d <= 0 {
		return DefaultRetryAfter
	}
	if d > MaxRetryAfter {
		return MaxRetryAfter
	}
	return d
}
