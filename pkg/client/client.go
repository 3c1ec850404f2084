// Package client provides the LinkedIn Marketing API HTTP executor with
// retries, request pacing and optional response caching.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/cache"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/ratelimit"
)

// DefaultUserAgent identifies the connector to the API.
const DefaultUserAgent = "dss-plugin-linkedin-marketing/1.0"

// Client is the API executor. It is safe for sequential use by one pull;
// headers and credentials are passed per call.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	retry      RetryConfig
	userAgent  string
	clock      clockwork.Clock
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// HTTPClient overrides the transport (default: 30s timeout client).
	HTTPClient *http.Client

	// UserAgent header sent with every request.
	UserAgent string

	// Retry policy for transport failures.
	Retry RetryConfig

	// Limiter paces requests; nil disables pacing.
	Limiter *ratelimit.Limiter

	// Cache stores successful responses; nil disables caching.
	Cache *cache.Manager

	// Clock drives retry waits (default: real clock).
	Clock clockwork.Clock

	// Logger for request events.
	Logger zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: DefaultUserAgent,
		Retry:     DefaultRetryConfig(),
		Logger:    zerolog.Nop(),
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	if cfg.Retry.Backoff < 0 {
		return nil, fmt.Errorf("backoff must not be negative (got %s)", cfg.Retry.Backoff)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		httpClient: httpClient,
		limiter:    cfg.Limiter,
		cache:      cfg.Cache,
		retry:      cfg.Retry,
		userAgent:  cfg.UserAgent,
		clock:      clock,
		logger:     cfg.Logger.With().Str("component", "api-client").Logger(),
	}, nil
}

// Get issues one GET to endpoint with params and returns the decoded body.
//
// HTTP statuses >= 400 and undecodable bodies come back as error payloads
// (see NewErrorPayload), never as errors. The returned error is non-nil only
// when every attempt failed at the transport level (*ConnectorError) or ctx
// was cancelled.
func (c *Client) Get(ctx context.Context, endpoint string, headers http.Header, params query.Params) (Response, error) {
	fullURL, err := buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Key{
		Endpoint: endpoint,
		Params:   params,
		Token:    cache.Fingerprint(headers.Get("Authorization")),
	}

	if c.cache != nil {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str(logging.FieldURL, endpoint).Msg("Cache hit")
			resp, _ := toResponse(entry.StatusCode, entry.Data)
			return resp, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str(logging.FieldURL, endpoint).Msg("Cache get error")
		}
	}

	start := c.clock.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(c.clock.Since(start).Seconds())
	}()

	var (
		status int
		body   []byte
	)

	err = retryWithBackoff(ctx, c.clock, c.logger, c.retry, endpoint, func(attempt int) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrContextCancelled, err)
			}
		}

		c.logger.Debug().
			Str(logging.FieldURL, endpoint).
			Int(logging.FieldAttempt, attempt).
			Msg("Executing API request")

		var reqErr error
		status, body, reqErr = c.do(ctx, fullURL, headers)
		if reqErr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
			}
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return &attemptError{class: ErrorClassNetwork, err: reqErr}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()

	if class := classifyStatus(status); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Error().
			Str(logging.FieldURL, endpoint).
			Int(logging.FieldStatus, status).
			Str("error_class", string(class)).
			Msg("API request error")
	}

	resp, cacheable := toResponse(status, body)

	if c.cache != nil && cacheable {
		if err := c.cache.Set(ctx, cacheKey, c.cache.NewEntry(status, body)); err != nil {
			c.logger.Warn().Err(err).Str(logging.FieldURL, endpoint).Msg("Failed to cache response")
		}
	}

	return resp, nil
}

// do performs one HTTP round trip and reads the whole body.
func (c *Client) do(ctx context.Context, fullURL string, headers http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Observe(ctx, resp.StatusCode, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to record throttle state")
		}
	}

	return resp.StatusCode, body, nil
}

func buildURL(endpoint string, params query.Params) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	values := u.Query()
	for k, v := range params {
		values.Set(k, v)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}
