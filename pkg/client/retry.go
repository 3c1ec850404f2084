package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// Backoff is the fixed wait between attempts.
	Backoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
	}
}

// attemptError marks a failed attempt with its class so the retry loop can
// decide whether to go again.
type attemptError struct {
	class ErrorClass
	err   error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// retryWithBackoff runs fn until it succeeds, fails with a non-retryable
// class, or MaxAttempts is reached. Waits between attempts respect ctx.
func retryWithBackoff(ctx context.Context, clock clockwork.Clock, logger zerolog.Logger, cfg RetryConfig, url string, fn func(attempt int) error) error {
	var last *attemptError

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str(logging.FieldURL, url).
					Int(logging.FieldAttempt, attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		ae, ok := err.(*attemptError)
		if !ok || !shouldRetry(ae.class) {
			return err
		}
		last = ae

		if attempt >= cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(ae.class)).Inc()
		logger.Warn().
			Err(ae.err).
			Str(logging.FieldURL, url).
			Int(logging.FieldAttempt, attempt).
			Dur("backoff", cfg.Backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str(logging.FieldURL, url).
				Int(logging.FieldAttempt, attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-clock.After(cfg.Backoff):
		}
	}

	retryExhaustedTotal.WithLabelValues(string(last.class)).Inc()
	logger.Error().
		Err(last.err).
		Str(logging.FieldURL, url).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return &ConnectorError{URL: url, Attempt: cfg.MaxAttempts, Err: last.err}
}
