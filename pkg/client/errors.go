package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttling responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// ConnectorError reports a request that failed at the transport level on
// every attempt. It matches ErrRetryExhausted with errors.Is.
type ConnectorError struct {
	URL     string
	Attempt int
	Err     error
}

// Error implements the error interface.
func (e *ConnectorError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempt, e.Err)
}

// Unwrap returns the last transport error.
func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRetryExhausted.
func (e *ConnectorError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// classifyStatus maps an HTTP status to an error class, "" for success.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if a failure should be retried based on its class.
// Provider answers, whatever their status, are returned to the caller as
// payloads; only transport failures are retried.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassNetwork
}
