// Package logging configures zerolog for the pull pipeline.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
)

// Field names shared by every component.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldCategory  = "category"
	FieldURL       = "url"
	FieldChunk     = "chunk"
	FieldAttempt   = "attempt"
	FieldStatus    = "status"
	FieldElements  = "elements"
	FieldOutput    = "output"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a LogLevel to zerolog.Level, defaulting to info.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str(FieldComponent, component).Logger()
}

// WithRun tags logger with a pull run identifier.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str(FieldRunID, runID).Logger()
}

// Log Level Guidelines:
//
// Debug: request flow
//   - each HTTP attempt (url, attempt)
//   - cache hits and misses
//   - page and chunk progress (chunk, elements)
//
// Info: pull lifecycle
//   - account validation result
//   - each category fetched (category, elements)
//   - each dataset written (output)
//
// Warn: degraded but continuing
//   - retries after transport errors
//   - 429 throttling
//   - empty chunks skipped
//   - missing elements on a later page
//
// Error: the pull stops or a category ends as an exception table
//   - retry exhaustion
//   - HTTP status >= 400 payloads
//   - sink write failures
