package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{LevelDisabled, zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestSetup(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		name      string
		level     LogLevel
		emitDebug bool
		emitWarn  bool
	}{
		{"debug", LevelDebug, true, true},
		{"info", LevelInfo, false, true},
		{"error", LevelError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			logger.Debug().Msg("debug line")
			logger.Warn().Msg("warn line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.emitDebug {
				t.Errorf("debug emitted = %v, want %v (output %q)", got, tt.emitDebug, out)
			}
			if got := strings.Contains(out, "warn line"); got != tt.emitWarn {
				t.Errorf("warn emitted = %v, want %v (output %q)", got, tt.emitWarn, out)
			}
		})
	}
}

func TestSetup_Pretty(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Msg("pretty message")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "pretty message") {
		t.Errorf("output missing message: %q", out)
	}
}

func TestNewLoggerAndWithRun(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := WithRun(NewLogger("pull"), "run-123")
	logger.Info().Str(FieldCategory, "CAMPAIGN").Msg("fetched")

	out := buf.String()
	for _, want := range []string{`"component":"pull"`, `"run_id":"run-123"`, `"category":"CAMPAIGN"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}
