// Package config loads and validates the pull configuration.
//
// Configuration is read from a YAML file in which ${VAR} references are
// replaced by environment values, then completed with defaults. Validate
// reports every problem at once so a run never starts half-configured.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/auth"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/batch"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/cache"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/client"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/pagination"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/pull"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/sink"
)

// DateMode selects how the analytics window is chosen.
type DateMode string

const (
	// DateEveryday pulls analytics from the provider default start onwards.
	DateEveryday DateMode = "everyday"

	// DateCustom uses start_date and end_date.
	DateCustom DateMode = "custom"
)

// Config is the full pull configuration.
type Config struct {
	Auth       AuthConfig        `yaml:"auth"`
	AccountIDs []string          `yaml:"account_ids"`
	DateMode   DateMode          `yaml:"date_manager"`
	StartDate  string            `yaml:"start_date"`
	EndDate    string            `yaml:"end_date"`
	BatchSize  int               `yaml:"batch_size"`
	PageSize   int               `yaml:"page_size"`
	IncludeRaw bool              `yaml:"include_raw"`
	Outputs    map[string]string `yaml:"outputs"`

	API       APIConfig       `yaml:"api"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Sink      SinkConfig      `yaml:"sink"`
	Log       LogConfig       `yaml:"log"`
}

// AuthConfig holds credentials.
type AuthConfig struct {
	Method       auth.Method `yaml:"method"`
	AccessToken  string      `yaml:"access_token"`
	ClientID     string      `yaml:"client_id"`
	ClientSecret string      `yaml:"client_secret"`
	RefreshToken string      `yaml:"refresh_token"`
	TokenURL     string      `yaml:"token_url"`
}

// APIConfig locates the API.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// RetryConfig controls transport retries.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// RateLimitConfig paces requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CacheConfig enables the Redis response cache when Addr is set. The same
// Redis also shares throttle state between runs.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// SinkConfig selects where tables are written.
type SinkConfig struct {
	Kind     sink.Kind `yaml:"kind"`
	Dir      string    `yaml:"dir"`
	Bucket   string    `yaml:"bucket"`
	Prefix   string    `yaml:"prefix"`
	Region   string    `yaml:"region"`
	Endpoint string    `yaml:"endpoint"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  logging.LogLevel `yaml:"level"`
	Pretty bool             `yaml:"pretty"`
}

// ValidationError describes one invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML configuration file and applies defaults.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Auth.Method == "" {
		c.Auth.Method = auth.MethodToken
	}
	if c.DateMode == "" {
		c.DateMode = DateEveryday
	}
	if c.BatchSize == 0 {
		c.BatchSize = batch.DefaultBatchSize
	}
	if c.PageSize == 0 {
		c.PageSize = pagination.DefaultPageSize
	}
	if len(c.Outputs) == 0 {
		c.Outputs = make(map[string]string)
		for _, r := range pull.Roles() {
			c.Outputs[string(r)] = string(r)
		}
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = query.DefaultBaseURL
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = client.DefaultUserAgent
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}

	defRetry := client.DefaultRetryConfig()
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = defRetry.MaxAttempts
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = defRetry.Backoff
	}

	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 1
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = cache.DefaultTTL
	}

	if c.Sink.Kind == "" {
		c.Sink.Kind = sink.KindCSV
	}
	if c.Sink.Dir == "" && c.Sink.Kind != sink.KindS3 {
		c.Sink.Dir = "output"
	}

	if c.Log.Level == "" {
		c.Log.Level = logging.LevelInfo
	}
}

// Validate checks the configuration against now and returns every problem
// found, joined. Each joined error is a *ValidationError.
func (c *Config) Validate(now time.Time) error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if err := c.AuthConfig().Validate(); err != nil {
		fail("auth", "%v", err)
	}

	if len(c.AccountIDs) == 0 {
		fail("account_ids", "at least one account id is required")
	}
	for i, id := range c.AccountIDs {
		if _, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64); err != nil {
			fail(fmt.Sprintf("account_ids[%d]", i), "account id %q is not numeric", id)
		}
	}

	if c.BatchSize < 1 || c.BatchSize > pull.MaxBatchSize {
		fail("batch_size", "must be between 1 and %d (got %d)", pull.MaxBatchSize, c.BatchSize)
	}
	if c.PageSize < 1 {
		fail("page_size", "must be positive (got %d)", c.PageSize)
	}

	switch c.DateMode {
	case DateEveryday:
		if c.StartDate != "" {
			fail("start_date", "only used when date_manager is custom (got %q)", c.StartDate)
		}
		if c.EndDate != "" {
			fail("end_date", "only used when date_manager is custom (got %q)", c.EndDate)
		}
	case DateCustom:
		if _, err := c.DateRange(now); err != nil {
			fail("start_date", "%v", err)
		}
	default:
		fail("date_manager", "unknown mode %q (want everyday or custom)", c.DateMode)
	}

	for role := range c.Outputs {
		if _, err := pull.ParseRole(role); err != nil {
			fail("outputs", "%v", err)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		fail("retry.max_attempts", "must be >= 1 (got %d)", c.Retry.MaxAttempts)
	}
	if c.Retry.Backoff < 0 {
		fail("retry.backoff", "must not be negative (got %s)", c.Retry.Backoff)
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		fail("rate_limit.requests_per_second", "must not be negative")
	}

	switch c.Sink.Kind {
	case sink.KindCSV, sink.KindJSONL:
		if c.Sink.Dir == "" {
			fail("sink.dir", "required for %s sink", c.Sink.Kind)
		}
	case sink.KindS3:
		if c.Sink.Bucket == "" {
			fail("sink.bucket", "required for s3 sink")
		}
	default:
		fail("sink.kind", "unknown sink %q (want csv, jsonl or s3)", c.Sink.Kind)
	}

	return errors.Join(errs...)
}

// AuthConfig returns the credentials for the auth package.
func (c *Config) AuthConfig() auth.Config {
	return auth.Config{
		Method:       c.Auth.Method,
		AccessToken:  c.Auth.AccessToken,
		ClientID:     c.Auth.ClientID,
		ClientSecret: c.Auth.ClientSecret,
		RefreshToken: c.Auth.RefreshToken,
		TokenURL:     c.Auth.TokenURL,
	}
}

// DateRange returns the analytics window. Everyday mode leaves both bounds
// to the provider default. Custom mode requires start_date; end_date is
// optional.
func (c *Config) DateRange(now time.Time) (query.DateRange, error) {
	if c.DateMode != DateCustom {
		return query.DateRange{}, nil
	}

	if c.StartDate == "" {
		return query.DateRange{}, fmt.Errorf("%w: start_date is required in custom mode", query.ErrInvalidDateRange)
	}
	start, err := query.ParseDate(c.StartDate)
	if err != nil {
		return query.DateRange{}, err
	}
	r := query.DateRange{Start: &start}

	if c.EndDate != "" {
		end, err := query.ParseDate(c.EndDate)
		if err != nil {
			return query.DateRange{}, err
		}
		r.End = &end
	}

	if err := query.ValidateDateRange(r, now); err != nil {
		return query.DateRange{}, err
	}
	return r, nil
}

// Roles returns the requested output roles in dependency order.
func (c *Config) Roles() []pull.Role {
	var out []pull.Role
	for _, r := range pull.Roles() {
		if _, ok := c.Outputs[string(r)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// OutputNames maps each requested role to its dataset name.
func (c *Config) OutputNames() map[pull.Role]string {
	names := make(map[pull.Role]string, len(c.Outputs))
	for _, r := range c.Roles() {
		names[r] = c.Outputs[string(r)]
	}
	return names
}

// Request builds the pull request. The caller sets Headers.
func (c *Config) Request(now time.Time) (pull.Request, error) {
	dates, err := c.DateRange(now)
	if err != nil {
		return pull.Request{}, err
	}
	ids := make([]string, len(c.AccountIDs))
	for i, id := range c.AccountIDs {
		ids[i] = strings.TrimSpace(id)
	}
	return pull.Request{
		AccountIDs: ids,
		Dates:      dates,
		BatchSize:  c.BatchSize,
		PageSize:   c.PageSize,
		IncludeRaw: c.IncludeRaw,
		Outputs:    c.Roles(),
	}, nil
}

// SinkConfig returns the sink settings for runID.
func (c *Config) SinkConfig(runID string) sink.Config {
	return sink.Config{
		Kind:     c.Sink.Kind,
		Dir:      c.Sink.Dir,
		Bucket:   c.Sink.Bucket,
		Prefix:   c.Sink.Prefix,
		Region:   c.Sink.Region,
		Endpoint: c.Sink.Endpoint,
		RunID:    runID,
	}
}

// LoggingConfig returns the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		Output: os.Stderr,
	}
}
