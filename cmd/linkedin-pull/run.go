package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/auth"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/cache"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/client"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/config"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/logging"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/metrics"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/pull"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/query"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/ratelimit"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/sink"
)

// loadConfig reads the config file (or defaults) and applies explicitly set
// flags on top.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.Load(opts.configFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("account-ids") {
		cfg.AccountIDs = opts.accountIDs
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logging.LogLevel(opts.logLevel)
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = opts.batchSize
	}
	if flags.Changed("start-date") {
		cfg.DateMode = config.DateCustom
		cfg.StartDate = opts.startDate
	}
	if flags.Changed("end-date") {
		cfg.DateMode = config.DateCustom
		cfg.EndDate = opts.endDate
	}
	if flags.Changed("include-raw") {
		cfg.IncludeRaw = opts.includeRaw
	}
	if flags.Changed("sink") {
		cfg.Sink.Kind = sink.Kind(opts.sinkKind)
	}
	if flags.Changed("output-dir") {
		cfg.Sink.Dir = opts.outputDir
	}
	return cfg, nil
}

// runtimeEnv is everything a run needs, built from the configuration.
type runtimeEnv struct {
	puller  *pull.Puller
	auth    *auth.Provider
	request pull.Request
	redis   *redis.Client
}

func (e *runtimeEnv) Close() {
	if e.redis != nil {
		e.redis.Close()
	}
}

func setup(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*runtimeEnv, error) {
	env := &runtimeEnv{}

	req, err := cfg.Request(time.Now())
	if err != nil {
		return nil, err
	}
	env.request = req

	httpClient := &http.Client{Timeout: cfg.API.Timeout}

	if env.auth, err = auth.New(ctx, cfg.AuthConfig(), httpClient); err != nil {
		return nil, err
	}

	var responseCache *cache.Manager
	if cfg.Cache.Addr != "" {
		env.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err := env.redis.Ping(ctx).Err(); err != nil {
			env.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.Addr, err)
		}
		responseCache = cache.NewManager(env.redis, cfg.Cache.TTL)
		logger.Info().Str("addr", cfg.Cache.Addr).Dur("ttl", cfg.Cache.TTL).Msg("Response cache enabled")
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Redis:             env.redis,
		Scope:             cache.Fingerprint(cfg.Auth.ClientID + cfg.Auth.AccessToken),
	}, logger.With().Str(logging.FieldComponent, "ratelimit").Logger())

	apiClient, err := client.New(client.Config{
		HTTPClient: httpClient,
		UserAgent:  cfg.API.UserAgent,
		Retry: client.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
		},
		Limiter: limiter,
		Cache:   responseCache,
		Logger:  logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	env.puller = pull.New(apiClient, query.NewBuilder(cfg.API.BaseURL), logger)
	return env, nil
}

// prepare loads and validates the configuration and sets up logging.
func prepare(cmd *cobra.Command, opts *options, runID string) (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(time.Now()); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger := logging.WithRun(logging.Setup(cfg.LoggingConfig()), runID)
	return cfg, logger, nil
}

func runPull(cmd *cobra.Command, opts *options) error {
	runID := uuid.NewString()
	cfg, logger, err := prepare(cmd, opts, runID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	if opts.metricsAddr != "" {
		srv := serveMetrics(opts.metricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	env, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	headers, err := env.auth.Headers()
	if err != nil {
		return err
	}
	req := env.request
	req.Headers = headers

	writer, err := sink.New(ctx, cfg.SinkConfig(runID))
	if err != nil {
		return err
	}

	start := time.Now()
	logger.Info().Strs("accounts", req.AccountIDs).Int("outputs", len(req.Outputs)).Msg("Pull started")

	results, err := env.puller.Pull(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Pull failed")
		return err
	}

	names := cfg.OutputNames()
	if err := pull.Publish(ctx, writer, results, names, logger); err != nil {
		return err
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("Pull complete")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s\n", runID)
	for _, r := range req.Outputs {
		t := results[r]
		status := "ok"
		if t.IsException() {
			status = "exception"
		}
		fmt.Fprintf(out, "  %-28s %-32s rows=%-6d %s\n", r, names[r], t.Len(), status)
	}
	return nil
}

func runValidate(cmd *cobra.Command, opts *options) error {
	cfg, logger, err := prepare(cmd, opts, uuid.NewString())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	env, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer env.Close()

	headers, err := env.auth.Headers()
	if err != nil {
		return err
	}
	req := env.request
	req.Headers = headers

	accounts, err := env.puller.ValidateAccounts(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d configured accounts, %d visible\n", len(req.AccountIDs), len(accounts.IDs()))
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	return mux
}

func serveMetrics(addr string, logger zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}
