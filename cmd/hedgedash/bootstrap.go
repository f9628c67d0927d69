package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"hedgedash/internal/fees"
	"hedgedash/internal/fees/feesobs"
	"hedgedash/internal/hedge"
	"hedgedash/internal/hedge/hedgeobs"
	"hedgedash/internal/history"
	"hedgedash/internal/interfaces"
	"hedgedash/internal/logger"
	"hedgedash/internal/mailbox"
	"hedgedash/internal/metrics"
	"hedgedash/internal/navmail"
	"hedgedash/internal/navmail/navobs"
	"hedgedash/internal/store"
)

// initializeSystem loads .env and sets up logging and tracing. Logs go to
// stderr so reports written to stdout stay clean.
func initializeSystem() error {
	_ = godotenv.Load()

	cfg := logger.LoadConfigFromEnv()
	cfg.Output = os.Stderr
	if err := logger.InitWithConfig(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig reads --config. A missing default config file is not an error.
func loadConfig(ctx context.Context) (*store.Config, error) {
	path := configPath
	if _, err := os.Stat(path); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		logger.Info(ctx, "No config file, using defaults", "path", path)
		path = ""
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// services is everything the commands need, built once from config.
type services struct {
	cfg     *store.Config
	metrics *metrics.Registry
	hedge   interfaces.HedgeCalculator
	nav     interfaces.NavExtractor
	history *history.Log
}

func buildServices(ctx context.Context, cfg *store.Config) *services {
	s := &services{cfg: cfg, metrics: metrics.New()}
	if cfg.History.Dir != "" {
		s.history = history.New(cfg.History.Dir, cfg.Location())
	}
	s.hedge = initializeHedge(ctx, cfg, s.metrics, s.history)
	s.nav = initializeHoldings(ctx, cfg, s.metrics, s.history)
	return s
}

// initializeFeeSource picks the configured fee table source and wraps it with
// observability and retries.
func initializeFeeSource(ctx context.Context, cfg *store.Config, m *metrics.Registry) interfaces.FeeSource {
	var source interfaces.FeeSource
	switch cfg.Fees.Source {
	case store.FeeSourceAKTools:
		source = fees.NewAKToolsSource(cfg.Fees.AKToolsURL, cfg.Fees.Timeout)
	default:
		source = fees.NewOpenCTPSource(cfg.Fees.URL, cfg.Fees.Timeout)
	}
	logger.Info(ctx, "Fee source configured",
		"source", source.Name(),
		"max_attempts", cfg.Fees.MaxAttempts,
		"families", cfg.Fees.Families)

	return fees.NewFetcher(feesobs.Wrap(source, m), cfg.Fees.MaxAttempts, cfg.Fees.RetryInterval, cfg.Fees.BreakerCooldown)
}

func initializeHedge(ctx context.Context, cfg *store.Config, m *metrics.Registry, h *history.Log) interfaces.HedgeCalculator {
	calc := hedge.NewCalculator(initializeFeeSource(ctx, cfg, m), hedge.OptionsFromConfig(cfg))

	var out interfaces.HedgeCalculator = hedgeobs.Wrap(calc, m)
	if h != nil {
		out = history.RecordHedge(out, h)
	}
	return out
}

func initializeHoldings(ctx context.Context, cfg *store.Config, m *metrics.Registry, h *history.Log) interfaces.NavExtractor {
	if cfg.Dashboard.PasswordSHA512 == "" {
		logger.Warn(ctx, "No dashboard password digest configured - holdings refresh will be refused")
	}
	if cfg.Mail.Server == "" {
		logger.Warn(ctx, "No mail server configured - holdings refresh will fail")
	}

	dialer := mailbox.NewIMAPDialer(cfg.Mail.Mailbox, cfg.Mail.Timeout)
	holdings := navmail.NewHoldings(cfg, dialer, navmail.NewScanner(cfg, m))

	var out interfaces.NavExtractor = navobs.Wrap(holdings, m)
	if h != nil {
		out = history.RecordNav(out, h)
	}
	return out
}

// compressOldHistory gzips history files past the retention window.
func compressOldHistory(ctx context.Context, s *services) {
	if s.history == nil {
		return
	}
	op := logger.StartOperation(ctx, "history.compress", "retention_days", s.cfg.History.RetentionDays)
	n, err := s.history.CompressOlder(s.cfg.History.RetentionDays)
	if err != nil {
		op.EndWithError(err)
		return
	}
	op.End("count", n)
}
