package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nholik/homework-sentinel/internal/config"
	"github.com/nholik/homework-sentinel/internal/healthcheck"
	"github.com/nholik/homework-sentinel/internal/logging"
	"github.com/nholik/homework-sentinel/internal/metrics"
	"github.com/nholik/homework-sentinel/internal/notify"
	"github.com/nholik/homework-sentinel/internal/practicum"
	"github.com/nholik/homework-sentinel/internal/runner"
	"github.com/nholik/homework-sentinel/internal/server"
	"github.com/rs/zerolog"
)

const (
	probeAttempts = 3
	probeTimeout  = 30 * time.Second
)

func main() {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger = logging.NewWithLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Dur("poll_interval", cfg.PollInterval).
		Bool("dry_run", cfg.DryRun).
		Msg("homework-sentinel starting")

	client, err := practicum.NewHTTPClient(cfg.Endpoint, cfg.Credentials.PracticumToken, cfg.RequestTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build status client")
	}

	notifier, err := buildNotifier(ctx, logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build notifier")
	}

	m := metrics.New()
	tracker := healthcheck.NewTracker(nil)
	server.Start(ctx, logger, server.Config{
		HealthPort:   cfg.HealthPort,
		MetricsPort:  cfg.MetricsPort,
		PollInterval: cfg.PollInterval,
		Tracker:      tracker,
		Metrics:      m,
	})

	r := runner.New(logger, cfg.PollInterval,
		runner.WithStatusClient(client),
		runner.WithNotifier(notifier),
		runner.WithMetrics(m),
		runner.WithTracker(tracker),
	)
	if err := r.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("runner stopped")
	}
	logger.Info().Msg("homework-sentinel stopped")
}

func buildNotifier(ctx context.Context, logger zerolog.Logger, cfg config.Config) (notify.Notifier, error) {
	if cfg.DryRun {
		logger.Warn().Msg("dry-run mode enabled, messages will only be logged")
		return notify.NewDryRunNotifier(logger), nil
	}

	telegram, err := notify.NewTelegramNotifier(
		logger,
		cfg.Credentials.TelegramToken,
		cfg.Credentials.TelegramChatID,
		notify.WithTelegramAPIURL(cfg.TelegramAPIURL),
	)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), probeAttempts)
	if err := notify.Probe(probeCtx, telegram, policy); err != nil {
		logger.Warn().Err(err).Msg("telegram token check failed, continuing")
	}

	return telegram, nil
}
