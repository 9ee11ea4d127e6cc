package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nholik/homework-sentinel/internal/healthcheck"
	"github.com/nholik/homework-sentinel/internal/metrics"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// Config selects which observability endpoints are served. A zero port
// disables the endpoint; equal ports share one listener.
type Config struct {
	HealthPort   int
	MetricsPort  int
	PollInterval time.Duration
	Tracker      *healthcheck.Tracker
	Metrics      *metrics.Metrics
}

// Start launches the health and metrics HTTP servers. They shut down when ctx is done.
func Start(ctx context.Context, logger zerolog.Logger, cfg Config) {
	for _, listener := range plan(cfg) {
		startServer(ctx, logger, listener.handler, listener.port, listener.label)
	}
}

type listener struct {
	port    int
	label   string
	handler http.Handler
}

func plan(cfg Config) []listener {
	if cfg.HealthPort > 0 && cfg.HealthPort == cfg.MetricsPort {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, cfg)
		registerMetricsRoute(mux, cfg)
		return []listener{{port: cfg.HealthPort, label: "health/metrics", handler: mux}}
	}

	var listeners []listener
	if cfg.HealthPort > 0 {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, cfg)
		listeners = append(listeners, listener{port: cfg.HealthPort, label: "health", handler: mux})
	}
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, cfg)
		listeners = append(listeners, listener{port: cfg.MetricsPort, label: "metrics", handler: mux})
	}
	return listeners
}

func registerHealthRoutes(mux *http.ServeMux, cfg Config) {
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(cfg.Tracker, cfg.PollInterval))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(cfg.Tracker))
}

func registerMetricsRoute(mux *http.ServeMux, cfg Config) {
	if cfg.Metrics == nil {
		return
	}
	mux.Handle("/metrics", cfg.Metrics.Handler())
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
