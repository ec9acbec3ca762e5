package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"flux-exporter/internal/collector"
	"flux-exporter/internal/config"
	"flux-exporter/internal/flux"
	"flux-exporter/internal/registry"
)

type Agent struct {
	cfg         config.Config
	logger      *slog.Logger
	closeClient func() error
	collector   *collector.Collector
	registry    *registry.Registry
	gatherer    prometheus.Gatherer
	health      *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	client, closeClient, err := flux.NewClientFromConfig(cfg, tlsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("scheduler client: %w", err)
	}
	return newWithClient(cfg, logger, client, closeClient), nil
}

func newWithClient(cfg config.Config, logger *slog.Logger, client flux.Client, closeClient func() error) *Agent {
	if closeClient == nil {
		closeClient = func() error { return nil }
	}
	health := NewHealthStatus()
	reg := registry.New()
	wrapped := &healthClient{client: client, health: health}

	return &Agent{
		cfg:         cfg,
		logger:      logger,
		closeClient: closeClient,
		collector:   collector.NewCollector(logger, wrapped, reg, cfg.QueryTimeout),
		registry:    reg,
		gatherer:    registry.NewPrometheusRegistry(reg),
		health:      health,
	}
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting flux-exporter",
		"version", a.cfg.ExporterVersion,
		"scheduler_mode", a.cfg.SchedulerMode,
		"listen_addr", a.cfg.ListenAddr,
		"poll_interval", a.cfg.PollInterval,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Exporter stopped on its own (listener failure or parent ctx canceled).
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	a.shutdown()

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("flux-exporter stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}
