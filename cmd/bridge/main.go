// bridge runs the market-data feed bridge: it resolves the target contract
// from the instrument catalog, exchanges authorization codes for bearer
// tokens, and relays the live feed to browser clients over websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rgupta/feedbridge/internal/api"
	"github.com/rgupta/feedbridge/internal/audit"
	"github.com/rgupta/feedbridge/internal/catalog"
	"github.com/rgupta/feedbridge/internal/config"
	"github.com/rgupta/feedbridge/internal/database"
	"github.com/rgupta/feedbridge/internal/metrics"
	"github.com/rgupta/feedbridge/internal/relay"
	"github.com/rgupta/feedbridge/internal/scheduler"
	"github.com/rgupta/feedbridge/internal/server"
	"github.com/rgupta/feedbridge/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/bridge.local.yaml", "path to config file")
	flag.Parse()

	// Local .env files supply credentials during development; absence is fine.
	godotenv.Load()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting bridge",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"broker_url", cfg.Broker.BaseURL,
		"underlying", cfg.Catalog.Underlying,
		"target_month", cfg.Catalog.TargetMonth,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Broker API client
	broker := api.NewClient(cfg.Broker.BaseURL, api.Credentials{
		ClientID:     cfg.Broker.ClientID,
		ClientSecret: cfg.Broker.ClientSecret,
		RedirectURI:  cfg.Broker.RedirectURI,
	},
		api.WithTimeout(cfg.Broker.Timeout),
		api.WithLogger(logger),
	)

	// Catalog resolver; warm the cache in the background. A failed warm-up
	// is retried lazily by the first caller.
	resolver := catalog.NewResolver(catalog.Config{
		URL:         cfg.Catalog.URL,
		Underlying:  cfg.Catalog.Underlying,
		TargetMonth: cfg.Catalog.TargetMonth,
		Exchange:    cfg.Catalog.Exchange,
		Timeout:     cfg.Catalog.Timeout,
	}, broker, logger)

	go func() {
		if _, err := resolver.Resolve(ctx); err != nil {
			logger.Warn("catalog warm-up failed", "error", err)
		}
	}()

	// Optional session-audit writer
	var recorder relay.Recorder
	var auditWriter *audit.SessionWriter
	if cfg.AuditEnabled() {
		pool, err := database.Connect(ctx, cfg.Database.Audit)
		if err != nil {
			logger.Error("failed to connect audit database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		auditWriter = audit.NewSessionWriter(audit.DefaultConfig(), pool, logger)
		if err := auditWriter.Start(ctx); err != nil {
			logger.Error("failed to start audit writer", "error", err)
			os.Exit(1)
		}
		recorder = auditWriter
		logger.Info("session auditing enabled", "host", cfg.Database.Audit.Host)
	}

	// Relay hub
	hub := relay.NewHub(relay.Config{
		HandshakeTimeout: cfg.Relay.HandshakeTimeout,
		WriteTimeout:     cfg.Relay.WriteTimeout,
	}, broker, nil, recorder, logger)

	// Signal scheduler publishing to the hub
	sched := scheduler.New(scheduler.Config{
		Interval: cfg.Scheduler.Interval,
		Buffer:   cfg.Scheduler.Buffer,
	}, nil, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	go hub.ConsumeSignals(ctx, sched.Signals())

	// Metrics endpoint
	metricsSrv := metrics.Serve(fmt.Sprintf(":%d", cfg.Metrics.Port), cfg.Metrics.Path)
	logger.Info("metrics listening", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)

	// Client-facing HTTP server
	srv := server.New(cfg.Server, cfg.Relay, broker, resolver, hub, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
		cancel()
	}

	// Graceful shutdown, reverse dependency order.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	hub.Close()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop", "error", err)
	}
	if auditWriter != nil {
		if err := auditWriter.Stop(shutdownCtx); err != nil {
			logger.Warn("audit writer stop", "error", err)
		}
	}
	metricsSrv.Shutdown(shutdownCtx)

	logger.Info("bridge stopped")
}
