// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/sentinel/internal/api"
	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
	"github.com/tomtom215/sentinel/internal/sink"
	"github.com/tomtom215/sentinel/internal/supervisor"
	"github.com/tomtom215/sentinel/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Sentinel stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring of every component
func run(cfg *config.Config) error {
	startTime := time.Now()
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("state_backend", cfg.State.Backend).
		Str("store_dialect", cfg.Store.Dialect).
		Bool("ingest", cfg.Ingest.Enabled).
		Msg("Starting Sentinel")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS is configured with a wildcard origin; set CORS_ORIGINS to explicit origins")
	}
	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := openState(ctx, cfg)
	if err != nil {
		return err
	}
	defer state.close()

	rel, err := openRelStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rel.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing relationship store")
		}
	}()

	sinks, err := sink.Build(cfg.Sinks, state.redis)
	if err != nil {
		return fmt.Errorf("build alert sinks: %w", err)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing alert sinks")
		}
	}()

	scorer, err := detection.NewScorer(cfg.Scorer.Name, cfg.Scorer.Seed)
	if err != nil {
		return fmt.Errorf("create scorer: %w", err)
	}

	engine, err := detection.NewEngine(detection.Dependencies{
		State:         state.store,
		Relationships: rel,
		Alerts:        rel,
		Sink:          sinks,
		Scorer:        scorer,
	}, cfg.Detection)
	if err != nil {
		return fmt.Errorf("create detection engine: %w", err)
	}
	logging.Info().
		Int("detectors", len(engine.Detectors())).
		Str("scorer", cfg.Scorer.Name).
		Str("failure_policy", string(cfg.Detection.FailurePolicy)).
		Msg("Detection engine initialized")

	handler := api.NewHandler(engine, rel,
		api.Dependency{Name: "state_store", Pinger: state.store, Breaker: state.store.Breaker()},
		api.Dependency{Name: "relationship_store", Pinger: rel, Breaker: rel.Breaker()},
	)
	router := api.NewRouter(handler, middlewareConfig(cfg))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if state.badger != nil {
		tree.AddDataService(state.badger)
	}
	tree.AddMessagingService(services.NewDetectionService(engine))
	if cfg.Ingest.Enabled {
		consumer, err := ingest.NewConsumer(cfg.Ingest, engine)
		if err != nil {
			return fmt.Errorf("create ingest consumer: %w", err)
		}
		tree.AddMessagingService(consumer)
		logging.Info().
			Strs("brokers", cfg.Ingest.Brokers).
			Str("topic", cfg.Ingest.Topic).
			Str("group", cfg.Ingest.Group).
			Msg("Kafka ingest consumer added to supervisor tree")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	go reportUptime(ctx, startTime)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case treeErr = <-errCh:
	}
	for err := range errCh {
		if treeErr == nil {
			treeErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	m := engine.Metrics()
	logging.Info().
		Int64("events", m.EventsProcessed).
		Int64("alerts", m.AlertsGenerated).
		Dur("uptime", time.Since(startTime)).
		Msg("Detection engine totals at shutdown")

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return treeErr
	}
	return nil
}

func middlewareConfig(cfg *config.Config) *api.ChiMiddlewareConfig {
	mc := api.DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mc.RateLimitRequests = cfg.Server.RateLimitReqs
	mc.RateLimitWindow = cfg.Server.RateLimitWindow
	mc.RateLimitDisabled = cfg.Server.RateLimitDisabled
	mc.MaxBodyBytes = cfg.Server.MaxBodyBytes
	return mc
}

func reportUptime(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.AppUptime.Set(time.Since(start).Seconds())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
