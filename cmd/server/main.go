// Quakewatch - Seismic Event Ingestion and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/quakewatch

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/quakewatch/internal/alert"
	"github.com/tomtom215/quakewatch/internal/api"
	"github.com/tomtom215/quakewatch/internal/cache"
	"github.com/tomtom215/quakewatch/internal/config"
	"github.com/tomtom215/quakewatch/internal/database"
	"github.com/tomtom215/quakewatch/internal/feed"
	"github.com/tomtom215/quakewatch/internal/ingest"
	"github.com/tomtom215/quakewatch/internal/logging"
	"github.com/tomtom215/quakewatch/internal/push"
	"github.com/tomtom215/quakewatch/internal/stats"
	"github.com/tomtom215/quakewatch/internal/supervisor"
	"github.com/tomtom215/quakewatch/internal/supervisor/services"
	syncpkg "github.com/tomtom215/quakewatch/internal/sync"
	ws "github.com/tomtom215/quakewatch/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
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
	})

	logging.Info().
		Str("feed_url", cfg.Feed.BaseURL).
		Str("db_path", cfg.Database.Path).
		Float64("min_magnitude", cfg.Alert.MinMagnitude).
		Int("cache_capacity", cfg.Cache.Capacity).
		Msg("Starting Quakewatch")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	eventCache, err := cache.Open(cache.Config{
		Dir:       cfg.Cache.Dir,
		Capacity:  cfg.Cache.Capacity,
		DetailTTL: cfg.Cache.DetailTTL,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event cache")
	}
	defer func() {
		if err := eventCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event cache")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The store fallback in the events handler covers a failed warm-up.
	if loaded, err := warmRecencyWindow(ctx, db, eventCache); err != nil {
		logging.Warn().Err(err).Int("loaded", loaded).Msg("Recency window warm-up incomplete")
	} else if loaded > 0 {
		logging.Info().Int("events", loaded).Msg("Recency window loaded from store")
	}

	// A broker that is down at startup is not fatal: paho keeps retrying
	// and deliveries fail (and are retried) until it connects.
	pushClient := push.NewClient(&cfg.MQTT)
	if err := pushClient.Connect(ctx); err != nil {
		logging.Warn().Err(err).Msg("MQTT broker unavailable, will keep retrying")
	} else {
		logging.Info().Str("broker", cfg.MQTT.BrokerURL).Msg("Connected to MQTT broker")
	}
	defer pushClient.Disconnect()

	wsHub := ws.NewHub()

	worker := alert.NewWorker(db, pushClient, eventCache)
	tracker := alert.NewTracker()

	queue, err := initAlertQueue(ctx, cfg, worker, tracker)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize alert queue")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.NATS.CloseTimeout)
		defer closeCancel()
		queue.Close(closeCtx)
	}()

	dispatcher := alert.NewDispatcher(cfg.Alert.MinMagnitude, wsHub, queue.Queue(), db)

	syncManager := syncpkg.NewManager(syncpkg.Config{
		Fetcher:             feed.NewClient(&cfg.Feed),
		Processor:           ingest.NewEngine(db, eventCache),
		Dispatcher:          dispatcher,
		Status:              wsHub,
		Push:                pushClient,
		Failures:            tracker,
		ManualFetchInterval: cfg.Server.ManualFetchInterval,
	})

	sched, err := initScheduler(&cfg.Scheduler, syncManager)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to register fetch jobs")
	}

	aggregator := stats.NewAggregator(stats.Sources{
		Store:        db,
		Cache:        eventCache,
		Push:         pushClient,
		Subscribers:  wsHub,
		Fetch:        syncManager,
		Abandoned:    tracker,
		MinMagnitude: cfg.Alert.MinMagnitude,
	})

	handler := api.NewHandler(api.Deps{
		Store:  db,
		Cache:  eventCache,
		Stats:  aggregator,
		Fetch:  syncManager,
		Alerts: dispatcher,
		Hub:    wsHub,
		Config: cfg,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Server)))

	// Manual fetches run a full cycle inside the request.
	writeTimeout := cfg.Server.Timeout
	if minWrite := cfg.Scheduler.JobTimeout + 5*time.Second; writeTimeout < minWrite {
		writeTimeout = minWrite
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddDataService(services.NewCacheGCService(eventCache, cfg.Cache.GCInterval))

	tree.AddMessagingService(services.NewMessageRouterService(queue.router, cfg.NATS.CloseTimeout))
	tree.AddMessagingService(push.NewHeartbeatService(pushClient, cfg.MQTT.HeartbeatInterval))
	tree.AddMessagingService(sched)
	logging.Info().Strs("jobs", sched.Jobs()).Msg("Pipeline services added to supervisor tree")

	tree.AddAPIService(services.NewWebSocketHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
