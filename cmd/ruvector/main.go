// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package main runs a RuVector node.
//
// A node owns a hypergraph of users, media and attribute entities, embeds
// them into vectors, indexes the media vectors, and serves
// recommendations over HTTP. Fine-tuning rounds are coordinated over a
// watermill bus that is either in-process or NATS.
//
// # Startup
//
//  1. Configuration: defaults, optional config.yaml, environment (koanf v2)
//  2. Logging: zerolog, bridged to slog for the supervisor
//  3. Engine: storage backends, similarity backend, message bus
//  4. Supervisor tree: data, messaging and api layers (suture v4)
//  5. Initialize, when AUTO_INITIALIZE is set; otherwise the node
//     serves trending fallbacks until POST /api/v1/initialize
//
// # Signals
//
// SIGINT and SIGTERM cancel the tree. The HTTP server drains for
// HTTP_SHUTDOWN_TIMEOUT, a final snapshot is written when snapshots are
// enabled, and the engine closes its stores.
//
// # Example
//
//	export SEED_DEMO_DATA=true
//	export AUTO_INITIALIZE=true
//	./ruvector
//	curl localhost:3000/api/v1/recommendations/u-alice?explain=true
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/ruvector/internal/api"
	"github.com/tomtom215/ruvector/internal/config"
	"github.com/tomtom215/ruvector/internal/engine"
	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/supervisor"
	"github.com/tomtom215/ruvector/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("index_backend", cfg.Index.Backend).
		Str("transport", cfg.PubSub.Transport).
		Str("docstore", cfg.Storage.DocStore).
		Str("blobstore", cfg.Storage.BlobStore).
		Int("dimensions", cfg.Embedding.Dimensions).
		Msg("Starting RuVector")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing engine")
		}
	}()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFromSettings(cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	addServices(tree, cfg, eng, newHTTPServer(cfg, eng))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	if cfg.Graph.AutoInitialize {
		go autoInitialize(ctx, eng)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("RuVector stopped")
}

func newHTTPServer(cfg *config.Config, eng *engine.Engine) *http.Server {
	handler := api.NewHandler(eng, logging.WithComponent("api"))
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromServer(cfg.Server))
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
}

func addServices(tree *supervisor.SupervisorTree, cfg *config.Config, eng *engine.Engine, server *http.Server) {
	logger := logging.Logger()

	tree.AddDataService(services.NewIndexMaintenanceService(eng, services.IndexMaintenanceConfig{
		RebuildInterval: cfg.Index.RebuildInterval,
		CompactInterval: cfg.Graph.CompactInterval,
	}, logger))
	if cfg.Snapshot.Enabled {
		tree.AddDataService(services.NewSnapshotService(eng, services.SnapshotServiceConfig{
			Interval:   cfg.Snapshot.Interval,
			OnShutdown: true,
		}, logger))
	}

	tree.AddMessagingService(services.NewMessagingService(eng, logger))
	if cfg.FineTune.Enabled {
		tree.AddMessagingService(services.NewFineTuneService(eng, services.FineTuneServiceConfig{
			Interval:     cfg.FineTune.Interval,
			RoundTimeout: cfg.FineTune.QuorumTimeout * time.Duration(max(cfg.FineTune.MaxAttempts, 1)*2),
		}, logger))
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
}

func autoInitialize(ctx context.Context, eng *engine.Engine) {
	// Worker subscriptions should exist before the node reports ready.
	select {
	case <-eng.MessagingRunning():
	case <-time.After(30 * time.Second):
		logging.Warn().Msg("Message router not running, initializing without it")
	case <-ctx.Done():
		return
	}
	res, err := eng.Initialize(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Error().Err(err).Msg("Automatic initialize failed; POST /api/v1/initialize to retry")
		}
		return
	}
	logging.Info().
		Str("restored_from", res.RestoredFrom).
		Int("demo_media", res.DemoMedia).
		Int("indexed", res.Build.Indexed).
		Msg("Node ready")
}
