// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package main is the entry point for the Resonate server.
//
// Resonate is a self-hosted recommendation engine that learns, per user,
// which content moves them toward the emotional state they asked for. It
// ranks candidate content with an online Q-learning policy, logs every
// outcome as an experience, and adjusts the policy on each piece of
// feedback.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml, and
//     environment variables (Koanf v2)
//  2. Q-table store: in-memory map or BadgerDB, per STORE_BACKEND
//  3. Experience log: DuckDB append-only analytics store
//  4. Retriever: static catalog or HTTP candidate source
//  5. WebSocket hub: live policy-update and stats push (optional)
//  6. Event processing: Watermill pipeline over NATS JetStream or
//     in-process channels, per build tag
//  7. HTTP server: REST API with Prometheus metrics
//
// Every long-running component is managed by a three-layer supervision
// tree (suture); a crashing service is restarted with backoff instead of
// taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (RESONATE_ prefix)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The defaults run a complete single-node development deployment: memory
// Q-table store, in-memory DuckDB, static demo catalog, no events.
//
// # Build Tags
//
//	go build ./cmd/server                 # events on in-process channels
//	go build -tags nats ./cmd/server      # events on NATS JetStream
//
// Without the nats tag, enabling events runs the same Watermill pipeline
// over Go channels: useful for development, no durability. With the tag,
// events ride JetStream, optionally on an embedded NATS server.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete
//   - Drains the event router, then closes transports
//   - Closes the experience log and Q-table store
//
// # Example Usage
//
// Development with defaults:
//
//	./resonate
//
// Persistent single node:
//
//	export RESONATE_STORE__BACKEND=badger
//	export RESONATE_STORE__PATH=/data/qtable
//	export RESONATE_DATABASE__PATH=/data/experiences.db
//	./resonate
//
// Events on an embedded JetStream (build with -tags nats):
//
//	export RESONATE_EVENTS__ENABLED=true
//	export RESONATE_EVENTS__NATS__EMBEDDED_SERVER=true
//	export RESONATE_EVENTS__NATS__STORE_DIR=/data/nats
//	./resonate
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

	"github.com/affectlab/resonate/internal/api"
	"github.com/affectlab/resonate/internal/cache"
	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/database"
	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/logging"
	"github.com/affectlab/resonate/internal/metrics"
	"github.com/affectlab/resonate/internal/retriever"
	"github.com/affectlab/resonate/internal/store"
	"github.com/affectlab/resonate/internal/supervisor"
	"github.com/affectlab/resonate/internal/supervisor/services"
	ws "github.com/affectlab/resonate/internal/websocket"
)

// version is stamped at build time via -ldflags "-X main.version=v1.2.3".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("store_backend", cfg.Store.Backend).
		Bool("events_enabled", cfg.Events.Enabled).
		Bool("websocket_enabled", cfg.WebSocket.Enabled).
		Msg("Starting Resonate")

	metrics.SetAppInfo(version)
	startedAt := time.Now()

	// Q-table store: the badger handle is kept separately so the GC
	// service and the final close can reach past the interface.
	qstore, badgerStore, err := openStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open Q-table store")
	}
	defer func() {
		if badgerStore != nil {
			if err := badgerStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing Q-table store")
			}
		}
	}()

	db, err := database.New(cfg.Database, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open experience log")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing experience log")
		}
	}()

	retr, err := retriever.New(cfg.Retriever, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build retriever")
	}

	// Context for graceful shutdown; canceling it winds down the tree.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility.
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	var hub *ws.Hub
	if cfg.WebSocket.Enabled {
		hub = ws.NewHub()
	}

	events, err := initEvents(ctx, cfg, hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event processing")
	}
	defer func() {
		if err := events.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event processing")
		}
	}()

	// With events on, applied updates reach websocket clients through the
	// policy relay; without them the engine broadcasts directly.
	opts := []engine.Option{}
	if cfg.Engine.Cache.Enabled {
		opts = append(opts, engine.WithResponseCache(cache.NewResponseCache(cfg.Engine.Cache)))
	}
	if events.publisher != nil {
		opts = append(opts, engine.WithPublisher(events.publisher))
	} else if hub != nil {
		opts = append(opts, engine.WithBroadcaster(hub))
	}

	eng, err := engine.New(cfg.Engine, qstore, db, retr, logging.Logger(), opts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing engine")
		}
	}()

	// The router consumes feedback.received and applies it to the policy.
	if events.router != nil {
		events.router.RegisterFeedbackHandler(events.routerSub, eng)
	}

	handler := api.NewHandler(eng, hub, cfg, version)
	handler.SetExperienceAnalytics(db)
	if events.publisher != nil {
		handler.SetFeedbackPublisher(events.publisher)
	}
	router := api.NewRouter(handler, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// === SUPERVISION TREE ASSEMBLY ===

	if badgerStore != nil {
		tree.AddDataService(services.NewStoreGCService(badgerStore, cfg.Store.GCInterval, logging.Logger()))
	}

	if hub != nil {
		tree.AddMessagingService(services.NewWebSocketHubService(hub))
	}

	// The stats service doubles as the gauge refresher, so it runs even
	// without a hub. The sink must stay a nil interface in that case.
	var sink services.StatsSink
	if hub != nil {
		sink = hub
	}
	tree.AddMessagingService(services.NewStatsBroadcastService(eng, sink, cfg.WebSocket.StatsInterval, startedAt, logging.Logger()))

	events.addServices(tree)

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished).
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

	logging.Info().Msg("Resonate stopped gracefully")
}

// openStore builds the Q-table store for the configured backend. The
// second return is non-nil only for badger, whose value-log GC and close
// need the concrete type.
func openStore(cfg *config.Config) (engine.Store, *store.BadgerStore, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendBadger:
		bs, err := store.OpenBadger(store.BadgerOptions{
			Path:       cfg.Store.Path,
			SyncWrites: cfg.Store.SyncWrites,
		}, logging.Logger())
		if err != nil {
			return nil, nil, err
		}
		return bs, bs, nil
	case config.StoreBackendMemory:
		return store.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
