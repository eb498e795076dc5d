// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package services wraps runtime components as suture services.
//
// Each wrapper adapts one component's lifecycle to the suture.Service
// contract: Serve(ctx) blocks until the context is canceled or the
// component fails, and String() names the service in supervisor logs.
// Wrappers depend on narrow local interfaces rather than concrete
// component types, so they stay import-light and easy to test.
//
// Wrappers:
//
//   - HTTPServerService: the recommendation API server, with graceful
//     drain on shutdown
//   - WebSocketHubService: the live update hub's run loop
//   - PolicyRelayService: replays the policy-updated stream to clients
//   - EventRouterService: consumes and applies queued feedback events
//   - StatsBroadcastService: periodic stats push and gauge refresh
//   - StoreGCService: BadgerDB value-log garbage collection
//   - MessagingServerService: embedded NATS server liveness and shutdown
package services
