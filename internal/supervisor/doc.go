// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package supervisor builds the suture supervision tree that keeps the
// Resonate runtime components alive and restarts them on failure.
//
// The tree has three child supervisors, one per layer:
//
//   - data: Q-table store maintenance (BadgerDB value-log GC)
//   - messaging: websocket hub, policy update relay, feedback event
//     router, stats broadcaster, embedded messaging server
//   - api: HTTP server
//
// The layering isolates failures. A crashing relay restarts inside the
// messaging layer and never takes the HTTP server down with it; the API
// keeps answering ranking requests while the messaging layer backs off.
//
// Components are wrapped as suture services by the services subpackage.
// Supervisor lifecycle events are logged through sutureslog into the
// process-wide zerolog sink via logging.SlogHandler.
package supervisor
