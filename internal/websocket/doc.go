// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package websocket pushes live learning updates to connected clients.
//
// A single Hub fans applied policy updates, learning-progress snapshots,
// and engine stats out to every connected client. Each client is serviced
// by a read/write pump pair with ping keepalives. The hub runs under the
// supervision tree through RunWithContext and closes every client on
// context cancellation.
//
// Single-process installs wire the hub straight into the recommendation
// engine as its Broadcaster. Installs that enable the event transport run
// a PolicyRelay instead, which replays the policy-updated stream into the
// hub so every replica sees updates applied by its peers.
package websocket
