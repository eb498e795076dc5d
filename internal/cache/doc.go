// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package cache provides the in-memory caching structures used around the
// ranking hot path: a TTL-bounded LRU core, the ranking response cache the
// engine consults before recomputing a recommendation set, and the deduper
// that drops redelivered feedback events.
//
// Everything here is process-local. Cached responses are advisory: a miss
// or an evicted entry only costs a recomputation, never correctness, so
// nothing in this package persists or replicates.
package cache
