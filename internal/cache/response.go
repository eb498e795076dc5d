// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package cache

import (
	"time"

	"github.com/affectlab/resonate/internal/engine"
)

// ResponseCache caches ranked recommendation responses keyed by request
// fingerprint. The engine invalidates a user's entries when it applies
// their feedback; the TTL bounds staleness for everything else.
type ResponseCache struct {
	lru *LRU[engine.RankResponse]
}

// NewResponseCache builds a response cache from the engine cache settings.
func NewResponseCache(cfg engine.CacheConfig) *ResponseCache {
	return &ResponseCache{lru: NewLRU[engine.RankResponse](cfg.Capacity, cfg.TTL)}
}

// Get implements engine.ResponseCache.
func (c *ResponseCache) Get(key string) (engine.RankResponse, bool) {
	return c.lru.Get(key)
}

// Set implements engine.ResponseCache.
func (c *ResponseCache) Set(key string, resp engine.RankResponse) {
	c.lru.Add(key, resp)
}

// InvalidateUser drops every cached response for the user. Rank cache
// keys start with "userID|", so the prefix sweep cannot touch another
// user's entries.
func (c *ResponseCache) InvalidateUser(userID string) {
	c.lru.RemovePrefix(userID + "|")
}

// Stats reports cache hits, misses, and current size.
func (c *ResponseCache) Stats() (hits, misses int64, size int) {
	return c.lru.Stats()
}

// Compile-time interface assertion
var _ engine.ResponseCache = (*ResponseCache)(nil)

// Deduper remembers recently seen identifiers so redelivered feedback
// events are applied once. Entries age out after the TTL, bounding memory
// while covering the broker's redelivery window.
type Deduper struct {
	lru *LRU[time.Time]
}

// NewDeduper creates a deduper tracking up to capacity identifiers for ttl.
func NewDeduper(capacity int, ttl time.Duration) *Deduper {
	return &Deduper{lru: NewLRU[time.Time](capacity, ttl)}
}

// Seen reports whether id was already recorded, recording it when new.
func (d *Deduper) Seen(id string) bool {
	return !d.lru.AddIfAbsent(id, time.Now())
}

// Len returns how many identifiers are currently tracked.
func (d *Deduper) Len() int {
	return d.lru.Len()
}
