// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package store

import (
	"context"
	"sync"

	"github.com/affectlab/resonate/internal/engine"
)

// MemoryStore is an in-memory implementation of engine.Store. Suitable for
// development and testing. For production, use BadgerStore so learned
// Q-values survive restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	cells    map[string]map[string]engine.QEntry
	epsilons map[string]float64
	count    int
}

// NewMemory creates a new in-memory Q-table store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		cells:    make(map[string]map[string]engine.QEntry),
		epsilons: make(map[string]float64),
	}
}

// Entry returns the stored cell for (user, state, content), or found=false
// when it has never been written.
func (s *MemoryStore) Entry(ctx context.Context, userID string, key engine.StateKey, contentID string) (engine.QEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cells[pairKey(userID, key)][contentID]
	return entry, ok, nil
}

// Entries batch-reads cells for one (user, state) pair. Missing cells are
// absent from the returned map.
func (s *MemoryStore) Entries(ctx context.Context, userID string, key engine.StateKey, contentIDs []string) (map[string]engine.QEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]engine.QEntry, len(contentIDs))
	row := s.cells[pairKey(userID, key)]
	for _, contentID := range contentIDs {
		if entry, ok := row[contentID]; ok {
			out[contentID] = entry
		}
	}
	return out, nil
}

// Update applies fn to the current cell under the store lock and stores the
// result, so same-cell updates are serialized.
func (s *MemoryStore) Update(ctx context.Context, userID string, key engine.StateKey, contentID string, fn func(engine.QEntry) engine.QEntry) (engine.QEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pk := pairKey(userID, key)
	row, ok := s.cells[pk]
	if !ok {
		row = make(map[string]engine.QEntry)
		s.cells[pk] = row
	}

	cur, existed := row[contentID]
	next := fn(cur)
	row[contentID] = next
	if !existed {
		s.count++
	}
	return next, nil
}

// MaxQ returns the highest stored Q-value for (user, state), or found=false
// when the pair has no cells.
func (s *MemoryStore) MaxQ(ctx context.Context, userID string, key engine.StateKey) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best float64
	found := false
	for _, entry := range s.cells[pairKey(userID, key)] {
		if !found || entry.QValue > best {
			best = entry.QValue
			found = true
		}
	}
	return best, found, nil
}

// Epsilon returns the user's exploration rate, or found=false when the user
// has none yet.
func (s *MemoryStore) Epsilon(ctx context.Context, userID string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eps, ok := s.epsilons[userID]
	return eps, ok, nil
}

// UpdateEpsilon applies fn to the user's current exploration rate under the
// store lock and stores the result.
func (s *MemoryStore) UpdateEpsilon(ctx context.Context, userID string, fn func(eps float64, found bool) float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, found := s.epsilons[userID]
	next := fn(cur, found)
	s.epsilons[userID] = next
	return next, nil
}

// EntryCount returns the number of stored Q-table cells across all users.
func (s *MemoryStore) EntryCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.count, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func pairKey(userID string, key engine.StateKey) string {
	return userID + "|" + string(key)
}

// Compile-time interface assertion
var _ engine.Store = (*MemoryStore)(nil)
