// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package store provides the Q-table stores backing the recommendation
// engine: a BadgerDB implementation for durable per-user learning state and
// an in-memory implementation for development and tests. Both satisfy
// engine.Store and surface failures as engine.StorageFault.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/engine"
)

// Key prefixes for BadgerDB storage
const (
	qKeyPrefix       = "q:"
	epsilonKeyPrefix = "eps:"
)

// badgerGCRatio is the value-log rewrite threshold passed to BadgerDB GC.
const badgerGCRatio = 0.5

// BadgerOptions configures the on-disk Q-table store.
type BadgerOptions struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// SyncWrites fsyncs every commit. Slower, but a crash cannot lose
	// acknowledged Q-updates.
	SyncWrites bool

	// InMemory keeps the whole database in RAM. Intended for tests.
	InMemory bool
}

// BadgerStore implements engine.Store on BadgerDB. Q-table cells are stored
// under "q:{user}:{state}:{content}" and per-user exploration rates under
// "eps:{user}", both as JSON values.
type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

// OpenBadger opens (or creates) the BadgerDB database backing the store.
func OpenBadger(opts BadgerOptions, logger zerolog.Logger) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites

	// Suppress BadgerDB's internal logger.
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logger.Info().
		Str("path", opts.Path).
		Bool("sync_writes", opts.SyncWrites).
		Bool("in_memory", opts.InMemory).
		Msg("Q-table store opened")

	return &BadgerStore{db: db, logger: logger}, nil
}

// Entry returns the stored cell for (user, state, content), or found=false
// when it has never been written.
func (s *BadgerStore) Entry(ctx context.Context, userID string, key engine.StateKey, contentID string) (engine.QEntry, bool, error) {
	var entry engine.QEntry
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(qKey(userID, key, contentID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get cell: %w", err)
		}

		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return engine.QEntry{}, false, engine.NewStorageFault("read q entry", err)
	}

	return entry, found, nil
}

// Entries batch-reads cells for one (user, state) pair. Missing cells are
// absent from the returned map.
func (s *BadgerStore) Entries(ctx context.Context, userID string, key engine.StateKey, contentIDs []string) (map[string]engine.QEntry, error) {
	out := make(map[string]engine.QEntry, len(contentIDs))

	err := s.db.View(func(txn *badger.Txn) error {
		for _, contentID := range contentIDs {
			item, err := txn.Get(qKey(userID, key, contentID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("get cell %q: %w", contentID, err)
			}

			var entry engine.QEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode cell %q: %w", contentID, err)
			}
			out[contentID] = entry
		}
		return nil
	})
	if err != nil {
		return nil, engine.NewStorageFault("batch read q entries", err)
	}

	return out, nil
}

// Update applies fn to the current cell inside a read-modify-write
// transaction. Badger detects write conflicts at commit, so concurrent
// updates to the same cell retry until they commit in some serial order.
func (s *BadgerStore) Update(ctx context.Context, userID string, key engine.StateKey, contentID string, fn func(engine.QEntry) engine.QEntry) (engine.QEntry, error) {
	k := qKey(userID, key, contentID)

	for {
		var next engine.QEntry

		err := s.db.Update(func(txn *badger.Txn) error {
			var cur engine.QEntry

			item, err := txn.Get(k)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				// First write for this cell; fn sees the zero entry.
			case err != nil:
				return fmt.Errorf("get cell: %w", err)
			default:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &cur)
				}); err != nil {
					return fmt.Errorf("decode cell: %w", err)
				}
			}

			next = fn(cur)

			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode cell: %w", err)
			}
			return txn.Set(k, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			if ctx.Err() != nil {
				return engine.QEntry{}, engine.NewStorageFault("update q entry", ctx.Err())
			}
			continue
		}
		if err != nil {
			return engine.QEntry{}, engine.NewStorageFault("update q entry", err)
		}

		return next, nil
	}
}

// MaxQ scans the (user, state) prefix and returns the highest stored
// Q-value, or found=false when the pair has no cells.
func (s *BadgerStore) MaxQ(ctx context.Context, userID string, key engine.StateKey) (float64, bool, error) {
	var best float64
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := qPrefix(userID, key)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry engine.QEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode cell: %w", err)
			}

			if !found || entry.QValue > best {
				best = entry.QValue
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, engine.NewStorageFault("scan state max q", err)
	}

	return best, found, nil
}

// Epsilon returns the user's persisted exploration rate, or found=false when
// the user has none yet.
func (s *BadgerStore) Epsilon(ctx context.Context, userID string) (float64, bool, error) {
	var eps float64
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(epsilonKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get epsilon: %w", err)
		}

		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &eps)
		})
	})
	if err != nil {
		return 0, false, engine.NewStorageFault("read epsilon", err)
	}

	return eps, found, nil
}

// UpdateEpsilon applies fn to the user's current exploration rate and stores
// the result, with the same conflict-retry discipline as Update.
func (s *BadgerStore) UpdateEpsilon(ctx context.Context, userID string, fn func(eps float64, found bool) float64) (float64, error) {
	k := epsilonKey(userID)

	for {
		var next float64

		err := s.db.Update(func(txn *badger.Txn) error {
			var cur float64
			found := false

			item, err := txn.Get(k)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
			case err != nil:
				return fmt.Errorf("get epsilon: %w", err)
			default:
				found = true
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &cur)
				}); err != nil {
					return fmt.Errorf("decode epsilon: %w", err)
				}
			}

			next = fn(cur, found)

			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode epsilon: %w", err)
			}
			return txn.Set(k, data)
		})
		if errors.Is(err, badger.ErrConflict) {
			if ctx.Err() != nil {
				return 0, engine.NewStorageFault("update epsilon", ctx.Err())
			}
			continue
		}
		if err != nil {
			return 0, engine.NewStorageFault("update epsilon", err)
		}

		return next, nil
	}
}

// EntryCount returns the number of stored Q-table cells across all users.
func (s *BadgerStore) EntryCount(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(qKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, engine.NewStorageFault("count q entries", err)
	}

	return count, nil
}

// RunGC reclaims space from BadgerDB's value log. Call periodically; the
// supervisor wires this to a maintenance ticker. No-op for in-memory stores.
func (s *BadgerStore) RunGC() error {
	if s.db.Opts().InMemory {
		return nil
	}

	for {
		err := s.db.RunValueLogGC(badgerGCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// Close releases the underlying BadgerDB database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return engine.NewStorageFault("close store", err)
	}
	s.logger.Debug().Msg("Q-table store closed")
	return nil
}

func qKey(userID string, key engine.StateKey, contentID string) []byte {
	return []byte(qKeyPrefix + userID + ":" + string(key) + ":" + contentID)
}

func qPrefix(userID string, key engine.StateKey) []byte {
	return []byte(qKeyPrefix + userID + ":" + string(key) + ":")
}

func epsilonKey(userID string) []byte {
	return []byte(epsilonKeyPrefix + userID)
}

// Compile-time interface assertion
var _ engine.Store = (*BadgerStore)(nil)
