// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// defaultGCInterval paces value-log GC when no interval is configured.
const defaultGCInterval = 10 * time.Minute

// StoreGC is the maintenance surface of the persistent Q-table store.
// Satisfied by *store.BadgerStore.
type StoreGC interface {
	RunGC() error
}

// StoreGCService periodically reclaims space from the Q-table store's
// value log. BadgerDB only rewrites log files outside write
// transactions, so the work runs on a timer instead of inline with
// updates. The first run waits a full interval; a store that just
// opened has nothing to reclaim.
type StoreGCService struct {
	store    StoreGC
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewStoreGCService wraps store. A non-positive interval falls back to
// 10m.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStoreGCService(store StoreGC, interval time.Duration, logger zerolog.Logger) *StoreGCService {
	if interval <= 0 {
		interval = defaultGCInterval
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("service", "store-gc").Logger(),
		name:     "store-gc",
	}
}

// Serve implements suture.Service. GC failures are logged and retried
// on the next tick; they never restart the service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("store GC starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("store GC shutting down")
			return ctx.Err()

		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunGC(); err != nil {
				s.logger.Warn().Err(err).Msg("value log GC failed")
				continue
			}
			s.logger.Debug().
				Dur("duration", time.Since(start)).
				Msg("value log GC complete")
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *StoreGCService) String() string {
	return s.name
}
