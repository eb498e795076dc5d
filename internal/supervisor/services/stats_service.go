// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/metrics"
)

// defaultStatsInterval paces stats pushes when no interval is
// configured.
const defaultStatsInterval = 15 * time.Second

// StatsSource yields engine counter snapshots. Satisfied by
// *engine.Engine.
type StatsSource interface {
	Stats(ctx context.Context) (engine.EngineStats, error)
}

// StatsSink receives snapshots for fanout to connected clients.
// Satisfied by *websocket.Hub.
type StatsSink interface {
	BroadcastStatsUpdate(stats engine.EngineStats)
}

// StatsBroadcastService pushes engine stats to websocket clients on a
// fixed cadence and refreshes the Prometheus size and uptime gauges
// from the same snapshot. One snapshot goes out immediately on start so
// gauges are primed before the first tick. With a nil sink the service
// still runs as the gauge refresher.
type StatsBroadcastService struct {
	source    StatsSource
	sink      StatsSink
	interval  time.Duration
	startedAt time.Time
	logger    zerolog.Logger
	name      string
}

// NewStatsBroadcastService wraps source and sink. Sink may be nil when
// the websocket hub is disabled. A non-positive interval falls back to
// 15s; startedAt anchors the uptime gauge.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStatsBroadcastService(source StatsSource, sink StatsSink, interval time.Duration, startedAt time.Time, logger zerolog.Logger) *StatsBroadcastService {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	return &StatsBroadcastService{
		source:    source,
		sink:      sink,
		interval:  interval,
		startedAt: startedAt,
		logger:    logger.With().Str("service", "stats-broadcast").Logger(),
		name:      "stats-broadcast",
	}
}

// Serve implements suture.Service.
func (s *StatsBroadcastService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("stats broadcaster starting")

	s.publish(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("stats broadcaster shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.publish(ctx)
		}
	}
}

// publish snapshots the engine and pushes one update. A failed snapshot
// is skipped, not fatal; the engine reports errors only while closing.
func (s *StatsBroadcastService) publish(ctx context.Context) {
	stats, err := s.source.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("skipping stats broadcast")
		}
		return
	}

	if s.sink != nil {
		s.sink.BroadcastStatsUpdate(stats)
	}
	metrics.UpdateEngineGauges(int64(stats.QTableEntries), stats.Experiences)
	metrics.UpdateUptime(s.startedAt)
}

// String implements fmt.Stringer for supervisor logs.
func (s *StatsBroadcastService) String() string {
	return s.name
}
