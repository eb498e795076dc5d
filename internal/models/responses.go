// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package models

import (
	"time"

	"github.com/affectlab/resonate/internal/database"
	"github.com/affectlab/resonate/internal/engine"
)

// QValueResponse is the body of GET /api/v1/users/{userID}/qvalue.
// When Found is false the cell has never been updated and QValue holds
// the engine's configured default.
type QValueResponse struct {
	UserID     string  `json:"user_id"`
	StateKey   string  `json:"state_key"`
	ContentID  string  `json:"content_id"`
	QValue     float64 `json:"q_value"`
	VisitCount int     `json:"visit_count"`
	Found      bool    `json:"found"`
}

// NewQValueResponse builds a response from a store lookup. defaultQ is
// substituted when the cell was never written.
func NewQValueResponse(entry engine.QEntry, found bool, defaultQ float64) QValueResponse {
	resp := QValueResponse{
		UserID:     entry.UserID,
		StateKey:   string(entry.StateKey),
		ContentID:  entry.ContentID,
		QValue:     entry.QValue,
		VisitCount: entry.VisitCount,
		Found:      found,
	}
	if !found {
		resp.QValue = defaultQ
	}
	return resp
}

// ContentStatsItem is one entry in the body of
// GET /api/v1/users/{userID}/content-stats. LastPlayed is set only when
// the stats come from the experience log; the engine's recent-history
// aggregation does not track it.
type ContentStatsItem struct {
	ContentID      string     `json:"content_id"`
	MeanReward     float64    `json:"mean_reward"`
	Plays          int64      `json:"plays"`
	CompletionRate float64    `json:"completion_rate"`
	MeanRating     float64    `json:"mean_rating"`
	LastPlayed     *time.Time `json:"last_played,omitempty"`
}

// NewContentStatsFromEngine converts the engine's windowed aggregation.
func NewContentStatsFromEngine(stats []engine.ContentStats) []ContentStatsItem {
	items := make([]ContentStatsItem, 0, len(stats))
	for _, s := range stats {
		items = append(items, ContentStatsItem{
			ContentID:      s.ContentID,
			MeanReward:     s.MeanReward,
			Plays:          int64(s.Plays),
			CompletionRate: s.CompletionRate,
			MeanRating:     s.MeanRating,
		})
	}
	return items
}

// NewContentStatsFromLog converts whole-log SQL aggregates.
func NewContentStatsFromLog(aggs []database.ContentAggregate) []ContentStatsItem {
	items := make([]ContentStatsItem, 0, len(aggs))
	for _, a := range aggs {
		lastPlayed := a.LastPlayed
		items = append(items, ContentStatsItem{
			ContentID:      a.ContentID,
			MeanReward:     a.MeanReward,
			Plays:          a.Plays,
			CompletionRate: a.CompletionRate,
			MeanRating:     a.MeanRating,
			LastPlayed:     &lastPlayed,
		})
	}
	return items
}

// StatsResponse is the body of GET /api/v1/stats. Log is present only
// when an experience log backs the handler.
type StatsResponse struct {
	Engine           engine.EngineStats  `json:"engine"`
	WebsocketClients int                 `json:"websocket_clients"`
	Log              *database.LogTotals `json:"log,omitempty"`
}

// FeedbackAccepted acknowledges an asynchronously queued feedback event.
type FeedbackAccepted struct {
	EventID string `json:"event_id"`
}

// HealthStatus is the body of GET /health. Status is "healthy" or
// "degraded"; FeedbackMode is "async" when feedback flows through the
// event stream and "sync" when it is applied inline.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	FeedbackMode     string  `json:"feedback_mode"`
	EngineReady      bool    `json:"engine_ready"`
	WebsocketClients int     `json:"websocket_clients"`
	Uptime           float64 `json:"uptime"`
}
