// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/affectlab/resonate/internal/database"
	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/models"
)

func TestProgressColdStart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users/new-user/progress", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: unknown users get a cold-start snapshot (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)

	var progress engine.LearningProgress
	if err := json.Unmarshal(resp.Data, &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.UserID != "new-user" {
		t.Errorf("user_id = %q, want %q", progress.UserID, "new-user")
	}
	if progress.ExperienceCount != 0 {
		t.Errorf("experience_count = %d, want 0", progress.ExperienceCount)
	}
	if progress.Stage != engine.StageExploring {
		t.Errorf("stage = %q, want %q", progress.Stage, engine.StageExploring)
	}
}

func TestProgressReflectsFeedback(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/feedback", validFeedbackBody()); rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/users/user-1/progress", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)

	var progress engine.LearningProgress
	if err := json.Unmarshal(resp.Data, &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.ExperienceCount != 1 {
		t.Errorf("experience_count = %d, want 1 after one feedback", progress.ExperienceCount)
	}
}

func TestContentStatsEmptyForUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users/new-user/content-stats", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)
	if string(resp.Data) != "[]" {
		t.Errorf("data = %s, want [] (empty array, not null)", resp.Data)
	}
}

func TestContentStatsAggregates(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/feedback", validFeedbackBody()); rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/users/user-1/content-stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)

	var stats []engine.ContentStats
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("decode content stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1", len(stats))
	}
	if stats[0].ContentID != "calm-oceans" {
		t.Errorf("content_id = %q, want %q", stats[0].ContentID, "calm-oceans")
	}
	if stats[0].Plays != 1 {
		t.Errorf("plays = %d, want 1", stats[0].Plays)
	}
	if stats[0].CompletionRate != 1 {
		t.Errorf("completion_rate = %v, want 1", stats[0].CompletionRate)
	}
}

// stubAnalytics stands in for the experience log's SQL aggregations.
type stubAnalytics struct {
	aggregates []database.ContentAggregate
	totals     database.LogTotals
}

func (s *stubAnalytics) ContentAggregates(_ context.Context, _ string) ([]database.ContentAggregate, error) {
	return s.aggregates, nil
}

func (s *stubAnalytics) Totals(_ context.Context) (database.LogTotals, error) {
	return s.totals, nil
}

func TestContentStatsPreferExperienceLog(t *testing.T) {
	env := newTestEnv(t)

	lastPlayed := time.Date(2026, 5, 11, 9, 30, 0, 0, time.UTC)
	env.handler.SetExperienceAnalytics(&stubAnalytics{
		aggregates: []database.ContentAggregate{
			{ContentID: "calm-oceans", Plays: 12, MeanReward: 0.55, CompletionRate: 0.75, RatedPlays: 4, MeanRating: 4.25, LastPlayed: lastPlayed},
			{ContentID: "night-jazz", Plays: 3, MeanReward: 0.1, CompletionRate: 1, LastPlayed: lastPlayed},
		},
	})

	rec := env.do(t, http.MethodGet, "/api/v1/users/user-1/content-stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)

	var items []models.ContentStatsItem
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		t.Fatalf("decode content stats: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ContentID != "calm-oceans" {
		t.Errorf("content_id = %q, want %q", items[0].ContentID, "calm-oceans")
	}
	if items[0].Plays != 12 {
		t.Errorf("plays = %d, want 12 from the whole log, not the engine window", items[0].Plays)
	}
	if items[0].LastPlayed == nil || !items[0].LastPlayed.Equal(lastPlayed) {
		t.Errorf("last_played = %v, want %v", items[0].LastPlayed, lastPlayed)
	}
}

func TestQValueLookupDefaultsForUnwrittenCell(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users/user-1/qvalue?state=v0:a0:s0&content=calm-oceans", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)

	var q struct {
		UserID     string  `json:"user_id"`
		StateKey   string  `json:"state_key"`
		ContentID  string  `json:"content_id"`
		QValue     float64 `json:"q_value"`
		VisitCount int     `json:"visit_count"`
		Found      bool    `json:"found"`
	}
	if err := json.Unmarshal(resp.Data, &q); err != nil {
		t.Fatalf("decode qvalue: %v", err)
	}
	if q.Found {
		t.Error("found = true, want false for an unwritten cell")
	}
	if want := env.engine.Config().Policy.DefaultQ; q.QValue != want {
		t.Errorf("q_value = %v, want default %v", q.QValue, want)
	}
	if q.UserID != "user-1" || q.StateKey != "v0:a0:s0" || q.ContentID != "calm-oceans" {
		t.Errorf("identifiers = (%q, %q, %q), want the queried values echoed", q.UserID, q.StateKey, q.ContentID)
	}
}

func TestQValueLookupAfterFeedback(t *testing.T) {
	env := newTestEnv(t)

	fbRec := env.do(t, http.MethodPost, "/api/v1/feedback", validFeedbackBody())
	if fbRec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, want %d", fbRec.Code, http.StatusOK)
	}
	var result engine.PolicyUpdateResult
	if err := json.Unmarshal(decodeEnvelope(t, fbRec).Data, &result); err != nil {
		t.Fatalf("decode update result: %v", err)
	}

	path := "/api/v1/users/user-1/qvalue?state=" + string(result.Update.StateKey) + "&content=calm-oceans"
	rec := env.do(t, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var q struct {
		QValue     float64 `json:"q_value"`
		VisitCount int     `json:"visit_count"`
		Found      bool    `json:"found"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &q); err != nil {
		t.Fatalf("decode qvalue: %v", err)
	}
	if !q.Found {
		t.Fatal("found = false, want true after feedback wrote the cell")
	}
	if q.VisitCount != 1 {
		t.Errorf("visit_count = %d, want 1", q.VisitCount)
	}
	if q.QValue != result.Update.NewQ {
		t.Errorf("q_value = %v, want %v from the update result", q.QValue, result.Update.NewQ)
	}
}

func TestQValueLookupRejectsMalformedKey(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
	}{
		{"garbage state", "/api/v1/users/user-1/qvalue?state=garbage&content=c"},
		{"missing state", "/api/v1/users/user-1/qvalue?content=c"},
		{"missing content", "/api/v1/users/user-1/qvalue?state=v0:a0:s0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			resp := decodeEnvelope(t, rec)
			if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error = %+v, want code VALIDATION_ERROR", resp.Error)
			}
		})
	}
}

func TestStatsReportsCounters(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/v1/recommendations", validRecommendationsBody()); rec.Code != http.StatusOK {
		t.Fatalf("recommendations status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/feedback", validFeedbackBody()); rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)

	var stats struct {
		Engine           engine.EngineStats `json:"engine"`
		WebsocketClients int                `json:"websocket_clients"`
	}
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Engine.RankRequests != 1 {
		t.Errorf("rank_requests = %d, want 1", stats.Engine.RankRequests)
	}
	if stats.Engine.FeedbackApplied != 1 {
		t.Errorf("feedback_applied = %d, want 1", stats.Engine.FeedbackApplied)
	}
	if stats.Engine.QTableEntries != 1 {
		t.Errorf("q_table_entries = %d, want 1", stats.Engine.QTableEntries)
	}
	if stats.Engine.Experiences != 1 {
		t.Errorf("experiences = %d, want 1", stats.Engine.Experiences)
	}
	if stats.WebsocketClients != 0 {
		t.Errorf("websocket_clients = %d, want 0 without a hub", stats.WebsocketClients)
	}
}

func TestStatsIncludesLogTotals(t *testing.T) {
	env := newTestEnv(t)
	env.handler.SetExperienceAnalytics(&stubAnalytics{
		totals: database.LogTotals{Experiences: 42, Users: 7, Contents: 12},
	})

	rec := env.do(t, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, rec)

	var stats models.StatsResponse
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Log == nil {
		t.Fatal("log totals missing from stats body")
	}
	if stats.Log.Experiences != 42 {
		t.Errorf("log.experiences = %d, want 42", stats.Log.Experiences)
	}
	if stats.Log.Users != 7 {
		t.Errorf("log.users = %d, want 7", stats.Log.Users)
	}
	if stats.Log.Contents != 12 {
		t.Errorf("log.contents = %d, want 12", stats.Log.Contents)
	}
}
