// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/models"
)

// Progress handles GET /api/v1/users/{userID}/progress. Unknown users
// get a cold-start snapshot rather than a 404; learning state exists for
// every user the moment they are asked about.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	progress, err := h.engine.Progress(r.Context(), userID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     progress,
		Metadata: successMeta(r, start),
	})
}

// ContentStats handles GET /api/v1/users/{userID}/content-stats. With an
// experience log wired in the stats cover the user's full history;
// otherwise they come from the engine's recent-history window.
func (h *Handler) ContentStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	items, err := h.contentStats(r.Context(), userID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     items,
		Metadata: successMeta(r, start),
	})
}

func (h *Handler) contentStats(ctx context.Context, userID string) ([]models.ContentStatsItem, error) {
	if h.analytics == nil {
		stats, err := h.engine.ContentStats(ctx, userID)
		if err != nil {
			return nil, err
		}
		return models.NewContentStatsFromEngine(stats), nil
	}

	aggs, err := h.analytics.ContentAggregates(ctx, userID)
	if err != nil {
		return nil, err
	}
	return models.NewContentStatsFromLog(aggs), nil
}

// QValueLookup handles GET /api/v1/users/{userID}/qvalue?state=...&content=...
// It reads a single Q-table cell; cells that have never been written
// report the engine's default value with found=false.
func (h *Handler) QValueLookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID := chi.URLParam(r, "userID")

	query := models.QValueQuery{
		State:   r.URL.Query().Get("state"),
		Content: r.URL.Query().Get("content"),
	}
	if !validateRequest(w, r, &query) {
		return
	}

	key := engine.StateKey(query.State)
	entry, found, err := h.engine.QValue(r.Context(), userID, key, query.Content)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if !found {
		entry.UserID = userID
		entry.StateKey = key
		entry.ContentID = query.Content
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     models.NewQValueResponse(entry, found, h.engine.Config().Policy.DefaultQ),
		Metadata: successMeta(r, start),
	})
}

// Stats handles GET /api/v1/stats with engine counters, the live
// websocket client count, and whole-log totals when the experience log
// is wired in.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	body := models.StatsResponse{
		Engine:           stats,
		WebsocketClients: h.clientCount(),
	}
	if h.analytics != nil {
		totals, err := h.analytics.Totals(r.Context())
		if err != nil {
			respondEngineError(w, r, err)
			return
		}
		body.Log = &totals
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     body,
		Metadata: successMeta(r, start),
	})
}
