// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"net/http"
	"time"

	"github.com/affectlab/resonate/internal/eventprocessor"
	"github.com/affectlab/resonate/internal/metrics"
	"github.com/affectlab/resonate/internal/middleware"
	"github.com/affectlab/resonate/internal/models"
)

// Recommendations handles POST /api/v1/recommendations. It ranks the
// user's candidate content for the submitted emotional transition and
// returns the ordered list with ranking diagnostics.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.RecommendationsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	resp, err := h.engine.Rank(r.Context(), req.ToEngine(middleware.GetRequestID(r.Context())))
	metrics.RecordRankRequest(rankOutcome(err), time.Since(start), resp.Degraded)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	meta := successMeta(r, start)
	meta.Cached = resp.CacheHit
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     resp,
		Metadata: meta,
	})
}

// Feedback handles POST /api/v1/feedback. With an event publisher wired
// the feedback is queued and acknowledged with 202; the policy update
// happens when the event router consumes it. Without a publisher the
// update is applied inline and the full result returned with 200.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validateRequest(w, r, &req) {
		return
	}

	if h.publisher != nil {
		h.queueFeedback(w, r, start, req)
		return
	}
	h.applyFeedback(w, r, start, req)
}

func (h *Handler) queueFeedback(w http.ResponseWriter, r *http.Request, start time.Time, req models.FeedbackRequest) {
	event := eventprocessor.NewFeedbackEvent(req.ToEngine())
	if err := h.publisher.PublishFeedback(r.Context(), event); err != nil {
		respondPublishError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, &models.APIResponse{
		Status:   "success",
		Data:     models.FeedbackAccepted{EventID: event.EventID},
		Metadata: successMeta(r, start),
	})
}

func (h *Handler) applyFeedback(w http.ResponseWriter, r *http.Request, start time.Time, req models.FeedbackRequest) {
	result, err := h.engine.ApplyFeedback(r.Context(), req.ToEngine())
	metrics.RecordFeedback("sync", feedbackOutcome(err), time.Since(start))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	metrics.RecordPolicyUpdate(result.Reward.Reward, result.Update.TDError)
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     result,
		Metadata: successMeta(r, start),
	})
}
