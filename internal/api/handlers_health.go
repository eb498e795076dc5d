// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"net/http"
	"time"

	"github.com/affectlab/resonate/internal/models"
)

// Health handles GET /health. The engine is probed through its stats
// snapshot; a failing probe degrades the status but still answers 200 so
// operators can read the rest of the report.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, err := h.engine.Stats(r.Context())
	engineReady := err == nil

	status := "healthy"
	if !engineReady {
		status = "degraded"
	}

	mode := "sync"
	if h.publisher != nil {
		mode = "async"
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.HealthStatus{
			Status:           status,
			Version:          h.version,
			FeedbackMode:     mode,
			EngineReady:      engineReady,
			WebsocketClients: h.clientCount(),
			Uptime:           time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthLive handles GET /health/live. Returns 200 whenever the process
// is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles GET /health/ready. Returns 200 only when the
// engine can serve traffic, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	_, err := h.engine.Stats(r.Context())
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "engine is not ready", err)
		return
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"ready":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
