// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/database"
	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/eventprocessor"
	"github.com/affectlab/resonate/internal/logging"
	ws "github.com/affectlab/resonate/internal/websocket"
)

// FeedbackPublisher enqueues feedback events for asynchronous application.
// Implemented by eventprocessor.Publisher; nil means feedback applies
// inline with the request.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, event eventprocessor.FeedbackEvent) error
}

// ExperienceAnalytics serves aggregates over the full experience log.
// Implemented by database.DB; nil means content stats fall back to the
// engine's recent-history window and /api/v1/stats omits log totals.
type ExperienceAnalytics interface {
	ContentAggregates(ctx context.Context, userID string) ([]database.ContentAggregate, error)
	Totals(ctx context.Context) (database.LogTotals, error)
}

// Handler serves the HTTP API. The hub, publisher, and analytics
// collaborators are optional: a nil hub disables /ws and reports zero
// connected clients, a nil publisher switches feedback to inline
// application, and a nil analytics source limits content stats to the
// engine's recent-history window.
type Handler struct {
	engine    *engine.Engine
	hub       *ws.Hub
	publisher FeedbackPublisher
	analytics ExperienceAnalytics
	config    *config.Config
	version   string
	startTime time.Time
}

// NewHandler creates the API handler.
func NewHandler(eng *engine.Engine, hub *ws.Hub, cfg *config.Config, version string) *Handler {
	return &Handler{
		engine:    eng,
		hub:       hub,
		config:    cfg,
		version:   version,
		startTime: time.Now(),
	}
}

// SetFeedbackPublisher switches feedback handling to asynchronous
// enqueueing. Call once during startup, before the server accepts
// traffic.
func (h *Handler) SetFeedbackPublisher(pub FeedbackPublisher) {
	h.publisher = pub
}

// SetExperienceAnalytics backs content stats and log totals with the
// experience log. Call once during startup, before the server accepts
// traffic.
func (h *Handler) SetExperienceAnalytics(a ExperienceAnalytics) {
	h.analytics = a
}

// clientCount returns connected websocket clients, zero without a hub.
func (h *Handler) clientCount() int {
	if h.hub == nil {
		return 0
	}
	return h.hub.GetClientCount()
}

// getUpgrader builds the websocket upgrader with origin checking against
// the configured CORS origins and a handshake timeout against slow
// clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates the Origin header of an upgrade request.
// Browsers always send Origin; an empty one means a non-browser client,
// which is allowed since it is not subject to cross-origin rules anyway.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("origin", logging.SanitizeField(origin)).
		Msg("websocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers the client with the
// hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "live updates disabled", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	var opts ws.ClientOptions
	if h.config != nil {
		opts = ws.ClientOptions{
			SendBufferSize: h.config.WebSocket.SendBufferSize,
			PingInterval:   h.config.WebSocket.PingInterval,
			WriteTimeout:   h.config.WebSocket.WriteTimeout,
		}
	}
	client := ws.NewClientWithOptions(h.hub, conn, opts)
	h.hub.Register <- client
	client.Start()
}
