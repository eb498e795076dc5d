// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/metrics"
	"github.com/affectlab/resonate/internal/middleware"
)

const (
	// healthRateLimit allows frequent probe traffic without opening the
	// health endpoints to abuse.
	healthRateLimit = 1000

	// wsRateLimit caps websocket connects per client IP per minute. Each
	// accepted upgrade pins two goroutines for the connection's lifetime.
	wsRateLimit = 60
)

// Router assembles the HTTP surface: the global middleware stack, the
// versioned API routes, health probes, and Prometheus exposition.
type Router struct {
	handler *Handler
	config  *config.Config
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{
		handler: handler,
		config:  cfg,
	}
}

// SetupChi builds the full route tree.
//
// Global middleware applies to every route. Observability middleware
// (access log, request metrics) applies only under /api/v1 so probe and
// scrape traffic stays out of the request metrics.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.config.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed for this endpoint", nil)
	})

	r.Route("/health", func(r chi.Router) {
		r.Use(router.rateLimit("health", healthRateLimit, time.Minute))
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	if router.config.Metrics.Enabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AccessLog)
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.rateLimit("api", router.config.Server.RateLimit, router.config.Server.RateLimitWindow))

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Compress(5))

			r.Post("/recommendations", router.handler.Recommendations)
			r.Post("/feedback", router.handler.Feedback)
			r.Get("/stats", router.handler.Stats)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/progress", router.handler.Progress)
				r.Get("/content-stats", router.handler.ContentStats)
				r.Get("/qvalue", router.handler.QValueLookup)
			})
		})

		// The upgrade hijacks the connection, so the websocket route
		// stays outside the compression group.
		r.With(router.rateLimit("ws", wsRateLimit, time.Minute)).Get("/ws", router.handler.WebSocket)
	})

	return r
}

// rateLimit builds an IP-keyed limiter whose rejections carry the API
// error envelope and count toward the rate-limit metric. Zero or
// negative requests disables limiting for the scope.
func (router *Router) rateLimit(scope string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			metrics.RecordRateLimitHit(scope)
			respondError(w, req, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many requests, slow down", nil)
		}),
	)
}
