// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package metrics

import (
	"math"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"scope"},
	)

	// Recommendation Engine Metrics
	EngineRankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rank_requests_total",
			Help: "Total number of ranking requests by outcome",
		},
		[]string{"outcome"}, // "ok", "validation_error", "retriever_unavailable", "error"
	)

	EngineRankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_rank_duration_seconds",
			Help:    "Duration of candidate retrieval plus ranking in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	EngineDegradedRetrievals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_degraded_retrievals_total",
			Help: "Total number of ranking requests served with a degraded candidate set",
		},
	)

	EngineFeedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_feedback_total",
			Help: "Total number of feedback submissions by delivery mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: "sync", "async"; outcome: "applied", "validation_error", "error"
	)

	EngineFeedbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_feedback_duration_seconds",
			Help:    "Duration of a feedback policy update in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	EngineReward = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_reward",
			Help:    "Distribution of computed feedback rewards",
			Buckets: prometheus.LinearBuckets(-1, 0.2, 11),
		},
	)

	EngineTDErrorAbs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_td_error_abs",
			Help:    "Absolute temporal-difference error of applied policy updates",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.4, 0.8, 1.6},
		},
	)

	EngineQTableEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_qtable_entries",
			Help: "Current number of learned Q-table cells",
		},
	)

	EngineExperiences = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_experience_records",
			Help: "Current number of stored experience records",
		},
	)

	// Event Stream Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_messages_published_total",
			Help: "Total number of messages published to the event stream",
		},
		[]string{"topic"},
	)

	EventsPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_messages_publish_errors_total",
			Help: "Total number of failed event stream publishes",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_messages_consumed_total",
			Help: "Total number of messages consumed from the event stream",
		},
	)

	EventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_messages_deduplicated_total",
			Help: "Total number of messages skipped as duplicates",
		},
	)

	EventsParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_messages_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Duration of event message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages queued for delivery",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped for slow clients",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active-request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rejected request in the given limiter
// scope (api, ws, health).
func RecordRateLimitHit(scope string) {
	APIRateLimitHits.WithLabelValues(scope).Inc()
}

// RecordRankRequest records one ranking request outcome. Degraded is only
// meaningful when the outcome is "ok".
func RecordRankRequest(outcome string, duration time.Duration, degraded bool) {
	EngineRankRequests.WithLabelValues(outcome).Inc()
	EngineRankDuration.Observe(duration.Seconds())
	if degraded {
		EngineDegradedRetrievals.Inc()
	}
}

// RecordFeedback records one applied or rejected policy update. Mode is
// "sync" when the update ran inline with the HTTP request and "async"
// when the event router applied it from the stream.
func RecordFeedback(mode, outcome string, duration time.Duration) {
	EngineFeedback.WithLabelValues(mode, outcome).Inc()
	EngineFeedbackDuration.Observe(duration.Seconds())
}

// RecordPolicyUpdate observes the learning signal of one applied
// feedback: the computed reward and the magnitude of the TD error.
func RecordPolicyUpdate(reward, tdError float64) {
	EngineReward.Observe(reward)
	EngineTDErrorAbs.Observe(math.Abs(tdError))
}

// UpdateEngineGauges refreshes the engine-size gauges from a stats snapshot.
func UpdateEngineGauges(qtableEntries, experiences int64) {
	EngineQTableEntries.Set(float64(qtableEntries))
	EngineExperiences.Set(float64(experiences))
}

// RecordEventPublish records a publish attempt on the given topic.
func RecordEventPublish(topic string, err error) {
	if err != nil {
		EventsPublishErrors.WithLabelValues(topic).Inc()
		return
	}
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsume records a message received from the event stream.
func RecordEventConsume() {
	EventsConsumed.Inc()
}

// RecordEventProcessed records a successfully processed message.
func RecordEventProcessed() {
	EventsProcessed.Inc()
}

// RecordEventDeduplicated records a message skipped as a duplicate.
func RecordEventDeduplicated() {
	EventsDeduplicated.Inc()
}

// RecordEventParseFailed records a message that could not be decoded.
func RecordEventParseFailed() {
	EventsParseFailed.Inc()
}

// RecordEventProcessing records the handling duration of one message.
func RecordEventProcessing(duration time.Duration) {
	EventProcessingDuration.Observe(duration.Seconds())
}

// SetWSConnections sets the connected-client gauge.
func SetWSConnections(n int) {
	WSConnections.Set(float64(n))
}

// RecordWSMessageSent records a message queued to a client send buffer.
func RecordWSMessageSent() {
	WSMessagesSent.Inc()
}

// RecordWSMessageDropped records a message dropped because a client buffer
// was full.
func RecordWSMessageDropped() {
	WSMessagesDropped.Inc()
}

// SetAppInfo publishes the build information gauge.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// UpdateUptime refreshes the uptime gauge from the process start time.
func UpdateUptime(start time.Time) {
	AppUptime.Set(time.Since(start).Seconds())
}
