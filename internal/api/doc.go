// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

/*
Package api provides the HTTP surface of the recommendation service.

Routing uses chi with middleware from internal/middleware plus the chi
ecosystem (CORS, rate limiting, compression). Handlers decode into
internal/models request types, validate them through internal/validation,
and call the engine; responses wrap in the models.APIResponse envelope.

Endpoints:

	POST /api/v1/recommendations             rank content for an emotional transition
	POST /api/v1/feedback                    apply or enqueue viewing feedback
	GET  /api/v1/users/{userID}/progress     learning progress snapshot
	GET  /api/v1/users/{userID}/content-stats  per-content outcome aggregates
	GET  /api/v1/users/{userID}/qvalue       one Q-table cell (diagnostic)
	GET  /api/v1/stats                       engine counters plus connected clients
	GET  /api/v1/ws                          live update stream
	GET  /health, /health/live, /health/ready  probes
	GET  /metrics                            Prometheus exposition

Feedback behavior depends on wiring: with an event publisher configured the
handler enqueues and returns 202 Accepted; without one it applies the
update inline and returns the policy update result.

Engine faults map onto stable error codes: validation failures return 400
VALIDATION_ERROR, storage faults 500 STORAGE_ERROR, a down retriever 503
RETRIEVER_UNAVAILABLE with Retry-After, and a tripped event transport 503
EVENTS_UNAVAILABLE.
*/
package api
