// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

/*
Package metrics provides Prometheus instrumentation for the recommendation
service.

All collectors register on the default registry via promauto and are exposed
at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

Metric families:

API:
  - api_requests_total (counter): method, endpoint, status_code
  - api_request_duration_seconds (histogram): method, endpoint
  - api_active_requests (gauge)
  - api_rate_limit_hits_total (counter): scope

Engine:
  - engine_rank_requests_total (counter): outcome
  - engine_rank_duration_seconds (histogram)
  - engine_degraded_retrievals_total (counter)
  - engine_feedback_total (counter): mode, outcome
  - engine_feedback_duration_seconds (histogram)
  - engine_reward (histogram)
  - engine_td_error_abs (histogram)
  - engine_qtable_entries (gauge)
  - engine_experience_records (gauge)

Event stream:
  - event_messages_published_total / _publish_errors_total (counter): topic
  - event_messages_consumed_total / _processed_total /
    _deduplicated_total / _parse_failed_total (counter)
  - event_processing_duration_seconds (histogram)

WebSocket:
  - websocket_connections (gauge)
  - websocket_messages_sent_total / _dropped_total (counter)

System:
  - app_info (gauge): version, go_version
  - app_uptime_seconds (gauge)

Endpoint labels always use the route pattern (for example
/api/v1/users/{userID}/progress), never the raw request path, so per-user
paths cannot expand the label space.

Recording goes through the Record*, Track*, and Set* helpers rather than the
collector variables so call sites stay one line and label sets stay
consistent.
*/
package metrics
