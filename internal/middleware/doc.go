// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

/*
Package middleware provides chi-compatible HTTP middleware for the API
server.

RequestID assigns each request an ID (honoring X-Request-ID from upstream
proxies), echoes it on the response, and enriches the request context so
logging.Ctx stamps request_id and correlation_id on every line written by
downstream handlers.

AccessLog writes one structured line per completed request. The user agent
passes through logging.SanitizeField before it reaches the log, so header
values cannot inject control characters or forged lines.

PrometheusMetrics records request counts, latency, and the in-flight gauge
per route pattern. The route groups that mount it decide which endpoints
are measured; health probes are typically left out.

Ordering: RequestID must run before AccessLog and PrometheusMetrics so the
completion line carries the same ID the client received.
*/
package middleware
