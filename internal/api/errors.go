// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"errors"
	"net/http"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/eventprocessor"
)

// retryAfterSeconds is the hint sent with 503 responses for transient
// outages.
const retryAfterSeconds = "5"

// rankOutcome classifies a Rank error for metrics labels.
func rankOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case engine.IsValidationFault(err):
		return "validation_error"
	case errors.Is(err, engine.ErrRetrieverUnavailable):
		return "retriever_unavailable"
	default:
		return "error"
	}
}

// feedbackOutcome classifies an ApplyFeedback error for metrics labels.
func feedbackOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case engine.IsValidationFault(err):
		return "validation_error"
	default:
		return "error"
	}
}

// respondEngineError maps an engine fault onto the API error taxonomy.
// Validation faults surface the fault message since it names the field;
// other fault classes get a generic message and the detail stays in the
// log.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case engine.IsValidationFault(err):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, engine.ErrRetrieverUnavailable):
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondError(w, r, http.StatusServiceUnavailable, "RETRIEVER_UNAVAILABLE", "candidate retrieval is unavailable, retry shortly", err)
	case errors.Is(err, engine.ErrEngineClosed):
		respondError(w, r, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service is shutting down", nil)
	case engine.IsStorageFault(err):
		respondError(w, r, http.StatusInternalServerError, "STORAGE_ERROR", "a storage operation failed", err)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", err)
	}
}

// respondPublishError maps a feedback enqueue failure. A tripped breaker
// or closed publisher is a transient outage worth retrying against;
// anything else is internal.
func respondPublishError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, eventprocessor.ErrTransportUnavailable),
		errors.Is(err, eventprocessor.ErrPublisherClosed):
		w.Header().Set("Retry-After", retryAfterSeconds)
		respondError(w, r, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "feedback queue is unavailable, retry shortly", err)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue feedback", err)
	}
}
