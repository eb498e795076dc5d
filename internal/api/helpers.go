// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/affectlab/resonate/internal/logging"
	"github.com/affectlab/resonate/internal/middleware"
	"github.com/affectlab/resonate/internal/models"
	"github.com/affectlab/resonate/internal/validation"
)

// maxBodyBytes caps request bodies. Feedback and ranking requests are a
// few hundred bytes; anything near the cap is abuse.
const maxBodyBytes = 1 << 20

// respondJSON writes an APIResponse. GET responses carry an ETag and a
// short private cache window, and revalidate against If-None-Match.
// Everything else is marked no-store since emotional state is sensitive.
//
// The ETag covers the data payload, not the envelope, so unchanged data
// revalidates even though response metadata differs per call.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("marshal JSON response")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if r.Method == http.MethodGet && status == http.StatusOK {
		w.Header().Set("Cache-Control", "private, max-age=30")
		if payload, err := json.Marshal(response.Data); err == nil {
			etag := generateETag(payload)
			w.Header().Set("ETag", etag)
			if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("write JSON response")
	}
}

// generateETag hashes the response body with FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return `"` + strconv.FormatUint(uint64(hash), 16) + `"`
}

// respondError writes an error envelope. The underlying error is logged,
// never sent to the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", code).
			Str("error", logging.SanitizeField(err.Error())).
			Msg("api error")
	}

	respondJSON(w, r, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			RequestID: middleware.GetRequestID(r.Context()),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondValidationError writes a 400 with per-field details.
func respondValidationError(w http.ResponseWriter, r *http.Request, apiErr *validation.APIError) {
	respondJSON(w, r, http.StatusBadRequest, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now(),
			RequestID: middleware.GetRequestID(r.Context()),
		},
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// decodeJSON decodes a request body into v with a size cap and strict
// field checking. Returns false after writing the error response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			respondError(w, r, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "request body exceeds limit", nil)
		case errors.Is(err, io.EOF):
			respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is empty", nil)
		default:
			respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", err)
		}
		return false
	}

	// A second document in the body means a malformed request.
	if dec.More() {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body holds more than one JSON document", nil)
		return false
	}

	return true
}

// validateRequest runs struct validation and writes the 400 on failure.
// Returns false after writing the error response.
func validateRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return true
	}
	respondValidationError(w, r, validationErr.ToAPIError())
	return false
}

// successMeta builds response metadata stamped with the request ID and
// elapsed query time.
func successMeta(r *http.Request, start time.Time) models.Metadata {
	return models.Metadata{
		Timestamp:   time.Now(),
		QueryTimeMS: time.Since(start).Milliseconds(),
		RequestID:   middleware.GetRequestID(r.Context()),
	}
}
