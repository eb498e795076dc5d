// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package retriever

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/engine"
)

// maxErrorBodySize caps how much of an error response is read back for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// HTTP queries an external similarity index over its JSON API. Outbound
// calls pass a client-side rate limiter and a circuit breaker; an open
// breaker surfaces as engine.ErrRetrieverUnavailable without touching the
// index.
type HTTP struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]engine.Candidate]
	logger  zerolog.Logger
}

// NewHTTP builds a similarity-index client from the retriever config.
func NewHTTP(cfg config.RetrieverConfig, logger zerolog.Logger) *HTTP {
	h := &HTTP{
		url:     cfg.URL,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  logger,
	}

	h.breaker = gobreaker.NewCircuitBreaker[[]engine.Candidate](gobreaker.Settings{
		Name:        "similarity-index",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("similarity index circuit breaker state changed")
		},
	})

	return h
}

type queryRequest struct {
	Vector engine.TransitionVector `json:"vector"`
	Limit  int                     `json:"limit"`
}

type queryResponse struct {
	Candidates []engine.Candidate `json:"candidates"`
}

// Query asks the index for up to limit candidates matching the transition.
// Results are sanitized: entries without a content ID are dropped,
// similarity is clamped to [0, 1], and surplus entries are cut.
func (h *HTTP) Query(ctx context.Context, vec engine.TransitionVector, limit int) ([]engine.Candidate, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	cands, err := h.breaker.Execute(func() ([]engine.Candidate, error) {
		return h.query(ctx, vec, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			h.logger.Warn().Err(err).Msg("similarity index query rejected by circuit breaker")
			return nil, fmt.Errorf("%w: circuit breaker open", engine.ErrRetrieverUnavailable)
		}
		return nil, fmt.Errorf("%w: %w", engine.ErrRetrieverUnavailable, err)
	}

	return sanitizeCandidates(cands, limit), nil
}

func (h *HTTP) query(ctx context.Context, vec engine.TransitionVector, limit int) ([]engine.Candidate, error) {
	payload, err := json.Marshal(queryRequest{Vector: vec, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query similarity index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("similarity index returned status %d: %s", resp.StatusCode, body)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return decoded.Candidates, nil
}

// readBodyForError reads at most maxErrorBodySize bytes for error messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

func sanitizeCandidates(cands []engine.Candidate, limit int) []engine.Candidate {
	cleaned := make([]engine.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.ContentID == "" {
			continue
		}
		if c.Similarity < 0 {
			c.Similarity = 0
		} else if c.Similarity > 1 {
			c.Similarity = 1
		}
		cleaned = append(cleaned, c)
	}
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

// Compile-time interface assertion
var _ engine.Retriever = (*HTTP)(nil)
