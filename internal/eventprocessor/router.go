// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/cache"
	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/metrics"
)

// FeedbackApplier applies decoded feedback to the learning policy. The
// engine satisfies it; tests substitute lighter implementations.
type FeedbackApplier interface {
	ApplyFeedback(ctx context.Context, fb engine.Feedback) (engine.PolicyUpdateResult, error)
}

// RouterConfig holds event router settings.
type RouterConfig struct {
	// CloseTimeout bounds how long Close waits for in-flight handlers.
	CloseTimeout time.Duration

	// Retry settings for transient handler failures.
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonTopic receives messages that exhausted their retries. Empty
	// disables the poison queue.
	PoisonTopic string

	// DedupCapacity and DedupTTL bound the redelivery dedup window.
	DedupCapacity int
	DedupTTL      time.Duration
}

// DefaultRouterConfig returns production router settings.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonTopic:          TopicFeedbackPoison,
		DedupCapacity:        8192,
		DedupTTL:             10 * time.Minute,
	}
}

// dedupRepository adapts cache.Deduper to the expiring key repository the
// Watermill deduplicator middleware expects.
type dedupRepository struct {
	deduper *cache.Deduper
}

func (r *dedupRepository) IsDuplicate(_ context.Context, key string) (bool, error) {
	if r.deduper.Seen(key) {
		metrics.RecordEventDeduplicated()
		return true, nil
	}
	return false, nil
}

// Router consumes feedback events and applies them to the learning policy.
// Delivery is at-least-once, so the handler chain deduplicates by event ID,
// retries transient failures with backoff, and parks permanent failures on
// the poison topic.
type Router struct {
	router     *message.Router
	serializer *Serializer
	deduper    *cache.Deduper
	logger     zerolog.Logger
}

// NewRouter builds the router and its middleware chain. poisonPub receives
// parked messages and may share the transport used for consuming; nil
// disables the poison queue.
func NewRouter(cfg RouterConfig, poisonPub message.Publisher, logger zerolog.Logger) (*Router, error) {
	wmLogger := NewWatermillLogger(logger)

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create message router: %w", err)
	}

	r := &Router{
		router:     wmRouter,
		serializer: NewSerializer(),
		deduper:    cache.NewDeduper(cfg.DedupCapacity, cfg.DedupTTL),
		logger:     logger,
	}

	// Middleware runs outermost first in the order added:
	//  1. Deduplicator drops redeliveries before they reach the handler.
	//     It sits outside Retry so in-process retries of a failing message
	//     are not mistaken for duplicates of themselves.
	//  2. Poison queue parks messages whose retries are exhausted.
	//  3. Retry backs off exponentially on transient failures.
	//  4. Recoverer converts panics to errors so they retry like failures.
	dedup := middleware.Deduplicator{
		KeyFactory: func(msg *message.Message) (string, error) {
			if id := msg.Metadata.Get(MetadataEventID); id != "" {
				return id, nil
			}
			return msg.UUID, nil
		},
		Repository: &dedupRepository{deduper: r.deduper},
	}
	wmRouter.AddMiddleware(dedup.Middleware)

	if poisonPub != nil && cfg.PoisonTopic != "" {
		poisonQueue, err := middleware.PoisonQueue(poisonPub, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poisonQueue)
	}

	retryMiddleware := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          wmLogger,
	}
	wmRouter.AddMiddleware(retryMiddleware.Middleware)

	wmRouter.AddMiddleware(middleware.Recoverer)

	return r, nil
}

// RegisterFeedbackHandler subscribes the applier to the feedback topic.
// Call before Run.
func (r *Router) RegisterFeedbackHandler(sub message.Subscriber, applier FeedbackApplier) {
	r.router.AddConsumerHandler(
		"feedback-applier",
		TopicFeedbackReceived,
		sub,
		r.handleFeedback(applier),
	)
}

func (r *Router) handleFeedback(applier FeedbackApplier) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		metrics.RecordEventConsume()
		start := time.Now()

		event, err := r.serializer.UnmarshalFeedback(msg.Payload)
		if err != nil {
			metrics.RecordEventParseFailed()
			// Malformed payloads never become valid. They still go through
			// the retry budget before landing on the poison queue, which
			// keeps the handler chain uniform.
			r.logger.Warn().
				Err(err).
				Str("message_uuid", msg.UUID).
				Msg("rejected feedback event")
			return fmt.Errorf("decode feedback event: %w", err)
		}

		result, err := applier.ApplyFeedback(msg.Context(), event.Feedback)
		if err != nil {
			return fmt.Errorf("apply feedback: %w", err)
		}

		elapsed := time.Since(start)
		metrics.RecordEventProcessed()
		metrics.RecordEventProcessing(elapsed)
		metrics.RecordFeedback("async", "applied", elapsed)
		metrics.RecordPolicyUpdate(result.Reward.Reward, result.Update.TDError)

		r.logger.Debug().
			Str("event_id", event.EventID).
			Str("user_id", result.UserID).
			Str("content_id", result.ContentID).
			Float64("reward", result.Reward.Reward).
			Msg("feedback event applied")
		return nil
	}
}

// Run starts the router and blocks until the context is canceled or Close
// is called. Registered handlers begin consuming once Running is closed.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes when all handlers are consuming.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// handlers to finish.
func (r *Router) Close() error {
	return r.router.Close()
}
