// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/metrics"
)

// natsMsgIDHeader is the header JetStream uses for server-side duplicate
// detection. Other transports carry it as inert metadata.
const natsMsgIDHeader = "Nats-Msg-Id"

// Publisher wraps a Watermill publisher with event serialization and a
// circuit breaker. The breaker keeps a down broker from stalling the
// feedback hot path: once publishes fail consecutively the breaker opens
// and subsequent publishes return immediately until the broker recovers.
type Publisher struct {
	publisher  message.Publisher
	serializer *Serializer
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps the given transport publisher. The publisher takes
// ownership of it and closes it on Close.
func NewPublisher(pub message.Publisher, logger zerolog.Logger) *Publisher {
	p := &Publisher{
		publisher:  pub,
		serializer: NewSerializer(),
		logger:     logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "event-publisher",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("event publisher circuit breaker state changed")
		},
	})
	return p
}

// PublishFeedback queues feedback for asynchronous application by the
// router. The event ID becomes the message UUID and the deduplication key,
// so republishing the same event is safe.
func (p *Publisher) PublishFeedback(ctx context.Context, event FeedbackEvent) error {
	data, err := p.serializer.MarshalFeedback(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventID, event.EventID)
	msg.Metadata.Set(MetadataUserID, event.Feedback.UserID)
	msg.Metadata.Set(MetadataContentID, event.Feedback.ContentID)
	msg.Metadata.Set(natsMsgIDHeader, event.EventID)

	if err := p.publish(TopicFeedbackReceived, msg); err != nil {
		return fmt.Errorf("publish feedback: %w", err)
	}
	return nil
}

// PublishPolicyUpdate implements engine.Publisher. It announces an applied
// policy update on the feedback.policy.updated topic. The engine treats
// failures as best-effort, so errors here are reported but never block an
// update from being applied.
func (p *Publisher) PublishPolicyUpdate(ctx context.Context, result engine.PolicyUpdateResult) error {
	event := NewPolicyUpdatedEvent(result)
	data, err := p.serializer.MarshalPolicyUpdate(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.EventID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataEventID, event.EventID)
	msg.Metadata.Set(MetadataUserID, result.UserID)
	msg.Metadata.Set(MetadataContentID, result.ContentID)
	msg.Metadata.Set(natsMsgIDHeader, event.EventID)

	if err := p.publish(TopicPolicyUpdated, msg); err != nil {
		return fmt.Errorf("publish policy update: %w", err)
	}
	return nil
}

func (p *Publisher) publish(topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPublisherClosed
	}
	p.mu.RUnlock()

	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, msg)
	})
	metrics.RecordEventPublish(topic, err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return err
}

// Close stops the publisher and the underlying transport. Safe to call
// more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.publisher.Close(); err != nil {
		return fmt.Errorf("close event publisher: %w", err)
	}
	return nil
}

// Compile-time interface assertion.
var _ engine.Publisher = (*Publisher)(nil)
