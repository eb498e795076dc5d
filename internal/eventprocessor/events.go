// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/affectlab/resonate/internal/engine"
)

// SchemaVersion is the current event payload version. Consumers must accept
// payloads with a lower version and default a missing version to 1.
const SchemaVersion = 1

// Topics carried over the pubsub transport.
const (
	// TopicFeedbackReceived carries feedback waiting to be applied.
	TopicFeedbackReceived = "feedback.received"

	// TopicPolicyUpdated carries the result of every applied update.
	TopicPolicyUpdated = "feedback.policy.updated"

	// TopicFeedbackPoison receives messages that exhausted their retries.
	TopicFeedbackPoison = "dlq.feedback"
)

// Metadata keys set on published messages. The event ID doubles as the
// deduplication key, so it must be stable across redeliveries.
const (
	MetadataEventID   = "event_id"
	MetadataUserID    = "user_id"
	MetadataContentID = "content_id"
)

// ValidationError reports a structurally invalid event payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: field %s: %s", e.Field, e.Message)
}

// FeedbackEvent is the wire form of one piece of viewing feedback. The
// event ID is assigned by the producer and survives redelivery, which is
// what makes consumer-side deduplication possible.
type FeedbackEvent struct {
	SchemaVersion int             `json:"schema_version,omitempty"`
	EventID       string          `json:"event_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Feedback      engine.Feedback `json:"feedback"`
}

// NewFeedbackEvent wraps feedback in a versioned event with a fresh ID.
func NewFeedbackEvent(fb engine.Feedback) FeedbackEvent {
	return FeedbackEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now().UTC(),
		Feedback:      fb,
	}
}

// Validate checks the fields the router depends on before a decoded event
// is handed to the engine. Emotional state ranges are checked again by the
// engine itself; this guards the envelope.
func (e FeedbackEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "must not be empty"}
	}
	if e.Feedback.UserID == "" {
		return &ValidationError{Field: "feedback.user_id", Message: "must not be empty"}
	}
	if e.Feedback.ContentID == "" {
		return &ValidationError{Field: "feedback.content_id", Message: "must not be empty"}
	}
	return nil
}

// PolicyUpdatedEvent is the wire form of one applied policy update.
type PolicyUpdatedEvent struct {
	SchemaVersion int                       `json:"schema_version,omitempty"`
	EventID       string                    `json:"event_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Result        engine.PolicyUpdateResult `json:"result"`
}

// NewPolicyUpdatedEvent wraps an update result in a versioned event.
func NewPolicyUpdatedEvent(result engine.PolicyUpdateResult) PolicyUpdatedEvent {
	return PolicyUpdatedEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		OccurredAt:    time.Now().UTC(),
		Result:        result,
	}
}

// Validate checks the envelope of a decoded policy update event.
func (e PolicyUpdatedEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "must not be empty"}
	}
	if e.Result.UserID == "" {
		return &ValidationError{Field: "result.user_id", Message: "must not be empty"}
	}
	if e.Result.ContentID == "" {
		return &ValidationError{Field: "result.content_id", Message: "must not be empty"}
	}
	return nil
}
