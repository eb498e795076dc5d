// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Serializer converts events to and from their JSON wire form. Every
// marshal validates first so malformed events never reach the transport,
// and every unmarshal validates after decoding so malformed payloads are
// rejected at the edge rather than inside a handler.
type Serializer struct{}

// NewSerializer returns a ready-to-use serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// MarshalFeedback encodes a feedback event for publishing.
func (s *Serializer) MarshalFeedback(event FeedbackEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalFeedback decodes a feedback event. A missing schema version is
// treated as version 1, the version that predates the field.
func (s *Serializer) UnmarshalFeedback(data []byte) (FeedbackEvent, error) {
	var event FeedbackEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return FeedbackEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.SchemaVersion == 0 {
		event.SchemaVersion = 1
	}
	if event.SchemaVersion > SchemaVersion {
		return FeedbackEvent{}, fmt.Errorf("unsupported schema version %d", event.SchemaVersion)
	}
	if err := event.Validate(); err != nil {
		return FeedbackEvent{}, fmt.Errorf("validate event: %w", err)
	}
	return event, nil
}

// MarshalPolicyUpdate encodes a policy update event for publishing.
func (s *Serializer) MarshalPolicyUpdate(event PolicyUpdatedEvent) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalPolicyUpdate decodes a policy update event.
func (s *Serializer) UnmarshalPolicyUpdate(data []byte) (PolicyUpdatedEvent, error) {
	var event PolicyUpdatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return PolicyUpdatedEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.SchemaVersion == 0 {
		event.SchemaVersion = 1
	}
	if event.SchemaVersion > SchemaVersion {
		return PolicyUpdatedEvent{}, fmt.Errorf("unsupported schema version %d", event.SchemaVersion)
	}
	if err := event.Validate(); err != nil {
		return PolicyUpdatedEvent{}, fmt.Errorf("validate event: %w", err)
	}
	return event, nil
}
