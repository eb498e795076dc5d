// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package websocket

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/affectlab/resonate/internal/engine"
	"github.com/affectlab/resonate/internal/logging"
)

// policyUpdateEnvelope mirrors the policy-updated event payload published
// by the event processor. Decoding a local copy keeps this package free of
// an eventprocessor import; unknown envelope fields are ignored.
type policyUpdateEnvelope struct {
	EventID string                    `json:"event_id"`
	Result  engine.PolicyUpdateResult `json:"result"`
}

// PolicyRelay replays the policy-updated event stream into the hub.
//
// When the event transport is enabled, broadcasts flow through the relay
// instead of the engine's direct broadcaster, so every replica, including
// the one that applied the update, delivers each update to its clients
// exactly once.
//
// On NATS the relay must subscribe outside the feedback queue group;
// queue-group delivery hands each message to a single member, which would
// leave the other replicas' clients blind.
type PolicyRelay struct {
	hub   *Hub
	sub   message.Subscriber
	topic string
}

// NewPolicyRelay creates a relay reading from topic on sub. The caller
// retains ownership of the subscriber.
func NewPolicyRelay(hub *Hub, sub message.Subscriber, topic string) *PolicyRelay {
	return &PolicyRelay{
		hub:   hub,
		sub:   sub,
		topic: topic,
	}
}

// Run subscribes and forwards events until the context is canceled or the
// subscription channel closes. Designed for use under supervision next to
// Hub.RunWithContext.
func (r *PolicyRelay) Run(ctx context.Context) error {
	messages, err := r.sub.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", r.topic, err)
	}

	logging.Info().Str("topic", r.topic).Msg("policy update relay started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().
				Str("component", "policy-relay").
				Str("reason", string(shutdownReason(ctx))).
				Msg("policy update relay stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				logging.Info().Str("topic", r.topic).Msg("policy update stream closed")
				return nil
			}
			r.handle(msg)
		}
	}
}

// handle decodes one stream message and broadcasts it. Malformed payloads
// are acked and dropped; the relay is best-effort fanout and a redelivery
// would fail the same way.
func (r *PolicyRelay) handle(msg *message.Message) {
	var env policyUpdateEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		logging.Warn().Err(err).
			Str("message_uuid", msg.UUID).
			Msg("failed to unmarshal policy update event")
		msg.Ack()
		return
	}

	r.hub.BroadcastPolicyUpdate(env.Result)
	msg.Ack()
}
