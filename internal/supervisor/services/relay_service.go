// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package services

import (
	"context"
)

// StreamRelay is the run surface of *websocket.PolicyRelay.
type StreamRelay interface {
	Run(ctx context.Context) error
}

// PolicyRelayService runs the policy update relay under supervision.
// The relay subscribes to the policy-updated stream and fans events out
// to websocket clients; a lost subscription surfaces as a Serve error
// and the supervisor resubscribes by restarting the service.
type PolicyRelayService struct {
	relay StreamRelay
	name  string
}

// NewPolicyRelayService wraps relay.
func NewPolicyRelayService(relay StreamRelay) *PolicyRelayService {
	return &PolicyRelayService{
		relay: relay,
		name:  "policy-relay",
	}
}

// Serve implements suture.Service.
func (p *PolicyRelayService) Serve(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (p *PolicyRelayService) String() string {
	return p.name
}
