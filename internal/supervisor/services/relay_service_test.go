// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockRelay stands in for *websocket.PolicyRelay.
type mockRelay struct {
	runErr  error
	running chan struct{}
}

func newMockRelay() *mockRelay {
	return &mockRelay{running: make(chan struct{}, 1)}
}

func (m *mockRelay) Run(ctx context.Context) error {
	select {
	case m.running <- struct{}{}:
	default:
	}
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestPolicyRelayService_Interface(t *testing.T) {
	t.Parallel()
	var _ suture.Service = (*PolicyRelayService)(nil)
}

func TestPolicyRelayService_Serve(t *testing.T) {
	t.Parallel()

	relay := newMockRelay()
	svc := NewPolicyRelayService(relay)
	if got := svc.String(); got != "policy-relay" {
		t.Errorf("String() = %q, want policy-relay", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-relay.running:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never started")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return within 2s")
	}
}

func TestPolicyRelayService_SubscribeFailure(t *testing.T) {
	t.Parallel()

	relay := newMockRelay()
	relay.runErr = errors.New("subscribe policy.updated: connection refused")
	svc := NewPolicyRelayService(relay)

	err := svc.Serve(context.Background())
	if !errors.Is(err, relay.runErr) {
		t.Errorf("Serve error = %v, want %v", err, relay.runErr)
	}
}
