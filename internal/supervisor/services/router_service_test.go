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

// mockRouter stands in for *eventprocessor.Router. Like the real
// router, a graceful close returns nil rather than the context error.
type mockRouter struct {
	runErr  error
	running chan struct{}
}

func newMockRouter() *mockRouter {
	return &mockRouter{running: make(chan struct{}, 1)}
}

func (m *mockRouter) Run(ctx context.Context) error {
	select {
	case m.running <- struct{}{}:
	default:
	}
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return nil
}

func TestEventRouterService_Interface(t *testing.T) {
	t.Parallel()
	var _ suture.Service = (*EventRouterService)(nil)
}

func TestEventRouterService_Serve(t *testing.T) {
	t.Parallel()

	router := newMockRouter()
	svc := NewEventRouterService(router)
	if got := svc.String(); got != "event-router" {
		t.Errorf("String() = %q, want event-router", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case <-router.running:
	case <-time.After(2 * time.Second):
		t.Fatal("router never started")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve error = %v, want nil after graceful close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return within 2s")
	}
}

func TestEventRouterService_TransportFailure(t *testing.T) {
	t.Parallel()

	router := newMockRouter()
	router.runErr = errors.New("consume feedback.submitted: stream deleted")
	svc := NewEventRouterService(router)

	err := svc.Serve(context.Background())
	if !errors.Is(err, router.runErr) {
		t.Errorf("Serve error = %v, want %v", err, router.runErr)
	}
}
