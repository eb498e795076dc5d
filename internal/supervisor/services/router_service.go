// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package services

import (
	"context"
)

// FeedbackRouter is the run surface of *eventprocessor.Router.
type FeedbackRouter interface {
	Run(ctx context.Context) error
}

// EventRouterService runs the feedback event router under supervision.
// The router consumes queued feedback events and applies them to the
// learning engine; if a broken transport makes Run return early, the
// supervisor restarts it and consumption resumes from the stream's
// last acknowledged position.
type EventRouterService struct {
	router FeedbackRouter
	name   string
}

// NewEventRouterService wraps router.
func NewEventRouterService(router FeedbackRouter) *EventRouterService {
	return &EventRouterService{
		router: router,
		name:   "event-router",
	}
}

// Serve implements suture.Service. Run returns nil after a graceful
// close, which suture treats as a completed service once the context
// is done.
func (e *EventRouterService) Serve(ctx context.Context) error {
	return e.router.Run(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (e *EventRouterService) String() string {
	return e.name
}
