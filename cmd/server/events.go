// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package main

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/affectlab/resonate/internal/eventprocessor"
	"github.com/affectlab/resonate/internal/supervisor"
	"github.com/affectlab/resonate/internal/supervisor/services"
	ws "github.com/affectlab/resonate/internal/websocket"
)

// messagingShutdownTimeout bounds the embedded server drain on shutdown.
const messagingShutdownTimeout = 10 * time.Second

// eventComponents holds the event pipeline assembled by initEvents. The
// build tag decides the transport underneath: NATS JetStream with -tags
// nats, in-process Go channels without. All fields are nil when events
// are disabled; callers check before wiring.
type eventComponents struct {
	// embedded is the in-process NATS server, nil unless the nats build
	// runs with events.nats.embedded_server set.
	embedded *eventprocessor.EmbeddedServer

	// publisher emits feedback.received and feedback.policy.updated.
	publisher *eventprocessor.Publisher

	// router consumes feedback.received; the applier is registered by
	// main once the engine exists, reading from routerSub.
	router    *eventprocessor.Router
	routerSub message.Subscriber

	// relay forwards feedback.policy.updated to the websocket hub, nil
	// without a hub.
	relay *ws.PolicyRelay

	// closeFns tear down what initEvents opened, run in reverse order.
	closeFns []func() error
}

// addServices registers the pipeline's long-running parts with the
// supervision tree. Disabled or absent parts are skipped.
func (c *eventComponents) addServices(tree *supervisor.SupervisorTree) {
	if c.embedded != nil {
		tree.AddMessagingService(services.NewMessagingServerService(c.embedded, messagingShutdownTimeout))
	}
	if c.relay != nil {
		tree.AddMessagingService(services.NewPolicyRelayService(c.relay))
	}
	if c.router != nil {
		tree.AddMessagingService(services.NewEventRouterService(c.router))
	}
}

// Close releases the pipeline in reverse construction order: the router
// drains before its transport closes, the embedded server goes last.
// Safe on a partially constructed or disabled pipeline.
func (c *eventComponents) Close() error {
	var errs []error
	for i := len(c.closeFns) - 1; i >= 0; i-- {
		if err := c.closeFns[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
