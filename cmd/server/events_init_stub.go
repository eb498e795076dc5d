// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

//go:build !nats

package main

import (
	"context"
	"fmt"

	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/eventprocessor"
	"github.com/affectlab/resonate/internal/logging"
	ws "github.com/affectlab/resonate/internal/websocket"
)

// initEvents assembles the event pipeline over in-process Go channels in
// binaries built without the nats tag. The pipeline is the same Watermill
// topology as the JetStream build, minus durability: messages in flight
// are lost on restart.
func initEvents(_ context.Context, cfg *config.Config, hub *ws.Hub) (*eventComponents, error) {
	c := &eventComponents{}
	if !cfg.Events.Enabled {
		logging.Info().Msg("Event processing disabled")
		return c, nil
	}

	logger := logging.Logger()
	logging.Info().Msg("Event processing on in-process channels (build without nats tag)")

	// One pubsub backs the publisher, the router, and the relay fanout;
	// gochannel delivers every message to every subscriber of a topic.
	pubsub := eventprocessor.NewGoChannelPubSub(logger)
	c.publisher = eventprocessor.NewPublisher(pubsub, logger)
	c.closeFns = append(c.closeFns, c.publisher.Close)
	c.routerSub = pubsub

	router, err := eventprocessor.NewRouter(eventprocessor.DefaultRouterConfig(), pubsub, logger)
	if err != nil {
		if cerr := c.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Error unwinding event pipeline")
		}
		return nil, fmt.Errorf("build event router: %w", err)
	}
	c.router = router
	c.closeFns = append(c.closeFns, router.Close)

	if hub != nil {
		c.relay = ws.NewPolicyRelay(hub, pubsub, eventprocessor.TopicPolicyUpdated)
	}

	return c, nil
}
