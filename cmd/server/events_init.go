// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

//go:build nats

package main

import (
	"context"
	"fmt"

	"github.com/affectlab/resonate/internal/config"
	"github.com/affectlab/resonate/internal/eventprocessor"
	"github.com/affectlab/resonate/internal/logging"
	ws "github.com/affectlab/resonate/internal/websocket"
)

// initEvents assembles the event pipeline over NATS JetStream. With
// events.nats.embedded_server set, an in-process server is started first
// and its client URL overrides events.nats.url. The feedback stream is
// created (or updated) before any publisher or subscriber connects.
func initEvents(ctx context.Context, cfg *config.Config, hub *ws.Hub) (*eventComponents, error) {
	c := &eventComponents{}
	if !cfg.Events.Enabled {
		logging.Info().Msg("Event processing disabled")
		return c, nil
	}

	// fail unwinds whatever was opened before the failing step.
	fail := func(err error) (*eventComponents, error) {
		if cerr := c.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Error unwinding event pipeline")
		}
		return nil, err
	}

	logger := logging.Logger()
	natsCfg := cfg.Events.NATS

	if natsCfg.EmbeddedServer {
		srv, err := eventprocessor.NewEmbeddedServer(natsCfg, logger)
		if err != nil {
			return fail(fmt.Errorf("start embedded messaging server: %w", err))
		}
		c.embedded = srv
		c.closeFns = append(c.closeFns, func() error {
			sctx, cancel := context.WithTimeout(context.Background(), messagingShutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		natsCfg.URL = srv.ClientURL()
		logging.Info().Str("url", natsCfg.URL).Msg("Embedded messaging server started")
	} else {
		logging.Info().Str("url", natsCfg.URL).Msg("Using external messaging server")
	}

	if err := eventprocessor.EnsureStream(ctx, natsCfg, logger); err != nil {
		return fail(fmt.Errorf("ensure feedback stream: %w", err))
	}

	rawPub, err := eventprocessor.NewNATSPublisher(natsCfg, logger)
	if err != nil {
		return fail(fmt.Errorf("connect feedback publisher: %w", err))
	}
	c.publisher = eventprocessor.NewPublisher(rawPub, logger)
	c.closeFns = append(c.closeFns, c.publisher.Close)

	routerSub, err := eventprocessor.NewNATSSubscriber(natsCfg, logger)
	if err != nil {
		return fail(fmt.Errorf("connect feedback subscriber: %w", err))
	}
	c.routerSub = routerSub
	c.closeFns = append(c.closeFns, routerSub.Close)

	// rawPub doubles as the poison-queue publisher so dead messages land
	// on the same stream.
	router, err := eventprocessor.NewRouter(eventprocessor.DefaultRouterConfig(), rawPub, logger)
	if err != nil {
		return fail(fmt.Errorf("build event router: %w", err))
	}
	c.router = router
	c.closeFns = append(c.closeFns, router.Close)

	if hub != nil {
		fanoutSub, err := eventprocessor.NewNATSFanoutSubscriber(natsCfg, logger)
		if err != nil {
			return fail(fmt.Errorf("connect policy-update subscriber: %w", err))
		}
		c.closeFns = append(c.closeFns, fanoutSub.Close)
		c.relay = ws.NewPolicyRelay(hub, fanoutSub, eventprocessor.TopicPolicyUpdated)
	}

	logging.Info().
		Str("stream", natsCfg.StreamName).
		Bool("embedded", natsCfg.EmbeddedServer).
		Msg("Event processing initialized on JetStream")
	return c, nil
}
