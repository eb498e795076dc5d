// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

//go:build nats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/config"
)

// JetStream consumer identity. The queue group spreads feedback across
// subscriber instances; the durable name preserves consumer position
// across restarts.
const (
	feedbackQueueGroup  = "resonate-feedback"
	feedbackDurableName = "resonate-feedback"

	// subscribersCount bounds in-process consumer concurrency. Feedback
	// application serializes per user inside the store, so a small fanout
	// is enough.
	subscribersCount = 4

	// maxDeliver is a transport-level redelivery ceiling. Handler retries
	// happen in-process in the router; this only caps redeliveries after
	// crashes or ack-wait expiry.
	maxDeliver = 10

	maxAckPending = 256

	// streamDuplicateWindow is how long JetStream remembers message IDs
	// for server-side deduplication.
	streamDuplicateWindow = 2 * time.Minute
)

func natsOptions(cfg config.NATSConfig, logger zerolog.Logger) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			event := logger.Error().Err(err)
			if sub != nil {
				event = event.Str("subject", sub.Subject)
			}
			event.Msg("NATS async error")
		}),
	}
}

// NewNATSPublisher dials NATS and returns a JetStream publisher with
// message ID tracking for server-side deduplication. The stream must
// already exist; call EnsureStream first.
func NewNATSPublisher(cfg config.NATSConfig, logger zerolog.Logger) (message.Publisher, error) {
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, NewWatermillLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}

// NewNATSSubscriber dials NATS and returns a durable JetStream subscriber
// bound to the configured stream.
func NewNATSSubscriber(cfg config.NATSConfig, logger zerolog.Logger) (message.Subscriber, error) {
	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(maxDeliver),
		natsgo.MaxAckPending(maxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
		// Bind to the provisioned stream. Subscription subjects contain
		// no stream name, and auto-provision must stay off so the stream
		// keeps the configuration EnsureStream gave it.
		natsgo.BindStream(cfg.StreamName),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: feedbackQueueGroup,
		SubscribersCount: subscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    feedbackDurableName,
		},
	}, NewWatermillLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	return sub, nil
}

// NewNATSFanoutSubscriber dials NATS and returns an ephemeral JetStream
// subscriber for broadcast-style consumption. Unlike NewNATSSubscriber it
// joins no queue group and keeps no durable state, so every replica
// running one receives every message. Used by the websocket policy relay.
func NewNATSFanoutSubscriber(cfg config.NATSConfig, logger zerolog.Logger) (message.Subscriber, error) {
	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
		natsgo.BindStream(cfg.StreamName),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
		},
	}, NewWatermillLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create NATS fanout subscriber: %w", err)
	}
	return sub, nil
}

// EnsureStream creates or updates the feedback stream. Idempotent; run it
// before any publisher or subscriber connects so the stream carries the
// intended retention and deduplication settings.
func EnsureStream(ctx context.Context, cfg config.NATSConfig, logger zerolog.Logger) error {
	nc, err := natsgo.Connect(cfg.URL, natsOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name: cfg.StreamName,
		// The poison topic is listed explicitly because it is not under
		// the feedback.> hierarchy, and parked messages must persist too.
		Subjects:    []string{"feedback.>", TopicFeedbackPoison},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    cfg.MaxStore,
		MaxMsgs:     -1,
		Duplicates:  streamDuplicateWindow,
		Replicas:    1,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
		AllowRollup: true,
	}

	_, err = js.Stream(ctx, cfg.StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.StreamName, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", cfg.StreamName, err)
	}

	logger.Info().
		Str("stream", cfg.StreamName).
		Msg("JetStream stream ready")
	return nil
}

// EmbeddedServer runs an in-process NATS JetStream server for deployments
// without an external broker. Clients connect through ClientURL, which
// reflects the dynamically assigned port.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts an embedded NATS server with JetStream enabled
// and waits until it accepts connections.
func NewEmbeddedServer(cfg config.NATSConfig, logger zerolog.Logger) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName:         "resonate-events",
		Host:               "127.0.0.1",
		Port:               -1,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		DontListen:         false,
		MaxPayload:         8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	logger.Info().
		Str("client_url", ns.ClientURL()).
		Str("store_dir", cfg.StoreDir).
		Msg("embedded NATS server started")

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to finish, or returns early
// when the context is canceled.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}
