// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package services

import (
	"context"
	"errors"
	"time"
)

// messagingProbeInterval paces liveness checks on the embedded server.
const messagingProbeInterval = 5 * time.Second

// ErrMessagingServerDown reports that the embedded messaging server
// stopped outside a requested shutdown.
var ErrMessagingServerDown = errors.New("embedded messaging server is not running")

// MessagingServer is the lifecycle surface of
// *eventprocessor.EmbeddedServer.
type MessagingServer interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// MessagingServerService ties the embedded NATS server's lifetime to
// the supervision tree. The server starts when constructed, before the
// tree runs, so this wrapper does not launch it; it watches liveness
// and owns the shutdown. A server found dead surfaces as a Serve error,
// which puts the failure in the supervisor's log and failure accounting
// even though a restart cannot revive an externally crashed server.
type MessagingServerService struct {
	server          MessagingServer
	shutdownTimeout time.Duration
	name            string
}

// NewMessagingServerService wraps server. A non-positive
// shutdownTimeout falls back to 10s.
func NewMessagingServerService(server MessagingServer, shutdownTimeout time.Duration) *MessagingServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &MessagingServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "messaging-server",
	}
}

// Serve implements suture.Service.
func (m *MessagingServerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(messagingProbeInterval)
	defer ticker.Stop()

	for {
		if !m.server.IsRunning() {
			return ErrMessagingServerDown
		}

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
			defer cancel()

			if err := m.server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return ctx.Err()

		case <-ticker.C:
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (m *MessagingServerService) String() string {
	return m.name
}
