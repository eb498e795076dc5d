// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

//go:build !nats

package eventprocessor

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/affectlab/resonate/internal/config"
)

// NewNATSPublisher is a stub in binaries built without the nats tag.
func NewNATSPublisher(_ config.NATSConfig, _ zerolog.Logger) (message.Publisher, error) {
	return nil, ErrNATSNotEnabled
}

// NewNATSSubscriber is a stub in binaries built without the nats tag.
func NewNATSSubscriber(_ config.NATSConfig, _ zerolog.Logger) (message.Subscriber, error) {
	return nil, ErrNATSNotEnabled
}

// NewNATSFanoutSubscriber is a stub in binaries built without the nats tag.
func NewNATSFanoutSubscriber(_ config.NATSConfig, _ zerolog.Logger) (message.Subscriber, error) {
	return nil, ErrNATSNotEnabled
}

// EnsureStream is a stub in binaries built without the nats tag.
func EnsureStream(_ context.Context, _ config.NATSConfig, _ zerolog.Logger) error {
	return ErrNATSNotEnabled
}

// EmbeddedServer is a stub in binaries built without the nats tag.
type EmbeddedServer struct {
	clientURL string
}

// NewEmbeddedServer is a stub in binaries built without the nats tag.
func NewEmbeddedServer(_ config.NATSConfig, _ zerolog.Logger) (*EmbeddedServer, error) {
	return nil, ErrNATSNotEnabled
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown is a no-op on the stub.
func (s *EmbeddedServer) Shutdown(_ context.Context) error {
	return nil
}

// IsRunning always reports false on the stub.
func (s *EmbeddedServer) IsRunning() bool {
	return false
}
