// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import "errors"

var (
	// ErrNATSNotEnabled is returned by NATS constructors in binaries built
	// without the nats tag.
	ErrNATSNotEnabled = errors.New("NATS event transport not enabled (build with -tags nats)")

	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("event publisher closed")

	// ErrTransportUnavailable is returned when the publisher's circuit
	// breaker is open and publishes are being rejected without reaching
	// the transport. Callers should treat it as a transient outage.
	ErrTransportUnavailable = errors.New("event transport unavailable")
)
