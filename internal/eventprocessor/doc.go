// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package eventprocessor provides asynchronous feedback processing on top
// of Watermill. Feedback events published to the feedback.received topic
// are consumed by a router that applies them to the learning engine, and
// every applied policy update is broadcast on feedback.policy.updated for
// downstream consumers.
//
// The default transport is Watermill's in-process gochannel pubsub, which
// needs no external broker and is what tests and single-node deployments
// use. Building with -tags nats swaps in NATS JetStream: a durable stream
// with at-least-once delivery, server-side message deduplication, and an
// optional embedded NATS server for installs that do not run their own.
//
// Delivery is at-least-once in both transports. The router deduplicates
// redeliveries by event ID before they reach the engine, retries transient
// handler failures with exponential backoff, and parks messages that keep
// failing on the dlq.feedback poison queue instead of blocking the stream.
package eventprocessor
