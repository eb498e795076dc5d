// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package testinfra manages Docker containers for integration tests.
//
// The unit suites run the event pipeline over in-process transports; the
// integration suites here swap in a real NATS JetStream broker through
// testcontainers-go, so stream provisioning, durable consumers, and
// server-side deduplication are exercised against the actual server.
//
//	func TestFeedbackPipeline(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//
//	    nats, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nats)
//
//	    cfg.URL = nats.URL
//	    // dial publishers and subscribers at cfg.URL
//	}
//
// Everything in this package sits behind the integration build tag.
// Tests skip cleanly when Docker is unreachable, so the default
// `go test ./...` run never needs a daemon; CI opts in with
// `go test -tags "integration nats" ./...`. The first run pulls the
// broker image, later runs hit the local image cache.
package testinfra
