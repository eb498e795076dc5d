// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package eventprocessor

import (
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
)

// NewGoChannelPubSub builds the in-process transport used when no broker
// is configured. The same value serves as both publisher and subscriber,
// messages live only in memory, and nothing survives a restart. That is
// acceptable for the default deployment because the synchronous feedback
// path through the HTTP API does not depend on the event pipeline.
func NewGoChannelPubSub(logger zerolog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 64,
			Persistent:          false,
		},
		NewWatermillLogger(logger),
	)
}
