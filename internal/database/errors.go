// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package database

import (
	"io"

	"github.com/rs/zerolog"
)

// closeWithLog closes a resource and logs a warning when closing fails.
// Used in cleanup paths where the close error must not mask the real one.
func closeWithLog(closer io.Closer, logger zerolog.Logger, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Str("type", resourceType).Err(err).Msg("failed to close resource")
	}
}

// closeQuietly closes a resource and discards the error. Used during
// construction failures where the original error is being returned.
func closeQuietly(closer io.Closer) {
	if closer == nil {
		return
	}
	//nolint:errcheck // Intentionally discarded: the caller reports the original error
	_ = closer.Close()
}
