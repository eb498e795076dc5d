// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// createSchema creates the experience-log tables and indexes.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		// seq gives a total insertion order. occurred_at alone cannot:
		// feedback for different users can land within the same tick.
		`CREATE SEQUENCE IF NOT EXISTS experiences_seq START 1`,

		`CREATE TABLE IF NOT EXISTS experiences (
			id UUID PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('experiences_seq'),
			user_id TEXT NOT NULL,
			content_id TEXT NOT NULL,

			-- Measured emotional state when the recommendation was made
			valence_before DOUBLE NOT NULL,
			arousal_before DOUBLE NOT NULL,
			stress_before DOUBLE NOT NULL,
			confidence_before DOUBLE NOT NULL,
			measured_before TIMESTAMP NOT NULL,

			-- Measured emotional state after viewing
			valence_after DOUBLE NOT NULL,
			arousal_after DOUBLE NOT NULL,
			stress_after DOUBLE NOT NULL,
			confidence_after DOUBLE NOT NULL,
			measured_after TIMESTAMP NOT NULL,

			-- Goal state for the cycle
			target_valence DOUBLE NOT NULL,
			target_arousal DOUBLE NOT NULL,
			target_stress DOUBLE NOT NULL,
			intensity TEXT NOT NULL,

			-- Outcome signals
			reward DOUBLE NOT NULL,
			q_delta DOUBLE NOT NULL,
			completed BOOLEAN NOT NULL,
			rating INTEGER NOT NULL,
			watched_seconds DOUBLE NOT NULL,
			total_seconds DOUBLE NOT NULL,

			occurred_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_experiences_user_seq
			ON experiences (user_id, seq)`,

		`CREATE INDEX IF NOT EXISTS idx_experiences_user_time
			ON experiences (user_id, occurred_at)`,

		`CREATE INDEX IF NOT EXISTS idx_experiences_content
			ON experiences (content_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}
