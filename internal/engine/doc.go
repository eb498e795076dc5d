// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

// Package engine implements an online reinforcement-learning recommendation
// engine that selects content intended to move a user from a measured
// emotional state toward a desired one.
//
// # Architecture
//
// The engine composes five collaborating parts around a single learning loop:
//
//   - Discretizer: maps continuous (valence, arousal, stress) coordinates
//     to a bounded discrete state key
//   - RewardCalculator: turns an emotional-state transition plus viewing
//     signals into a scalar reward in [-1, 1]
//   - Policy: owns the Q-table, the exploration strategy (epsilon-greedy or
//     UCB), and the temporal-difference update rule
//   - Ranker: fuses learned Q-values with similarity scores from a vector
//     retriever into a single ranked list, deciding per-slot exploration
//   - Progress: derives convergence and learning-quality metrics from the
//     accumulated experience log
//
// # Learning Loop
//
// An external emotion detector produces (current, desired) states. The
// retriever returns candidate content with similarity scores for the
// requested transition. The ranker fuses Q-values and similarity into
// ordered recommendations, marking some slots exploratory. When outcome
// feedback arrives, the reward calculator scores the observed transition
// and the policy applies the Q-learning update
//
//	Q(s,a) <- Q(s,a) + alpha * (r + gamma * max Q(s',a') - Q(s,a))
//
// before decaying the user's exploration rate toward its floor.
//
// # Design Principles
//
//   - Deterministic: seeded RNG, stable tie-breaking, reproducible rankings
//   - Stateless core: every component except the Q-table is a pure function
//     of request-scoped data
//   - Injected collaborators: the Q-table store, experience log, and vector
//     retriever are interfaces supplied at construction; no ambient globals
//   - Linearized writes: same-key Q-table updates serialize, distinct keys
//     proceed in parallel
//
// # Usage
//
//	eng, err := engine.New(cfg, qstore, experiences, retr, logger)
//	resp, err := eng.Rank(ctx, engine.RankRequest{
//	    UserID:  "u-123",
//	    Current: current,
//	    Desired: desired,
//	    Limit:   10,
//	})
//	result, err := eng.ApplyFeedback(ctx, fb)
//	progress, err := eng.Progress(ctx, "u-123")
//
// # Thread Safety
//
// The engine is safe for concurrent use. Ranking reads the Q-table without
// blocking writers except for the specific keys being written; feedback for
// the same (user, state, content) key serializes through the store.
package engine
