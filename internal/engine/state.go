// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"fmt"
	"math"
)

// Discretizer maps continuous emotional coordinates to a bounded discrete
// state key by bucketing each axis independently into equal-width bins.
// The coarsening is deliberate: it bounds the state space so the Q-table
// converges with limited data, trading granularity for learnability.
//
// Discretizer is a pure function holder; it is safe for concurrent use.
type Discretizer struct {
	cfg DiscretizerConfig
}

// NewDiscretizer builds a discretizer from validated configuration.
func NewDiscretizer(cfg DiscretizerConfig) *Discretizer {
	return &Discretizer{cfg: cfg}
}

// Key derives the state key for an emotional state. The same state always
// produces the same key; axis values on the domain maximum map to the last
// bucket, never past it.
func (d *Discretizer) Key(s EmotionalState) StateKey {
	v := bucketIndex(s.Valence, -1, 1, d.cfg.ValenceBuckets)
	a := bucketIndex(s.Arousal, -1, 1, d.cfg.ArousalBuckets)
	st := bucketIndex(s.Stress, 0, 1, d.cfg.StressBuckets)
	return StateKey(fmt.Sprintf("v%d:a%d:s%d", v, a, st))
}

// States returns the size of the discrete state space.
func (d *Discretizer) States() int {
	return d.cfg.ValenceBuckets * d.cfg.ArousalBuckets * d.cfg.StressBuckets
}

// bucketIndex maps value in [min, max] to an index in [0, n-1] using
// equal-width bins. Out-of-domain values clamp to the boundary buckets, so
// the index is always valid even for contract-violating input.
func bucketIndex(value, min, max float64, n int) int {
	if n <= 1 {
		return 0
	}
	idx := int(math.Floor((value - min) / (max - min) * float64(n)))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}
