// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Ranker fuses learned Q-values with retriever similarity into a single
// ordered recommendation list. Ranking never mutates the Q-table; the only
// stateful collaborator is the policy's seeded RNG behind per-slot
// exploration decisions.
type Ranker struct {
	cfg    RankerConfig
	policy *Policy
	logger zerolog.Logger
}

// NewRanker builds a ranker over the given policy.
func NewRanker(cfg RankerConfig, policy *Policy, logger zerolog.Logger) *Ranker {
	return &Ranker{
		cfg:    cfg,
		policy: policy,
		logger: logger.With().Str("component", "ranker").Logger(),
	}
}

// Rank scores, orders, and annotates the candidate set for one request.
// Each combined score is qWeight*qNorm + simWeight*similarity, a convex
// combination of two [0, 1] values. Ordering is deterministic: descending
// combined score, ties by similarity, then by content ID.
func (r *Ranker) Rank(ctx context.Context, userID string, key StateKey, current EmotionalState, desired DesiredState, candidates []Candidate) ([]Recommendation, error) {
	if len(candidates) == 0 {
		return []Recommendation{}, nil
	}

	entries, err := r.policy.Entries(ctx, userID, key, contentIDs(candidates))
	if err != nil {
		return nil, err
	}

	epsilon, err := r.policy.ExplorationRate(ctx, userID)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(candidates))
	visits := make(map[string]int, len(candidates))
	for _, c := range candidates {
		q := r.policy.DefaultQ()
		if e, ok := entries[c.ContentID]; ok && e.VisitCount > 0 {
			q = e.QValue
			visits[c.ContentID] = e.VisitCount
		}

		alignment := OutcomeAlignment(c.Profile, current, desired)
		recs = append(recs, Recommendation{
			ContentID:        c.ContentID,
			QValue:           q,
			Similarity:       c.Similarity,
			CombinedScore:    r.cfg.QWeight*normalizeQ(q) + r.cfg.SimilarityWeight*c.Similarity,
			PredictedOutcome: predictOutcome(current, c.Profile),
			OutcomeAlignment: alignment,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CombinedScore != recs[j].CombinedScore {
			return recs[i].CombinedScore > recs[j].CombinedScore
		}
		if recs[i].Similarity != recs[j].Similarity {
			return recs[i].Similarity > recs[j].Similarity
		}
		return recs[i].ContentID < recs[j].ContentID
	})

	// One exploration decision per output slot, made after ordering so a
	// slot's flag is never retroactively changed by re-sorting.
	for i := range recs {
		recs[i].IsExploration = r.policy.ExplorationDecision(epsilon, visits[recs[i].ContentID])
		recs[i].Reasoning = reasoning(recs[i], visits[recs[i].ContentID])
	}

	return recs, nil
}

// normalizeQ maps a raw Q-value onto [0, 1] for score fusion. Values
// already inside [0, 1] pass through unchanged; values outside (possible
// after repeated negative-reward updates, since rewards span [-1, 1]) are
// rescaled from the [-1, 1] convention via (q+1)/2 and clamped.
func normalizeQ(q float64) float64 {
	if q >= 0 && q <= 1 {
		return q
	}
	return clamp((q+1)/2, 0, 1)
}

// OutcomeAlignment scores how well a content profile's expected
// (valence, arousal) shift matches the user's desired offsets, in [0, 1].
// Either vector having zero magnitude yields exactly 0.5, the same neutral
// convention the reward calculator uses. Used for display and sanity
// checks, never for control flow.
func OutcomeAlignment(profile ContentProfile, current EmotionalState, desired DesiredState) float64 {
	want := []float64{desired.TargetValence - current.Valence, desired.TargetArousal - current.Arousal}
	have := []float64{profile.ValenceDelta, profile.ArousalDelta}
	cos, ok := cosine(have, want)
	if !ok {
		return 0.5
	}
	return (cos + 1) / 2
}

// predictOutcome shifts the current state by the content profile's deltas,
// clamped to each axis domain.
func predictOutcome(current EmotionalState, profile ContentProfile) EmotionalState {
	return EmotionalState{
		Valence: clamp(current.Valence+profile.ValenceDelta, -1, 1),
		Arousal: clamp(current.Arousal+profile.ArousalDelta, -1, 1),
		Stress:  clamp(current.Stress+profile.StressDelta, 0, 1),
	}
}

// reasoning builds the per-slot diagnostic string.
func reasoning(rec Recommendation, visitCount int) string {
	switch {
	case visitCount == 0:
		return fmt.Sprintf("untried in this state; expected effect matches your goal %.0f%%", rec.OutcomeAlignment*100)
	case rec.IsExploration:
		return fmt.Sprintf("trying something different; expected effect matches your goal %.0f%%", rec.OutcomeAlignment*100)
	default:
		return fmt.Sprintf("worked for you before (%d plays); expected effect matches your goal %.0f%%", visitCount, rec.OutcomeAlignment*100)
	}
}
