// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"fmt"
	"math"
)

// zeroVecEpsilon is the squared-away threshold below which a transition
// vector counts as zero movement and alignment becomes neutral.
const zeroVecEpsilon = 1e-9

// RewardResult is the scored outcome of one feedback tuple.
type RewardResult struct {
	// Reward is the final scalar, clamped to [-1, 1].
	Reward float64 `json:"reward"`

	// Strategy is the reward shape that produced the score.
	Strategy string `json:"strategy"`

	// Components maps component names to their raw values (alignment and
	// magnitude on their natural [0, 1] scales, adjustment terms signed).
	Components map[string]float64 `json:"components"`

	// Explanation names the dominant component. Diagnostic only; never
	// used for control flow.
	Explanation string `json:"explanation"`
}

// RewardCalculator turns a (before, after, desired, completion, rating)
// tuple into a scalar reward. It is pure and total: any in-range input
// produces a finite reward in [-1, 1] without error. Out-of-range input is
// a caller contract violation with undefined results.
type RewardCalculator struct {
	cfg RewardConfig
}

// NewRewardCalculator builds a calculator from validated configuration.
func NewRewardCalculator(cfg RewardConfig) *RewardCalculator {
	return &RewardCalculator{cfg: cfg}
}

// Strategy returns the active reward strategy name.
func (r *RewardCalculator) Strategy() string { return r.cfg.Strategy }

// Calculate scores one closed feedback loop under the configured strategy.
func (r *RewardCalculator) Calculate(before, after EmotionalState, desired DesiredState, completed bool, rating int, watchedSeconds, totalSeconds float64) RewardResult {
	frac := watchedFraction(completed, watchedSeconds, totalSeconds)
	if r.cfg.Strategy == StrategyOutcome {
		return r.outcome(before, after, desired, frac, rating)
	}
	return r.directional(before, after, desired, frac, rating)
}

// directional scores the transition itself: how well the actual movement
// vector aligned with the required one, and how much of the required
// distance was covered. The alignment/magnitude core is centered so that
// neutral movement scores zero; proximity, completion, and rating adjust
// around it.
func (r *RewardCalculator) directional(before, after EmotionalState, desired DesiredState, frac float64, rating int) RewardResult {
	actual := transitionOf(before, after, r.cfg.IncludeStress)
	required := requiredTransition(before, desired, r.cfg.IncludeStress)

	alignment := 0.5 // neutral when either vector has no magnitude
	if cos, ok := cosine(actual, required); ok {
		alignment = (cos + 1) / 2
	}

	var magnitude float64
	actualNorm, requiredNorm := vecNorm(actual), vecNorm(required)
	switch {
	case requiredNorm*requiredNorm < zeroVecEpsilon:
		// Already at the goal: staying put earns full credit, drifting
		// loses it in proportion to the drift.
		magnitude = 1 - math.Min(actualNorm, 1)
	default:
		magnitude = math.Min(actualNorm/requiredNorm, 1)
	}

	core := r.cfg.DirectionWeight*alignment + r.cfg.MagnitudeWeight*magnitude - 0.5

	proximity := 0.0
	if stateDistance(after, desired) <= r.cfg.ProximityRadius {
		proximity = r.cfg.ProximityBonus
	}

	completion := completionTerm(frac, r.cfg.CompletionWeight)
	ratingTerm := ratingTerm(rating, r.cfg.RatingWeight)

	reward := clamp(core+proximity+completion+ratingTerm, -1, 1)

	components := map[string]float64{
		"direction":  alignment,
		"magnitude":  magnitude,
		"proximity":  proximity,
		"completion": completion,
		"rating":     ratingTerm,
	}

	return RewardResult{
		Reward:     reward,
		Strategy:   StrategyDirectional,
		Components: components,
		Explanation: explainDirectional(reward, map[string]float64{
			"direction":  r.cfg.DirectionWeight * (alignment - 0.5),
			"magnitude":  r.cfg.MagnitudeWeight * (magnitude - 0.5),
			"proximity":  proximity,
			"completion": completion,
			"rating":     ratingTerm,
		}),
	}
}

// outcome scores the end position: the fraction of the starting distance
// to the desired state that the viewing closed, blended with completion
// and rating on fixed weights.
func (r *RewardCalculator) outcome(before, after EmotionalState, desired DesiredState, frac float64, rating int) RewardResult {
	distBefore := stateDistance(before, desired)
	distAfter := stateDistance(after, desired)

	var improvement float64
	switch {
	case distBefore*distBefore < zeroVecEpsilon:
		if distAfter*distAfter < zeroVecEpsilon {
			improvement = 1 // started at the goal and stayed
		} else {
			improvement = -math.Min(distAfter, 1)
		}
	default:
		improvement = clamp((distBefore-distAfter)/distBefore, -1, 1)
	}

	completion := 2*frac - 1
	var ratingScore float64
	if rating >= 1 && rating <= 5 {
		ratingScore = (float64(rating) - 3) / 2
	}

	reward := clamp(
		r.cfg.ImprovementWeight*improvement+
			r.cfg.OutcomeCompletionWeight*completion+
			r.cfg.OutcomeRatingWeight*ratingScore,
		-1, 1)

	components := map[string]float64{
		"improvement": improvement,
		"completion":  completion,
		"rating":      ratingScore,
	}

	return RewardResult{
		Reward:     reward,
		Strategy:   StrategyOutcome,
		Components: components,
		Explanation: explainOutcome(reward, map[string]float64{
			"improvement": r.cfg.ImprovementWeight * improvement,
			"completion":  r.cfg.OutcomeCompletionWeight * completion,
			"rating":      r.cfg.OutcomeRatingWeight * ratingScore,
		}),
	}
}

// watchedFraction mirrors Experience.WatchedFraction for raw inputs.
func watchedFraction(completed bool, watchedSeconds, totalSeconds float64) float64 {
	if totalSeconds > 0 {
		return clamp(watchedSeconds/totalSeconds, 0, 1)
	}
	if completed {
		return 1
	}
	return 0
}

// completionTerm maps watched fraction to a signed adjustment: -weight at
// 0%, zero at 10%, +weight at 100%.
func completionTerm(frac, weight float64) float64 {
	if frac >= 0.1 {
		return weight * (frac - 0.1) / 0.9
	}
	return weight * (frac - 0.1) / 0.1
}

// ratingTerm maps a 1-5 star rating linearly to [-weight, +weight] with
// 3 stars neutral. Unrated (0) contributes nothing.
func ratingTerm(rating int, weight float64) float64 {
	if rating < 1 || rating > 5 {
		return 0
	}
	return weight * (float64(rating) - 3) / 2
}

// transitionOf is the actual movement vector after - before.
func transitionOf(before, after EmotionalState, includeStress bool) []float64 {
	v := []float64{after.Valence - before.Valence, after.Arousal - before.Arousal}
	if includeStress {
		v = append(v, after.Stress-before.Stress)
	}
	return v
}

// requiredTransition is the movement vector desired - before.
func requiredTransition(before EmotionalState, desired DesiredState, includeStress bool) []float64 {
	v := []float64{desired.TargetValence - before.Valence, desired.TargetArousal - before.Arousal}
	if includeStress {
		v = append(v, desired.TargetStress-before.Stress)
	}
	return v
}

// stateDistance is the Euclidean distance from a state to the desired
// state over all three axes.
func stateDistance(s EmotionalState, d DesiredState) float64 {
	dv := s.Valence - d.TargetValence
	da := s.Arousal - d.TargetArousal
	ds := s.Stress - d.TargetStress
	return math.Sqrt(dv*dv + da*da + ds*ds)
}

// cosine returns the cosine similarity of two vectors. ok is false when
// either vector has (near) zero magnitude, where the quantity is undefined.
func cosine(a, b []float64) (cos float64, ok bool) {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na < zeroVecEpsilon || nb < zeroVecEpsilon {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// vecNorm is the Euclidean norm.
func vecNorm(v []float64) float64 {
	var n float64
	for _, x := range v {
		n += x * x
	}
	return math.Sqrt(n)
}

// clamp bounds x to [lo, hi].
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// explainDirectional names the dominant signed contribution.
func explainDirectional(reward float64, contributions map[string]float64) string {
	name, value := dominant(contributions)
	var detail string
	switch name {
	case "direction":
		if value >= 0 {
			detail = "moved with the desired transition"
		} else {
			detail = "moved against the desired transition"
		}
	case "magnitude":
		if value >= 0 {
			detail = "covered most of the required distance"
		} else {
			detail = "covered little of the required distance"
		}
	case "proximity":
		detail = "landed within reach of the desired state"
	case "completion":
		if value >= 0 {
			detail = "watched through to the end"
		} else {
			detail = "abandoned early"
		}
	case "rating":
		if value >= 0 {
			detail = "rated highly"
		} else {
			detail = "rated poorly"
		}
	}
	return fmt.Sprintf("%s: %s", rewardBand(reward), detail)
}

// explainOutcome names the dominant signed contribution.
func explainOutcome(reward float64, contributions map[string]float64) string {
	name, value := dominant(contributions)
	var detail string
	switch name {
	case "improvement":
		if value >= 0 {
			detail = "ended closer to the desired state"
		} else {
			detail = "ended farther from the desired state"
		}
	case "completion":
		if value >= 0 {
			detail = "watched through to the end"
		} else {
			detail = "abandoned early"
		}
	case "rating":
		if value >= 0 {
			detail = "rated highly"
		} else {
			detail = "rated poorly"
		}
	}
	return fmt.Sprintf("%s: %s", rewardBand(reward), detail)
}

// dominant returns the contribution with the largest absolute value.
// Ties resolve to the lexicographically smallest name for determinism.
func dominant(contributions map[string]float64) (string, float64) {
	var bestName string
	var bestValue float64
	for name, value := range contributions {
		switch {
		case bestName == "",
			math.Abs(value) > math.Abs(bestValue),
			math.Abs(value) == math.Abs(bestValue) && name < bestName:
			bestName, bestValue = name, value
		}
	}
	return bestName, bestValue
}

// rewardBand labels the reward for explanation strings.
func rewardBand(reward float64) string {
	switch {
	case reward >= 0.5:
		return "strongly positive"
	case reward >= 0.1:
		return "positive"
	case reward > -0.1:
		return "neutral"
	case reward > -0.5:
		return "negative"
	default:
		return "strongly negative"
	}
}
