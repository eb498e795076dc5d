// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"math"
	"sort"
	"time"
)

// Convergence score weights. The four ingredients measure reward
// consistency, Q-value stability, recent reward level, and evidence
// volume; together they estimate how settled the policy is for a user.
const (
	convConsistencyWeight = 0.3
	convStabilityWeight   = 0.3
	convRewardWeight      = 0.2
	convSaturationWeight  = 0.2
)

// Stage thresholds over the 0-100 convergence score.
const (
	stageLearningFloor  = 30.0
	stageConfidentFloor = 70.0
)

// ProgressAnalyzer derives learning-progress snapshots from a user's
// experience log. It is a pure function of its inputs: no hidden state,
// identical logs produce identical snapshots.
type ProgressAnalyzer struct {
	cfg AnalyticsConfig
	exp ExplorationConfig
}

// NewProgressAnalyzer builds an analyzer. The exploration configuration is
// only used to approximate epsilon when the caller cannot supply one.
func NewProgressAnalyzer(cfg AnalyticsConfig, exp ExplorationConfig) *ProgressAnalyzer {
	return &ProgressAnalyzer{cfg: cfg, exp: exp}
}

// Compute derives the snapshot for one user from the ordered experience
// log (oldest first). Pass a negative epsilon when the live rate is
// unavailable; the analyzer then approximates it by decaying the initial
// rate over the experience count.
func (a *ProgressAnalyzer) Compute(userID string, history []Experience, epsilon float64) LearningProgress {
	n := len(history)

	if epsilon < 0 {
		epsilon = math.Max(a.exp.MinEpsilon, a.exp.InitialEpsilon*math.Pow(a.exp.EpsilonDecay, float64(n)))
	}

	progress := LearningProgress{
		UserID:          userID,
		ExperienceCount: n,
		RewardTrend:     TrendStable,
		ExplorationRate: epsilon,
		Stage:           StageExploring,
		ComputedAt:      time.Now().UTC(),
	}
	if n == 0 {
		return progress
	}

	rewards := make([]float64, n)
	for i, e := range history {
		rewards[i] = e.Reward
	}
	progress.AverageReward = mean(rewards)
	progress.RewardTrend = a.trend(rewards)
	progress.TopContent, progress.BottomContent = a.contentStats(history)

	// Cold start: below the minimum evidence the score is forced to zero
	// and the stage to exploring regardless of the formula.
	if n < a.cfg.MinExperiences {
		return progress
	}

	recent := history
	if n > a.cfg.RecentWindow {
		recent = history[n-a.cfg.RecentWindow:]
	}
	recentRewards := make([]float64, len(recent))
	deltas := make([]float64, len(recent))
	for i, e := range recent {
		recentRewards[i] = e.Reward
		deltas[i] = math.Abs(e.QDelta)
	}

	consistency := 1 - math.Min(1, variance(recentRewards))
	stability := clamp(1-mean(deltas), 0, 1)
	rewardScore := clamp((mean(recentRewards)+1)/2, 0, 1)
	saturation := math.Min(float64(n)/float64(a.cfg.SaturationCount), 1)

	score := 100 * (convConsistencyWeight*consistency +
		convStabilityWeight*stability +
		convRewardWeight*rewardScore +
		convSaturationWeight*saturation)
	progress.ConvergenceScore = clamp(score, 0, 100)

	switch {
	case progress.ConvergenceScore < stageLearningFloor:
		progress.Stage = StageExploring
	case progress.ConvergenceScore < stageConfidentFloor:
		progress.Stage = StageLearning
	default:
		progress.Stage = StageConfident
	}

	return progress
}

// trend compares the mean of the last window against the mean of the
// window before it. Below the minimum evidence, or with no preceding
// points, the trend is stable.
func (a *ProgressAnalyzer) trend(rewards []float64) RewardTrend {
	n := len(rewards)
	if n < a.cfg.MinExperiences {
		return TrendStable
	}

	w := a.cfg.TrendWindow
	recentStart := n - w
	if recentStart < 0 {
		recentStart = 0
	}
	recent := rewards[recentStart:]

	prevStart := recentStart - w
	if prevStart < 0 {
		prevStart = 0
	}
	previous := rewards[prevStart:recentStart]
	if len(previous) == 0 {
		return TrendStable
	}

	delta := mean(recent) - mean(previous)
	switch {
	case delta > a.cfg.TrendThreshold:
		return TrendImproving
	case delta < -a.cfg.TrendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// contentStats aggregates per-content outcomes and returns the best and
// worst performers by mean reward, ties broken by content ID.
func (a *ProgressAnalyzer) contentStats(history []Experience) (top, bottom []ContentStats) {
	if a.cfg.TopContent == 0 {
		return nil, nil
	}

	stats := a.AllContentStats(history)

	k := a.cfg.TopContent
	if k > len(stats) {
		k = len(stats)
	}
	top = append([]ContentStats(nil), stats[:k]...)

	bottom = make([]ContentStats, 0, k)
	for i := len(stats) - 1; i >= len(stats)-k; i-- {
		bottom = append(bottom, stats[i])
	}
	return top, bottom
}

// AllContentStats aggregates every content item in the history, ordered
// best mean reward first, ties broken by content ID.
func (a *ProgressAnalyzer) AllContentStats(history []Experience) []ContentStats {
	type acc struct {
		rewardSum  float64
		plays      int
		completed  int
		ratingSum  int
		ratedPlays int
	}
	byContent := make(map[string]*acc)
	for _, e := range history {
		c := byContent[e.ContentID]
		if c == nil {
			c = &acc{}
			byContent[e.ContentID] = c
		}
		c.rewardSum += e.Reward
		c.plays++
		if e.Completed {
			c.completed++
		}
		if e.Rating >= 1 && e.Rating <= 5 {
			c.ratingSum += e.Rating
			c.ratedPlays++
		}
	}

	stats := make([]ContentStats, 0, len(byContent))
	for id, c := range byContent {
		s := ContentStats{
			ContentID:      id,
			MeanReward:     c.rewardSum / float64(c.plays),
			Plays:          c.plays,
			CompletionRate: float64(c.completed) / float64(c.plays),
		}
		if c.ratedPlays > 0 {
			s.MeanRating = float64(c.ratingSum) / float64(c.ratedPlays)
		}
		stats = append(stats, s)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MeanReward != stats[j].MeanReward {
			return stats[i].MeanReward > stats[j].MeanReward
		}
		return stats[i].ContentID < stats[j].ContentID
	})

	return stats
}

// mean is the arithmetic mean; zero for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance; zero for fewer than two points.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}
