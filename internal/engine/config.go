// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"fmt"
	"math"
	"time"
)

// Reward strategy identifiers. Both shapes ship; exactly one is active.
const (
	// StrategyDirectional scores the transition vector itself: cosine
	// alignment of actual vs desired movement plus a magnitude ratio.
	StrategyDirectional = "directional"

	// StrategyOutcome scores the end position: proximity improvement
	// toward the desired state plus completion and rating terms.
	StrategyOutcome = "outcome"
)

// Exploration strategy identifiers.
const (
	// ExplorationEpsilonGreedy picks a uniform random candidate with
	// probability epsilon, otherwise the best-known action.
	ExplorationEpsilonGreedy = "epsilon_greedy"

	// ExplorationUCB adds an upper-confidence bonus favoring low
	// visit-count actions.
	ExplorationUCB = "ucb"
)

// weightTolerance is the allowed numeric slack when weights must sum to 1.
const weightTolerance = 1e-9

// Config contains all tunables for the recommendation engine.
type Config struct {
	// Discretizer controls state-space bucketing.
	Discretizer DiscretizerConfig `json:"discretizer" koanf:"discretizer"`

	// Reward controls the reward function.
	Reward RewardConfig `json:"reward" koanf:"reward"`

	// Policy controls Q-learning and exploration.
	Policy PolicyConfig `json:"policy" koanf:"policy"`

	// Ranker controls score fusion and output size.
	Ranker RankerConfig `json:"ranker" koanf:"ranker"`

	// Analytics controls progress and convergence computation.
	Analytics AnalyticsConfig `json:"analytics" koanf:"analytics"`

	// Cache controls the ranking response cache.
	Cache CacheConfig `json:"cache" koanf:"cache"`

	// Seed is the random seed for deterministic exploration draws.
	// If zero, a time-based seed is used.
	Seed int64 `json:"seed" koanf:"seed"`
}

// DiscretizerConfig sets per-axis bucket counts. The defaults give a
// 75-state space: coarse enough to converge with limited data.
type DiscretizerConfig struct {
	// ValenceBuckets is the number of equal-width valence bins over [-1, 1].
	ValenceBuckets int `json:"valence_buckets" koanf:"valence_buckets"`

	// ArousalBuckets is the number of equal-width arousal bins over [-1, 1].
	ArousalBuckets int `json:"arousal_buckets" koanf:"arousal_buckets"`

	// StressBuckets is the number of equal-width stress bins over [0, 1].
	StressBuckets int `json:"stress_buckets" koanf:"stress_buckets"`
}

// RewardConfig sets the reward strategy and its weights.
type RewardConfig struct {
	// Strategy selects the active reward shape: "directional" or "outcome".
	Strategy string `json:"strategy" koanf:"strategy"`

	// DirectionWeight weights cosine alignment of actual vs desired
	// movement. DirectionWeight + MagnitudeWeight must equal 1.
	DirectionWeight float64 `json:"direction_weight" koanf:"direction_weight"`

	// MagnitudeWeight weights the distance-covered ratio.
	MagnitudeWeight float64 `json:"magnitude_weight" koanf:"magnitude_weight"`

	// IncludeStress folds stress into the transition vectors as a third
	// axis for the stricter directional variant.
	IncludeStress bool `json:"include_stress" koanf:"include_stress"`

	// ProximityBonus is the flat bonus for landing near the desired state.
	ProximityBonus float64 `json:"proximity_bonus" koanf:"proximity_bonus"`

	// ProximityRadius is the Euclidean distance that counts as "near".
	ProximityRadius float64 `json:"proximity_radius" koanf:"proximity_radius"`

	// CompletionWeight scales the watched-fraction term.
	// CompletionWeight + RatingWeight must not exceed 0.25.
	CompletionWeight float64 `json:"completion_weight" koanf:"completion_weight"`

	// RatingWeight scales the star-rating term.
	RatingWeight float64 `json:"rating_weight" koanf:"rating_weight"`

	// ImprovementWeight weights proximity improvement in the outcome
	// strategy. The three outcome weights must sum to 1.
	ImprovementWeight float64 `json:"improvement_weight" koanf:"improvement_weight"`

	// OutcomeCompletionWeight weights completion in the outcome strategy.
	OutcomeCompletionWeight float64 `json:"outcome_completion_weight" koanf:"outcome_completion_weight"`

	// OutcomeRatingWeight weights rating in the outcome strategy.
	OutcomeRatingWeight float64 `json:"outcome_rating_weight" koanf:"outcome_rating_weight"`
}

// PolicyConfig sets the Q-learning parameters and exploration strategy.
type PolicyConfig struct {
	// LearningRate is alpha in the TD rule, in (0, 1].
	LearningRate float64 `json:"learning_rate" koanf:"learning_rate"`

	// DiscountFactor is gamma in the TD rule, in [0, 1).
	DiscountFactor float64 `json:"discount_factor" koanf:"discount_factor"`

	// DefaultQ is the value reported for never-updated cells. The
	// optimistic-but-neutral prior favors trying unseen content once.
	DefaultQ float64 `json:"default_q" koanf:"default_q"`

	// Exploration selects and tunes the exploration strategy.
	Exploration ExplorationConfig `json:"exploration" koanf:"exploration"`
}

// ExplorationConfig tunes epsilon-greedy and UCB exploration.
type ExplorationConfig struct {
	// Strategy is "epsilon_greedy" or "ucb".
	Strategy string `json:"strategy" koanf:"strategy"`

	// InitialEpsilon is a new user's exploration probability.
	InitialEpsilon float64 `json:"initial_epsilon" koanf:"initial_epsilon"`

	// EpsilonDecay multiplies epsilon after each processed experience.
	EpsilonDecay float64 `json:"epsilon_decay" koanf:"epsilon_decay"`

	// MinEpsilon floors the decay so exploration never fully stops and
	// the policy keeps adapting to drifting preferences.
	MinEpsilon float64 `json:"min_epsilon" koanf:"min_epsilon"`

	// UCBConfidence is c in the bonus c*sqrt(ln N / n_i).
	UCBConfidence float64 `json:"ucb_confidence" koanf:"ucb_confidence"`
}

// RankerConfig sets score-fusion weights and output limits.
type RankerConfig struct {
	// QWeight weights the normalized Q-value. QWeight + SimilarityWeight
	// must equal 1.
	QWeight float64 `json:"q_weight" koanf:"q_weight"`

	// SimilarityWeight weights the retriever similarity score.
	SimilarityWeight float64 `json:"similarity_weight" koanf:"similarity_weight"`

	// DefaultLimit is the result count when a request omits one.
	DefaultLimit int `json:"default_limit" koanf:"default_limit"`

	// MaxLimit caps the requestable result count.
	MaxLimit int `json:"max_limit" koanf:"max_limit"`
}

// AnalyticsConfig sets the windows behind progress computation.
type AnalyticsConfig struct {
	// TrendWindow is the number of rewards per trend comparison window.
	TrendWindow int `json:"trend_window" koanf:"trend_window"`

	// TrendThreshold is the mean-delta beyond which a trend is declared.
	TrendThreshold float64 `json:"trend_threshold" koanf:"trend_threshold"`

	// MinExperiences is the cold-start cutoff: below it the convergence
	// score is forced to zero and the stage to exploring.
	MinExperiences int `json:"min_experiences" koanf:"min_experiences"`

	// RecentWindow is the number of recent experiences used for variance,
	// stability, and recent-reward terms.
	RecentWindow int `json:"recent_window" koanf:"recent_window"`

	// SaturationCount is the experience count treated as full evidence.
	SaturationCount int `json:"saturation_count" koanf:"saturation_count"`

	// HistoryLimit caps how much of the log one progress computation reads.
	HistoryLimit int `json:"history_limit" koanf:"history_limit"`

	// TopContent is how many best/worst content entries to report.
	TopContent int `json:"top_content" koanf:"top_content"`
}

// CacheConfig tunes the ranking response cache.
type CacheConfig struct {
	// Enabled turns response caching on.
	Enabled bool `json:"enabled" koanf:"enabled"`

	// Capacity is the maximum number of cached responses.
	Capacity int `json:"capacity" koanf:"capacity"`

	// TTL is how long a cached response stays valid.
	TTL time.Duration `json:"ttl" koanf:"ttl"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Discretizer: DiscretizerConfig{
			ValenceBuckets: 5,
			ArousalBuckets: 5,
			StressBuckets:  3,
		},
		Reward: RewardConfig{
			Strategy:                StrategyDirectional,
			DirectionWeight:         0.6,
			MagnitudeWeight:         0.4,
			IncludeStress:           false,
			ProximityBonus:          0.2,
			ProximityRadius:         0.15,
			CompletionWeight:        0.1,
			RatingWeight:            0.1,
			ImprovementWeight:       0.5,
			OutcomeCompletionWeight: 0.3,
			OutcomeRatingWeight:     0.2,
		},
		Policy: PolicyConfig{
			LearningRate:   0.1,
			DiscountFactor: 0.9,
			DefaultQ:       0.5,
			Exploration: ExplorationConfig{
				Strategy:       ExplorationEpsilonGreedy,
				InitialEpsilon: 0.3,
				EpsilonDecay:   0.95,
				MinEpsilon:     0.1,
				UCBConfidence:  1.5,
			},
		},
		Ranker: RankerConfig{
			QWeight:          0.7,
			SimilarityWeight: 0.3,
			DefaultLimit:     10,
			MaxLimit:         100,
		},
		Analytics: AnalyticsConfig{
			TrendWindow:     10,
			TrendThreshold:  0.1,
			MinExperiences:  5,
			RecentWindow:    20,
			SaturationCount: 50,
			HistoryLimit:    500,
			TopContent:      3,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1024,
			TTL:      30 * time.Second,
		},
	}
}

// Validate checks all parameters and cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Discretizer.Validate(); err != nil {
		return fmt.Errorf("discretizer: %w", err)
	}
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("reward: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := c.Ranker.Validate(); err != nil {
		return fmt.Errorf("ranker: %w", err)
	}
	if err := c.Analytics.Validate(); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Validate checks bucket counts.
func (c *DiscretizerConfig) Validate() error {
	if c.ValenceBuckets < 1 {
		return fmt.Errorf("valence_buckets must be >= 1, got %d", c.ValenceBuckets)
	}
	if c.ArousalBuckets < 1 {
		return fmt.Errorf("arousal_buckets must be >= 1, got %d", c.ArousalBuckets)
	}
	if c.StressBuckets < 1 {
		return fmt.Errorf("stress_buckets must be >= 1, got %d", c.StressBuckets)
	}
	return nil
}

// Validate checks strategy names and weight constraints.
func (c *RewardConfig) Validate() error {
	switch c.Strategy {
	case StrategyDirectional, StrategyOutcome:
	default:
		return fmt.Errorf("strategy must be %q or %q, got %q", StrategyDirectional, StrategyOutcome, c.Strategy)
	}
	if c.DirectionWeight < 0 || c.MagnitudeWeight < 0 {
		return fmt.Errorf("direction and magnitude weights must be >= 0, got %v and %v", c.DirectionWeight, c.MagnitudeWeight)
	}
	if math.Abs(c.DirectionWeight+c.MagnitudeWeight-1.0) > weightTolerance {
		return fmt.Errorf("direction_weight + magnitude_weight must equal 1.0, got %v", c.DirectionWeight+c.MagnitudeWeight)
	}
	if c.ProximityBonus < 0 || c.ProximityBonus > 1 {
		return fmt.Errorf("proximity_bonus must be in [0, 1], got %v", c.ProximityBonus)
	}
	if c.ProximityRadius <= 0 {
		return fmt.Errorf("proximity_radius must be > 0, got %v", c.ProximityRadius)
	}
	if c.CompletionWeight < 0 || c.RatingWeight < 0 {
		return fmt.Errorf("completion and rating weights must be >= 0, got %v and %v", c.CompletionWeight, c.RatingWeight)
	}
	if c.CompletionWeight+c.RatingWeight > 0.25+weightTolerance {
		return fmt.Errorf("completion_weight + rating_weight must not exceed 0.25, got %v", c.CompletionWeight+c.RatingWeight)
	}
	outcome := c.ImprovementWeight + c.OutcomeCompletionWeight + c.OutcomeRatingWeight
	if c.ImprovementWeight < 0 || c.OutcomeCompletionWeight < 0 || c.OutcomeRatingWeight < 0 {
		return fmt.Errorf("outcome weights must be >= 0")
	}
	if math.Abs(outcome-1.0) > weightTolerance {
		return fmt.Errorf("outcome strategy weights must sum to 1.0, got %v", outcome)
	}
	return nil
}

// Validate checks learning parameters.
func (c *PolicyConfig) Validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %v", c.LearningRate)
	}
	if c.DiscountFactor < 0 || c.DiscountFactor >= 1 {
		return fmt.Errorf("discount_factor must be in [0, 1), got %v", c.DiscountFactor)
	}
	if math.IsNaN(c.DefaultQ) || math.IsInf(c.DefaultQ, 0) {
		return fmt.Errorf("default_q must be finite, got %v", c.DefaultQ)
	}
	return c.Exploration.Validate()
}

// Validate checks exploration parameters.
func (c *ExplorationConfig) Validate() error {
	switch c.Strategy {
	case ExplorationEpsilonGreedy, ExplorationUCB:
	default:
		return fmt.Errorf("exploration strategy must be %q or %q, got %q", ExplorationEpsilonGreedy, ExplorationUCB, c.Strategy)
	}
	if c.InitialEpsilon < 0 || c.InitialEpsilon > 1 {
		return fmt.Errorf("initial_epsilon must be in [0, 1], got %v", c.InitialEpsilon)
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return fmt.Errorf("epsilon_decay must be in (0, 1], got %v", c.EpsilonDecay)
	}
	if c.MinEpsilon < 0 || c.MinEpsilon > c.InitialEpsilon {
		return fmt.Errorf("min_epsilon must be in [0, initial_epsilon], got %v", c.MinEpsilon)
	}
	if c.UCBConfidence <= 0 {
		return fmt.Errorf("ucb_confidence must be > 0, got %v", c.UCBConfidence)
	}
	return nil
}

// Validate checks fusion weights sum exactly to 1.
func (c *RankerConfig) Validate() error {
	if c.QWeight < 0 || c.SimilarityWeight < 0 {
		return fmt.Errorf("q_weight and similarity_weight must be >= 0, got %v and %v", c.QWeight, c.SimilarityWeight)
	}
	if math.Abs(c.QWeight+c.SimilarityWeight-1.0) > weightTolerance {
		return fmt.Errorf("q_weight + similarity_weight must equal 1.0, got %v", c.QWeight+c.SimilarityWeight)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be >= 1, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit must be >= default_limit, got %d", c.MaxLimit)
	}
	return nil
}

// Validate checks analytics windows.
func (c *AnalyticsConfig) Validate() error {
	if c.TrendWindow < 1 {
		return fmt.Errorf("trend_window must be >= 1, got %d", c.TrendWindow)
	}
	if c.TrendThreshold <= 0 {
		return fmt.Errorf("trend_threshold must be > 0, got %v", c.TrendThreshold)
	}
	if c.MinExperiences < 1 {
		return fmt.Errorf("min_experiences must be >= 1, got %d", c.MinExperiences)
	}
	if c.RecentWindow < 1 {
		return fmt.Errorf("recent_window must be >= 1, got %d", c.RecentWindow)
	}
	if c.SaturationCount < 1 {
		return fmt.Errorf("saturation_count must be >= 1, got %d", c.SaturationCount)
	}
	if c.HistoryLimit < c.RecentWindow {
		return fmt.Errorf("history_limit must be >= recent_window, got %d", c.HistoryLimit)
	}
	if c.TopContent < 0 {
		return fmt.Errorf("top_content must be >= 0, got %d", c.TopContent)
	}
	return nil
}

// Validate checks cache parameters.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Capacity < 1 {
		return fmt.Errorf("capacity must be >= 1 when enabled, got %d", c.Capacity)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be > 0 when enabled, got %v", c.TTL)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() Config {
	// All fields are values; a shallow copy is a deep copy.
	return *c
}
