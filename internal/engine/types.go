// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"context"
	"fmt"
	"time"
)

// EmotionalState is an immutable snapshot of a user's measured emotional
// coordinates, produced by an external detector.
type EmotionalState struct {
	// Valence is the positivity axis, in [-1, 1].
	Valence float64 `json:"valence"`

	// Arousal is the energy axis, in [-1, 1].
	Arousal float64 `json:"arousal"`

	// Stress is the tension axis, in [0, 1].
	Stress float64 `json:"stress"`

	// Confidence is the detector's confidence in the measurement, in [0, 1].
	// Zero means unreported.
	Confidence float64 `json:"confidence,omitempty"`

	// MeasuredAt is when the state was captured.
	MeasuredAt time.Time `json:"measured_at,omitempty"`
}

// Intensity expresses how strong a state change the user wants.
type Intensity string

const (
	// IntensitySubtle requests a gentle nudge toward the target state.
	IntensitySubtle Intensity = "subtle"
	// IntensityModerate requests a clear but comfortable shift.
	IntensityModerate Intensity = "moderate"
	// IntensitySignificant requests the full transition.
	IntensitySignificant Intensity = "significant"
)

// Scale returns the fraction of the desired transition the retriever
// should look for. Unknown intensities behave as moderate.
func (i Intensity) Scale() float64 {
	switch i {
	case IntensitySubtle:
		return 0.33
	case IntensitySignificant:
		return 1.0
	default:
		return 0.66
	}
}

// Valid reports whether the intensity is one of the known levels.
// An empty intensity is valid and treated as moderate.
func (i Intensity) Valid() bool {
	switch i {
	case "", IntensitySubtle, IntensityModerate, IntensitySignificant:
		return true
	default:
		return false
	}
}

// DesiredState is the user's emotional goal for one recommendation cycle.
// It is owned by the session that spawned it and discarded once feedback
// closes the loop.
type DesiredState struct {
	// TargetValence is the desired positivity, in [-1, 1].
	TargetValence float64 `json:"target_valence"`

	// TargetArousal is the desired energy, in [-1, 1].
	TargetArousal float64 `json:"target_arousal"`

	// TargetStress is the desired tension, in [0, 1].
	TargetStress float64 `json:"target_stress"`

	// Intensity is how strong a shift the user wants.
	Intensity Intensity `json:"intensity,omitempty"`
}

// StateKey is the discretized, bucketed encoding of an emotional state,
// serialized as "v{bucket}:a{bucket}:s{bucket}". It is used only as a
// lookup key and never persisted as a first-class entity.
type StateKey string

// String returns the key's stable serialized form.
func (k StateKey) String() string { return string(k) }

// QEntry is one learned cell of the Q-table: the expected value of
// recommending a content item to a user in a discretized state.
// Entries are created lazily on first update and mutated only by the
// temporal-difference rule.
type QEntry struct {
	// UserID identifies the user the value was learned for.
	UserID string `json:"user_id"`

	// StateKey is the discretized state the value applies to.
	StateKey StateKey `json:"state_key"`

	// ContentID is the recommended content item.
	ContentID string `json:"content_id"`

	// QValue is the learned expected cumulative reward. Always finite.
	QValue float64 `json:"q_value"`

	// VisitCount is how many feedback updates this cell has received.
	VisitCount int `json:"visit_count"`

	// LastUpdated is when the cell was last mutated.
	LastUpdated time.Time `json:"last_updated"`
}

// ContentProfile is a content item's expected emotional effect, expressed
// as per-axis deltas produced by the external embedding pipeline.
type ContentProfile struct {
	// ValenceDelta is the expected valence shift, in [-2, 2].
	ValenceDelta float64 `json:"valence_delta"`

	// ArousalDelta is the expected arousal shift, in [-2, 2].
	ArousalDelta float64 `json:"arousal_delta"`

	// StressDelta is the expected stress shift, in [-1, 1].
	StressDelta float64 `json:"stress_delta"`
}

// Candidate is one content item returned by the vector retriever for a
// recommendation request. Candidates are ephemeral and never persisted.
type Candidate struct {
	// ContentID is the content item identifier.
	ContentID string `json:"content_id"`

	// Similarity is the retriever's similarity score, in [0, 1].
	Similarity float64 `json:"similarity"`

	// Profile is the content's expected emotional effect.
	Profile ContentProfile `json:"profile"`
}

// TransitionVector is the requested emotional shift handed to the
// retriever: desired minus current, per axis, scaled by intensity.
type TransitionVector struct {
	Valence float64 `json:"valence"`
	Arousal float64 `json:"arousal"`
	Stress  float64 `json:"stress"`
}

// Recommendation is one ranked output slot.
type Recommendation struct {
	// ContentID is the recommended content item.
	ContentID string `json:"content_id"`

	// QValue is the raw learned value used for ranking (default for
	// never-updated cells).
	QValue float64 `json:"q_value"`

	// Similarity is the retriever's similarity score, in [0, 1].
	Similarity float64 `json:"similarity"`

	// CombinedScore fuses normalized Q-value and similarity, in [0, 1].
	CombinedScore float64 `json:"combined_score"`

	// IsExploration marks slots chosen to gather information rather than
	// exploit the best-known value. Decided exactly once per slot.
	IsExploration bool `json:"is_exploration"`

	// PredictedOutcome is the expected post-viewing state: the current
	// state shifted by the content profile, clamped to axis domains.
	PredictedOutcome EmotionalState `json:"predicted_outcome"`

	// OutcomeAlignment scores how well the content's expected effect
	// matches the desired shift, in [0, 1] with 0.5 neutral.
	OutcomeAlignment float64 `json:"outcome_alignment"`

	// Reasoning is a short human-readable explanation. Diagnostic only.
	Reasoning string `json:"reasoning,omitempty"`
}

// Experience is one closed feedback loop: the unit the progress analytics
// consume. Experiences are append-only and immutable once written.
type Experience struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// ContentID is what was watched.
	ContentID string `json:"content_id"`

	// StateBefore is the measured state when the recommendation was made.
	StateBefore EmotionalState `json:"state_before"`

	// StateAfter is the measured state after viewing.
	StateAfter EmotionalState `json:"state_after"`

	// Desired is the goal state for the cycle.
	Desired DesiredState `json:"desired"`

	// Reward is the computed scalar reward, in [-1, 1].
	Reward float64 `json:"reward"`

	// QDelta is the Q-value change the experience caused (new minus old),
	// recorded at update time so convergence analysis can replay the log.
	QDelta float64 `json:"q_delta"`

	// Completed reports whether the user finished the content.
	Completed bool `json:"completed"`

	// Rating is the user's 1-5 star rating, 0 when unrated.
	Rating int `json:"rating"`

	// WatchedSeconds is how long the user watched.
	WatchedSeconds float64 `json:"watched_seconds"`

	// TotalSeconds is the content's full duration.
	TotalSeconds float64 `json:"total_seconds"`

	// Timestamp is when the feedback was applied.
	Timestamp time.Time `json:"timestamp"`
}

// WatchedFraction returns the fraction of the content the user watched,
// in [0, 1]. Without duration data it falls back to Completed (1 or 0).
func (e Experience) WatchedFraction() float64 {
	if e.TotalSeconds > 0 {
		f := e.WatchedSeconds / e.TotalSeconds
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	}
	if e.Completed {
		return 1
	}
	return 0
}

// PolicyUpdate describes one applied temporal-difference update.
type PolicyUpdate struct {
	// StateKey is the discretized pre-viewing state.
	StateKey StateKey `json:"state_key"`

	// NextStateKey is the discretized post-viewing state.
	NextStateKey StateKey `json:"next_state_key"`

	// OldQ is the value before the update.
	OldQ float64 `json:"old_q"`

	// NewQ is the value after the update.
	NewQ float64 `json:"new_q"`

	// TDError is the temporal-difference error r + gamma*maxQ' - oldQ.
	TDError float64 `json:"td_error"`

	// VisitCount is the cell's visit count after the update.
	VisitCount int `json:"visit_count"`
}

// PolicyUpdateResult is the full outcome of one applied feedback:
// the reward breakdown, the TD update, and the decayed exploration rate.
type PolicyUpdateResult struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// ContentID is the content the feedback applies to.
	ContentID string `json:"content_id"`

	// Reward is the computed reward breakdown.
	Reward RewardResult `json:"reward"`

	// Update is the applied temporal-difference update.
	Update PolicyUpdate `json:"update"`

	// ExplorationRate is the user's epsilon after decay.
	ExplorationRate float64 `json:"exploration_rate"`

	// Timestamp is when the feedback was applied.
	Timestamp time.Time `json:"timestamp"`
}

// RewardTrend summarizes the direction of recent rewards.
type RewardTrend string

const (
	// TrendImproving means recent rewards beat the preceding window by
	// more than the trend threshold.
	TrendImproving RewardTrend = "improving"
	// TrendStable means recent rewards are within the threshold band.
	TrendStable RewardTrend = "stable"
	// TrendDeclining means recent rewards fell below the preceding window
	// by more than the threshold.
	TrendDeclining RewardTrend = "declining"
)

// LearningStage buckets the convergence score into an operator-facing label.
type LearningStage string

const (
	// StageExploring means the policy has little evidence yet.
	StageExploring LearningStage = "exploring"
	// StageLearning means the policy is accumulating consistent signal.
	StageLearning LearningStage = "learning"
	// StageConfident means the policy has converged for this user.
	StageConfident LearningStage = "confident"
)

// ContentStats aggregates per-content outcomes for diagnostic display.
type ContentStats struct {
	// ContentID is the content item.
	ContentID string `json:"content_id"`

	// MeanReward is the average reward across plays.
	MeanReward float64 `json:"mean_reward"`

	// Plays is how many experiences involve this content.
	Plays int `json:"plays"`

	// CompletionRate is the fraction of plays the user finished.
	CompletionRate float64 `json:"completion_rate"`

	// MeanRating is the average of 1-5 star ratings, 0 when never rated.
	MeanRating float64 `json:"mean_rating"`
}

// LearningProgress is the derived convergence snapshot for a user,
// recomputed on demand from the experience log and never independently
// mutated.
type LearningProgress struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// ExperienceCount is the number of logged experiences considered.
	ExperienceCount int `json:"experience_count"`

	// AverageReward is the mean reward over the considered log.
	AverageReward float64 `json:"average_reward"`

	// RewardTrend compares the last ten rewards to the preceding ten.
	RewardTrend RewardTrend `json:"reward_trend"`

	// ExplorationRate is the user's current epsilon.
	ExplorationRate float64 `json:"exploration_rate"`

	// ConvergenceScore estimates policy stability, 0-100.
	ConvergenceScore float64 `json:"convergence_score"`

	// Stage buckets the convergence score into a label.
	Stage LearningStage `json:"stage"`

	// TopContent lists the best-performing content by mean reward.
	TopContent []ContentStats `json:"top_content,omitempty"`

	// BottomContent lists the worst-performing content by mean reward.
	BottomContent []ContentStats `json:"bottom_content,omitempty"`

	// ComputedAt is when the snapshot was derived.
	ComputedAt time.Time `json:"computed_at"`
}

// RankRequest asks for ranked recommendations for one user and transition.
type RankRequest struct {
	// UserID is the user to recommend for.
	UserID string `json:"user_id"`

	// Current is the measured emotional state.
	Current EmotionalState `json:"current"`

	// Desired is the goal state for this cycle.
	Desired DesiredState `json:"desired"`

	// Limit is the maximum number of recommendations to return.
	// Defaults to Config.Ranker.DefaultLimit if zero.
	Limit int `json:"limit,omitempty"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// RankResponse is the ordered recommendation list plus diagnostics.
type RankResponse struct {
	// Recommendations is the ranked output, best first.
	Recommendations []Recommendation `json:"recommendations"`

	// StateKey is the discretized current state used for Q lookups.
	StateKey StateKey `json:"state_key"`

	// ExplorationRate is the user's epsilon at ranking time.
	ExplorationRate float64 `json:"exploration_rate"`

	// Degraded reports that the retriever returned fewer candidates than
	// requested; ranking proceeded with what was available.
	Degraded bool `json:"degraded,omitempty"`

	// CacheHit reports the response was served from the ranking cache.
	CacheHit bool `json:"cache_hit,omitempty"`

	// LatencyMS is the total ranking latency in milliseconds.
	LatencyMS int64 `json:"latency_ms"`

	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`
}

// Feedback carries one closed loop from the external layer into the engine.
// Range validation is the API boundary's job; the engine treats in-range
// input as a precondition.
type Feedback struct {
	// UserID identifies the user.
	UserID string `json:"user_id"`

	// ContentID is what was watched.
	ContentID string `json:"content_id"`

	// StateBefore is the state when the recommendation was made.
	StateBefore EmotionalState `json:"state_before"`

	// StateAfter is the state after viewing.
	StateAfter EmotionalState `json:"state_after"`

	// Desired is the goal state for the cycle.
	Desired DesiredState `json:"desired"`

	// Completed reports whether the user finished the content.
	Completed bool `json:"completed"`

	// Rating is a 1-5 star rating, 0 when unrated.
	Rating int `json:"rating"`

	// WatchedSeconds is how long the user watched.
	WatchedSeconds float64 `json:"watched_seconds"`

	// TotalSeconds is the content's full duration.
	TotalSeconds float64 `json:"total_seconds"`
}

// EngineStats exposes diagnostic counters for the stats endpoint.
type EngineStats struct {
	// RankRequests is the total number of ranking requests served.
	RankRequests int64 `json:"rank_requests"`

	// FeedbackApplied is the total number of applied updates.
	FeedbackApplied int64 `json:"feedback_applied"`

	// DegradedRetrievals counts requests served with fewer candidates
	// than requested.
	DegradedRetrievals int64 `json:"degraded_retrievals"`

	// CacheHits counts ranking responses served from cache.
	CacheHits int64 `json:"cache_hits"`

	// QTableEntries is the current number of learned cells.
	QTableEntries int `json:"q_table_entries"`

	// Experiences is the total number of logged experiences.
	Experiences int64 `json:"experiences"`
}

// Store is the Q-table the policy reads and mutates. Implementations must
// serialize Update calls for the same (userID, stateKey, contentID) key;
// updates to distinct keys may proceed in parallel. All failures are
// reported as StorageFault errors.
type Store interface {
	// Entry returns the stored cell and true, or the zero entry and false
	// when the cell has never been written. It must not create the cell.
	Entry(ctx context.Context, userID string, key StateKey, contentID string) (QEntry, bool, error)

	// Entries batch-reads cells for one (user, state) pair. Missing cells
	// are absent from the returned map.
	Entries(ctx context.Context, userID string, key StateKey, contentIDs []string) (map[string]QEntry, error)

	// Update applies fn to the current cell (zero-valued if absent) and
	// stores the result, serialized per key.
	Update(ctx context.Context, userID string, key StateKey, contentID string, fn func(QEntry) QEntry) (QEntry, error)

	// MaxQ returns the highest stored Q-value for (user, state) and true,
	// or false when no cell is recorded for the pair.
	MaxQ(ctx context.Context, userID string, key StateKey) (float64, bool, error)

	// Epsilon returns the user's persisted exploration rate and true, or
	// false when the user has none yet.
	Epsilon(ctx context.Context, userID string) (float64, bool, error)

	// UpdateEpsilon applies fn to the user's current exploration rate
	// (found is false when none is persisted) and stores the result,
	// serialized per user.
	UpdateEpsilon(ctx context.Context, userID string, fn func(eps float64, found bool) float64) (float64, error)

	// EntryCount returns the number of stored Q-table cells.
	EntryCount(ctx context.Context) (int, error)

	// Close releases store resources.
	Close() error
}

// ExperienceLog is the append-only feedback history the analytics consume.
type ExperienceLog interface {
	// Append writes one experience. Experiences are immutable once written.
	Append(ctx context.Context, exp Experience) error

	// ForUser returns up to limit experiences for the user, ordered oldest
	// first. A limit of zero or less returns the full log.
	ForUser(ctx context.Context, userID string, limit int) ([]Experience, error)

	// CountForUser returns the user's total experience count.
	CountForUser(ctx context.Context, userID string) (int64, error)

	// Count returns the total experience count across users.
	Count(ctx context.Context) (int64, error)
}

// Retriever queries the external similarity index for candidate content
// matching a requested emotional transition. Implementations honor the
// caller's context deadline. Returning fewer candidates than limit is not
// an error; the engine proceeds degraded.
type Retriever interface {
	Query(ctx context.Context, vec TransitionVector, limit int) ([]Candidate, error)
}

// Publisher emits policy-update events after applied feedback. Publishing
// is best-effort; failures are logged, never surfaced to the caller.
type Publisher interface {
	PublishPolicyUpdate(ctx context.Context, result PolicyUpdateResult) error
}

// Broadcaster pushes live learning events to connected clients.
type Broadcaster interface {
	BroadcastPolicyUpdate(result PolicyUpdateResult)
	BroadcastProgress(progress LearningProgress)
}

// Validate checks the state's documented ranges. The engine itself never
// calls this on the hot path; it exists for the API boundary.
func (s EmotionalState) Validate() error {
	if s.Valence < -1 || s.Valence > 1 {
		return fmt.Errorf("valence must be in [-1, 1], got %v", s.Valence)
	}
	if s.Arousal < -1 || s.Arousal > 1 {
		return fmt.Errorf("arousal must be in [-1, 1], got %v", s.Arousal)
	}
	if s.Stress < 0 || s.Stress > 1 {
		return fmt.Errorf("stress must be in [0, 1], got %v", s.Stress)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0, 1], got %v", s.Confidence)
	}
	return nil
}

// Validate checks the desired state's documented ranges.
func (d DesiredState) Validate() error {
	if d.TargetValence < -1 || d.TargetValence > 1 {
		return fmt.Errorf("target_valence must be in [-1, 1], got %v", d.TargetValence)
	}
	if d.TargetArousal < -1 || d.TargetArousal > 1 {
		return fmt.Errorf("target_arousal must be in [-1, 1], got %v", d.TargetArousal)
	}
	if d.TargetStress < 0 || d.TargetStress > 1 {
		return fmt.Errorf("target_stress must be in [0, 1], got %v", d.TargetStress)
	}
	if !d.Intensity.Valid() {
		return fmt.Errorf("intensity must be subtle, moderate, or significant, got %q", d.Intensity)
	}
	return nil
}
