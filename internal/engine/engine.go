// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// overfetchFactor is how many candidates the engine requests from the
// retriever per returned slot, so ranking has room to reorder.
const overfetchFactor = 3

// ResponseCache caches ranked responses keyed by a request fingerprint.
// Implementations handle their own eviction and TTL.
type ResponseCache interface {
	Get(key string) (RankResponse, bool)
	Set(key string, resp RankResponse)

	// InvalidateUser drops the user's cached responses. Called after an
	// applied policy update so rankings reflect the new Q-values.
	InvalidateUser(userID string)
}

// Engine is the public facade over the learning loop: it ranks content
// for a requested emotional transition and folds viewing feedback back
// into the per-user policy. All methods are safe for concurrent use.
type Engine struct {
	cfg      Config
	disc     *Discretizer
	rewards  *RewardCalculator
	policy   *Policy
	ranker   *Ranker
	analyzer *ProgressAnalyzer

	store       Store
	experiences ExperienceLog
	retriever   Retriever

	publisher   Publisher
	broadcaster Broadcaster
	cache       ResponseCache

	logger zerolog.Logger
	clock  func() time.Time

	closed             atomic.Bool
	rankRequests       atomic.Int64
	feedbackApplied    atomic.Int64
	degradedRetrievals atomic.Int64
	cacheHits          atomic.Int64
}

// Option customizes engine construction.
type Option func(*Engine)

// WithPublisher wires an event publisher for applied policy updates.
// Publishing is best-effort and never fails the feedback call.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithBroadcaster wires a live broadcaster for applied policy updates.
func WithBroadcaster(b Broadcaster) Option {
	return func(e *Engine) { e.broadcaster = b }
}

// WithResponseCache wires a ranking response cache. Without one every
// request ranks from scratch.
func WithResponseCache(c ResponseCache) Option {
	return func(e *Engine) { e.cache = c }
}

// withClock overrides the time source for tests.
func withClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New builds an engine from validated configuration and its storage and
// retrieval backends. The store, experience log, and retriever are
// required; events, broadcasts, and caching are optional.
func New(cfg Config, store Store, experiences ExperienceLog, retriever Retriever, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if experiences == nil {
		return nil, errors.New("experience log must not be nil")
	}
	if retriever == nil {
		return nil, errors.New("retriever must not be nil")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	disc := NewDiscretizer(cfg.Discretizer)
	policy := NewPolicy(cfg.Policy, disc, store, logger, seed)

	e := &Engine{
		cfg:         cfg,
		disc:        disc,
		rewards:     NewRewardCalculator(cfg.Reward),
		policy:      policy,
		ranker:      NewRanker(cfg.Ranker, policy, logger),
		analyzer:    NewProgressAnalyzer(cfg.Analytics, cfg.Policy.Exploration),
		store:       store,
		experiences: experiences,
		retriever:   retriever,
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}

	logger.Info().
		Str("reward_strategy", cfg.Reward.Strategy).
		Str("exploration_strategy", cfg.Policy.Exploration.Strategy).
		Int("states", disc.States()).
		Bool("cache", e.cache != nil).
		Msg("Recommendation engine initialized")

	return e, nil
}

// Rank returns ranked recommendations for the requested emotional
// transition. The returned slice is ordered best first and holds at most
// req.Limit entries (the configured default when zero). A degraded
// retriever yields a shorter, flagged response rather than an error; an
// unavailable one surfaces ErrRetrieverUnavailable.
func (e *Engine) Rank(ctx context.Context, req RankRequest) (RankResponse, error) {
	if e.closed.Load() {
		return RankResponse{}, ErrEngineClosed
	}
	start := e.clock()
	e.rankRequests.Add(1)

	if err := validateRankRequest(req); err != nil {
		return RankResponse{}, err
	}
	limit := req.Limit
	if limit == 0 {
		limit = e.cfg.Ranker.DefaultLimit
	}
	if limit > e.cfg.Ranker.MaxLimit {
		limit = e.cfg.Ranker.MaxLimit
	}

	key := e.disc.Key(req.Current)
	vec := transitionVector(req.Current, req.Desired)

	var cacheKey string
	if e.cache != nil {
		cacheKey = rankCacheKey(req.UserID, key, req.Desired, limit)
		if resp, ok := e.cache.Get(cacheKey); ok {
			e.cacheHits.Add(1)
			resp.CacheHit = true
			return resp, nil
		}
	}

	candidates, err := e.retriever.Query(ctx, vec, limit*overfetchFactor)
	if err != nil {
		return RankResponse{}, fmt.Errorf("retrieve candidates: %w", err)
	}
	degraded := len(candidates) < limit
	if degraded {
		e.degradedRetrievals.Add(1)
	}

	recs, err := e.ranker.Rank(ctx, req.UserID, key, req.Current, req.Desired, candidates)
	if err != nil {
		return RankResponse{}, fmt.Errorf("rank candidates: %w", err)
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}

	eps, err := e.policy.ExplorationRate(ctx, req.UserID)
	if err != nil {
		return RankResponse{}, fmt.Errorf("read exploration rate: %w", err)
	}

	resp := RankResponse{
		Recommendations: recs,
		StateKey:        key,
		ExplorationRate: eps,
		Degraded:        degraded,
		LatencyMS:       e.clock().Sub(start).Milliseconds(),
		Timestamp:       e.clock(),
	}
	if e.cache != nil && !degraded {
		e.cache.Set(cacheKey, resp)
	}

	e.logger.Debug().
		Str("user_id", req.UserID).
		Str("state_key", string(key)).
		Int("candidates", len(candidates)).
		Int("returned", len(recs)).
		Bool("degraded", degraded).
		Int64("latency_ms", resp.LatencyMS).
		Msg("Ranked recommendations")

	return resp, nil
}

// ApplyFeedback closes one learning loop: it computes the reward, applies
// the temporal-difference update, decays the user's exploration rate, and
// appends the experience to the log. Event publishing and broadcasting
// are best-effort; storage failures fail the call.
func (e *Engine) ApplyFeedback(ctx context.Context, fb Feedback) (PolicyUpdateResult, error) {
	if e.closed.Load() {
		return PolicyUpdateResult{}, ErrEngineClosed
	}
	if err := validateFeedback(fb); err != nil {
		return PolicyUpdateResult{}, err
	}

	reward := e.rewards.Calculate(fb.StateBefore, fb.StateAfter, fb.Desired,
		fb.Completed, fb.Rating, fb.WatchedSeconds, fb.TotalSeconds)

	exp := Experience{
		UserID:         fb.UserID,
		ContentID:      fb.ContentID,
		StateBefore:    fb.StateBefore,
		StateAfter:     fb.StateAfter,
		Desired:        fb.Desired,
		Reward:         reward.Reward,
		Completed:      fb.Completed,
		Rating:         fb.Rating,
		WatchedSeconds: fb.WatchedSeconds,
		TotalSeconds:   fb.TotalSeconds,
		Timestamp:      e.clock(),
	}

	update, err := e.policy.Update(ctx, fb.UserID, exp)
	if err != nil {
		return PolicyUpdateResult{}, fmt.Errorf("apply policy update: %w", err)
	}
	exp.QDelta = update.NewQ - update.OldQ

	eps, err := e.policy.DecayExploration(ctx, fb.UserID)
	if err != nil {
		return PolicyUpdateResult{}, fmt.Errorf("decay exploration: %w", err)
	}

	if err := e.experiences.Append(ctx, exp); err != nil {
		return PolicyUpdateResult{}, fmt.Errorf("append experience: %w", err)
	}
	e.feedbackApplied.Add(1)

	if e.cache != nil {
		e.cache.InvalidateUser(fb.UserID)
	}

	result := PolicyUpdateResult{
		UserID:          fb.UserID,
		ContentID:       fb.ContentID,
		Reward:          reward,
		Update:          update,
		ExplorationRate: eps,
		Timestamp:       exp.Timestamp,
	}

	if e.publisher != nil {
		if err := e.publisher.PublishPolicyUpdate(ctx, result); err != nil {
			e.logger.Error().Err(err).
				Str("user_id", fb.UserID).
				Str("content_id", fb.ContentID).
				Msg("Failed to publish policy update")
		}
	}
	if e.broadcaster != nil {
		e.broadcaster.BroadcastPolicyUpdate(result)
	}

	e.logger.Debug().
		Str("user_id", fb.UserID).
		Str("content_id", fb.ContentID).
		Float64("reward", reward.Reward).
		Float64("q_delta", exp.QDelta).
		Float64("epsilon", eps).
		Msg("Applied feedback")

	return result, nil
}

// Progress derives the user's learning-progress snapshot from their
// experience history. Users with no history get a zeroed exploring
// snapshot, never an error.
func (e *Engine) Progress(ctx context.Context, userID string) (LearningProgress, error) {
	if e.closed.Load() {
		return LearningProgress{}, ErrEngineClosed
	}
	if userID == "" {
		return LearningProgress{}, NewValidationFault("user_id", "must not be empty")
	}

	history, err := e.experiences.ForUser(ctx, userID, e.cfg.Analytics.HistoryLimit)
	if err != nil {
		return LearningProgress{}, fmt.Errorf("load experience history: %w", err)
	}

	eps := -1.0
	if stored, found, err := e.store.Epsilon(ctx, userID); err == nil && found {
		eps = stored
	}

	return e.analyzer.Compute(userID, history, eps), nil
}

// ContentStats aggregates the user's per-content outcomes over their
// recent history, ordered best mean reward first. Users with no history
// get an empty slice, never an error.
func (e *Engine) ContentStats(ctx context.Context, userID string) ([]ContentStats, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if userID == "" {
		return nil, NewValidationFault("user_id", "must not be empty")
	}

	history, err := e.experiences.ForUser(ctx, userID, e.cfg.Analytics.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load experience history: %w", err)
	}

	return e.analyzer.AllContentStats(history), nil
}

// QValue reads one Q-table cell for diagnostics. Found is false when the
// cell has never been written; the zero entry is returned in that case.
func (e *Engine) QValue(ctx context.Context, userID string, key StateKey, contentID string) (QEntry, bool, error) {
	if e.closed.Load() {
		return QEntry{}, false, ErrEngineClosed
	}
	if userID == "" {
		return QEntry{}, false, NewValidationFault("user_id", "must not be empty")
	}
	if key == "" {
		return QEntry{}, false, NewValidationFault("state", "must not be empty")
	}
	if contentID == "" {
		return QEntry{}, false, NewValidationFault("content_id", "must not be empty")
	}

	entry, found, err := e.store.Entry(ctx, userID, key, contentID)
	if err != nil {
		return QEntry{}, false, fmt.Errorf("read q-table cell: %w", err)
	}
	return entry, found, nil
}

// Stats returns diagnostic counters for the stats endpoint.
func (e *Engine) Stats(ctx context.Context) (EngineStats, error) {
	if e.closed.Load() {
		return EngineStats{}, ErrEngineClosed
	}
	entries, err := e.store.EntryCount(ctx)
	if err != nil {
		return EngineStats{}, fmt.Errorf("count store entries: %w", err)
	}
	total, err := e.experiences.Count(ctx)
	if err != nil {
		return EngineStats{}, fmt.Errorf("count experiences: %w", err)
	}
	return EngineStats{
		RankRequests:       e.rankRequests.Load(),
		FeedbackApplied:    e.feedbackApplied.Load(),
		DegradedRetrievals: e.degradedRetrievals.Load(),
		CacheHits:          e.cacheHits.Load(),
		QTableEntries:      entries,
		Experiences:        total,
	}, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config { return e.cfg.Clone() }

// Close marks the engine closed. Subsequent operations return
// ErrEngineClosed. The engine does not own its backends; the caller
// closes the store and experience log.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.logger.Info().
		Int64("rank_requests", e.rankRequests.Load()).
		Int64("feedback_applied", e.feedbackApplied.Load()).
		Msg("Recommendation engine closed")
	return nil
}

// transitionVector builds the retrieval query: the requested shift per
// axis, scaled by the desired intensity.
func transitionVector(current EmotionalState, desired DesiredState) TransitionVector {
	scale := desired.Intensity.Scale()
	return TransitionVector{
		Valence: (desired.TargetValence - current.Valence) * scale,
		Arousal: (desired.TargetArousal - current.Arousal) * scale,
		Stress:  (desired.TargetStress - current.Stress) * scale,
	}
}

// rankCacheKey fingerprints a ranking request. Two requests with the same
// user, discretized state, goal, and limit are interchangeable within the
// cache TTL.
func rankCacheKey(userID string, key StateKey, desired DesiredState, limit int) string {
	return fmt.Sprintf("%s|%s|%.2f:%.2f:%.2f|%s|%d",
		userID, key,
		desired.TargetValence, desired.TargetArousal, desired.TargetStress,
		desired.Intensity, limit)
}

func validateRankRequest(req RankRequest) error {
	if req.UserID == "" {
		return NewValidationFault("user_id", "must not be empty")
	}
	if err := req.Current.Validate(); err != nil {
		return NewValidationFault("current", err.Error())
	}
	if err := req.Desired.Validate(); err != nil {
		return NewValidationFault("desired", err.Error())
	}
	if req.Limit < 0 {
		return NewValidationFault("limit", fmt.Sprintf("must not be negative, got %d", req.Limit))
	}
	return nil
}

func validateFeedback(fb Feedback) error {
	if fb.UserID == "" {
		return NewValidationFault("user_id", "must not be empty")
	}
	if fb.ContentID == "" {
		return NewValidationFault("content_id", "must not be empty")
	}
	if err := fb.StateBefore.Validate(); err != nil {
		return NewValidationFault("state_before", err.Error())
	}
	if err := fb.StateAfter.Validate(); err != nil {
		return NewValidationFault("state_after", err.Error())
	}
	if err := fb.Desired.Validate(); err != nil {
		return NewValidationFault("desired", err.Error())
	}
	if fb.Rating < 0 || fb.Rating > 5 {
		return NewValidationFault("rating", fmt.Sprintf("must be in [0, 5], got %d", fb.Rating))
	}
	if fb.WatchedSeconds < 0 {
		return NewValidationFault("watched_seconds", "must not be negative")
	}
	if fb.TotalSeconds < 0 {
		return NewValidationFault("total_seconds", "must not be negative")
	}
	return nil
}
