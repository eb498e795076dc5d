// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testLogger returns a zerolog logger for testing.
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// memStore is a mutex-serialized in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	cells   map[string]QEntry
	epsilon map[string]float64
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		cells:   make(map[string]QEntry),
		epsilon: make(map[string]float64),
	}
}

func cellKey(userID string, key StateKey, contentID string) string {
	return userID + "|" + string(key) + "|" + contentID
}

func (s *memStore) Entry(_ context.Context, userID string, key StateKey, contentID string) (QEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cells[cellKey(userID, key, contentID)]
	return e, ok, nil
}

func (s *memStore) Entries(_ context.Context, userID string, key StateKey, contentIDs []string) (map[string]QEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]QEntry, len(contentIDs))
	for _, id := range contentIDs {
		if e, ok := s.cells[cellKey(userID, key, id)]; ok {
			out[id] = e
		}
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, userID string, key StateKey, contentID string, fn func(QEntry) QEntry) (QEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cellKey(userID, key, contentID)
	next := fn(s.cells[k])
	s.cells[k] = next
	return next, nil
}

func (s *memStore) MaxQ(_ context.Context, userID string, key StateKey) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := userID + "|" + string(key) + "|"
	best, found := 0.0, false
	for k, e := range s.cells {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !found || e.QValue > best {
			best, found = e.QValue, true
		}
	}
	return best, found, nil
}

func (s *memStore) Epsilon(_ context.Context, userID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eps, ok := s.epsilon[userID]
	return eps, ok, nil
}

func (s *memStore) UpdateEpsilon(_ context.Context, userID string, fn func(eps float64, found bool) float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eps, ok := s.epsilon[userID]
	next := fn(eps, ok)
	s.epsilon[userID] = next
	return next, nil
}

func (s *memStore) EntryCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cells), nil
}

func (s *memStore) Close() error { return nil }

// memLog is an in-memory ExperienceLog for tests.
type memLog struct {
	mu     sync.Mutex
	byUser map[string][]Experience
	total  int64
}

var _ ExperienceLog = (*memLog)(nil)

func newMemLog() *memLog {
	return &memLog{byUser: make(map[string][]Experience)}
}

func (l *memLog) Append(_ context.Context, exp Experience) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byUser[exp.UserID] = append(l.byUser[exp.UserID], exp)
	l.total++
	return nil
}

func (l *memLog) ForUser(_ context.Context, userID string, limit int) ([]Experience, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	history := l.byUser[userID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Experience, len(history))
	copy(out, history)
	return out, nil
}

func (l *memLog) CountForUser(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.byUser[userID])), nil
}

func (l *memLog) Count(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total, nil
}

// stubRetriever returns a fixed candidate set and records the last query.
type stubRetriever struct {
	mu         sync.Mutex
	candidates []Candidate
	err        error
	lastVec    TransitionVector
	lastLimit  int
	calls      int
}

var _ Retriever = (*stubRetriever)(nil)

func (r *stubRetriever) Query(_ context.Context, vec TransitionVector, limit int) ([]Candidate, error) {
	r.mu.Lock()
	r.lastVec = vec
	r.lastLimit = limit
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.candidates) > limit {
		return r.candidates[:limit], nil
	}
	return r.candidates, nil
}

// recordPublisher counts published policy updates.
type recordPublisher struct {
	mu      sync.Mutex
	results []PolicyUpdateResult
	err     error
}

var _ Publisher = (*recordPublisher)(nil)

func (p *recordPublisher) PublishPolicyUpdate(_ context.Context, result PolicyUpdateResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, result)
	return nil
}

func (p *recordPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}

// recordBroadcaster counts broadcast events.
type recordBroadcaster struct {
	mu       sync.Mutex
	updates  int
	progress int
}

var _ Broadcaster = (*recordBroadcaster)(nil)

func (b *recordBroadcaster) BroadcastPolicyUpdate(PolicyUpdateResult) {
	b.mu.Lock()
	b.updates++
	b.mu.Unlock()
}

func (b *recordBroadcaster) BroadcastProgress(LearningProgress) {
	b.mu.Lock()
	b.progress++
	b.mu.Unlock()
}

// memCache is a TTL-free ResponseCache for tests.
type memCache struct {
	mu sync.Mutex
	m  map[string]RankResponse
}

var _ ResponseCache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{m: make(map[string]RankResponse)} }

func (c *memCache) Get(key string) (RankResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.m[key]
	return resp, ok
}

func (c *memCache) Set(key string, resp RankResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = resp
}

func (c *memCache) InvalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.m {
		if strings.HasPrefix(key, userID+"|") {
			delete(c.m, key)
		}
	}
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// Shared ranking fixture. All values sit mid-bucket so keys are stable.
var (
	rankCurrent = EmotionalState{Valence: -0.5, Arousal: 0.1, Stress: 0.5}
	rankDesired = DesiredState{
		TargetValence: 0.5,
		TargetArousal: -0.3,
		TargetStress:  0.2,
		Intensity:     IntensitySignificant,
	}
)

// rankCandidates is a three-item candidate set whose learned values and
// similarities produce distinct, hand-checkable combined scores.
func rankCandidates() []Candidate {
	return []Candidate{
		{ContentID: "content-a", Similarity: 0.2, Profile: ContentProfile{ValenceDelta: 0.5, ArousalDelta: -0.2}},
		{ContentID: "content-b", Similarity: 0.6, Profile: ContentProfile{ValenceDelta: 0.8, ArousalDelta: -0.3}},
		{ContentID: "content-c", Similarity: 0.7, Profile: ContentProfile{ValenceDelta: 0.9, ArousalDelta: -0.4}},
	}
}

// seedCell writes a Q-table cell directly, bypassing the learning rule.
func seedCell(t *testing.T, st *memStore, userID string, key StateKey, contentID string, q float64, visits int) {
	t.Helper()
	_, err := st.Update(context.Background(), userID, key, contentID, func(QEntry) QEntry {
		return QEntry{
			UserID:     userID,
			StateKey:   key,
			ContentID:  contentID,
			QValue:     q,
			VisitCount: visits,
		}
	})
	if err != nil {
		t.Fatalf("seed cell %s: %v", contentID, err)
	}
}

// newTestEngine wires an engine over fresh fakes with a fixed seed.
func newTestEngine(t *testing.T, retriever Retriever, opts ...Option) (*Engine, *memStore, *memLog) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Seed = 7
	st := newMemStore()
	log := newMemLog()
	eng, err := New(cfg, st, log, retriever, testLogger(), opts...)
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	return eng, st, log
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	st := newMemStore()
	log := newMemLog()
	retriever := &stubRetriever{}

	tests := []struct {
		name string
		call func() (*Engine, error)
	}{
		{
			name: "invalid config",
			call: func() (*Engine, error) {
				bad := DefaultConfig()
				bad.Policy.LearningRate = 0
				return New(bad, st, log, retriever, testLogger())
			},
		},
		{
			name: "nil store",
			call: func() (*Engine, error) {
				return New(cfg, nil, log, retriever, testLogger())
			},
		},
		{
			name: "nil experience log",
			call: func() (*Engine, error) {
				return New(cfg, st, nil, retriever, testLogger())
			},
		},
		{
			name: "nil retriever",
			call: func() (*Engine, error) {
				return New(cfg, st, log, nil, testLogger())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tt.call(); err == nil {
				t.Error("New() = nil error, want error")
			}
		})
	}
}

func TestEngineRankOrdersByCombinedScore(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{candidates: rankCandidates()}
	eng, st, _ := newTestEngine(t, retriever)
	ctx := context.Background()

	key := NewDiscretizer(DefaultConfig().Discretizer).Key(rankCurrent)
	seedCell(t, st, "user-1", key, "content-a", 0.6, 3)
	seedCell(t, st, "user-1", key, "content-b", 0.8, 5)
	seedCell(t, st, "user-1", key, "content-c", 0.7, 4)

	// Pin epsilon to zero so every slot is a deterministic exploit.
	if _, err := st.UpdateEpsilon(ctx, "user-1", func(float64, bool) float64 { return 0 }); err != nil {
		t.Fatalf("pin epsilon: %v", err)
	}

	resp, err := eng.Rank(ctx, RankRequest{
		UserID:  "user-1",
		Current: rankCurrent,
		Desired: rankDesired,
		Limit:   3,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v, want nil", err)
	}

	wantOrder := []string{"content-b", "content-c", "content-a"}
	wantScores := []float64{0.74, 0.70, 0.48}
	if len(resp.Recommendations) != len(wantOrder) {
		t.Fatalf("len(recommendations) = %d, want %d", len(resp.Recommendations), len(wantOrder))
	}
	for i, rec := range resp.Recommendations {
		if rec.ContentID != wantOrder[i] {
			t.Errorf("slot %d = %q, want %q", i, rec.ContentID, wantOrder[i])
		}
		if math.Abs(rec.CombinedScore-wantScores[i]) > 1e-9 {
			t.Errorf("slot %d combined score = %v, want %v", i, rec.CombinedScore, wantScores[i])
		}
		if rec.IsExploration {
			t.Errorf("slot %d marked exploration with epsilon 0", i)
		}
		if rec.Reasoning == "" {
			t.Errorf("slot %d has empty reasoning", i)
		}
	}

	if resp.StateKey != key {
		t.Errorf("state key = %q, want %q", resp.StateKey, key)
	}
	if resp.Degraded {
		t.Error("degraded = true, want false with a full candidate set")
	}
	if resp.ExplorationRate != 0 {
		t.Errorf("exploration rate = %v, want 0", resp.ExplorationRate)
	}
}

func TestEngineRankScalesTransitionByIntensity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		intensity Intensity
		scale     float64
	}{
		{"subtle", IntensitySubtle, 0.33},
		{"moderate", IntensityModerate, 0.66},
		{"significant", IntensitySignificant, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			retriever := &stubRetriever{candidates: rankCandidates()}
			eng, _, _ := newTestEngine(t, retriever)

			desired := rankDesired
			desired.Intensity = tt.intensity
			if _, err := eng.Rank(context.Background(), RankRequest{
				UserID:  "user-1",
				Current: rankCurrent,
				Desired: desired,
				Limit:   3,
			}); err != nil {
				t.Fatalf("Rank() error = %v, want nil", err)
			}

			want := TransitionVector{
				Valence: (desired.TargetValence - rankCurrent.Valence) * tt.scale,
				Arousal: (desired.TargetArousal - rankCurrent.Arousal) * tt.scale,
				Stress:  (desired.TargetStress - rankCurrent.Stress) * tt.scale,
			}
			retriever.mu.Lock()
			got := retriever.lastVec
			retriever.mu.Unlock()
			if math.Abs(got.Valence-want.Valence) > 1e-9 ||
				math.Abs(got.Arousal-want.Arousal) > 1e-9 ||
				math.Abs(got.Stress-want.Stress) > 1e-9 {
				t.Errorf("query vector = %+v, want %+v", got, want)
			}
		})
	}
}

func TestEngineRankValidation(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})

	tests := []struct {
		name string
		req  RankRequest
	}{
		{
			name: "empty user",
			req:  RankRequest{Current: rankCurrent, Desired: rankDesired},
		},
		{
			name: "valence out of range",
			req: RankRequest{
				UserID:  "user-1",
				Current: EmotionalState{Valence: 1.5},
				Desired: rankDesired,
			},
		},
		{
			name: "unknown intensity",
			req: RankRequest{
				UserID:  "user-1",
				Current: rankCurrent,
				Desired: DesiredState{Intensity: "extreme"},
			},
		},
		{
			name: "negative limit",
			req: RankRequest{
				UserID:  "user-1",
				Current: rankCurrent,
				Desired: rankDesired,
				Limit:   -1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := eng.Rank(context.Background(), tt.req)
			if !IsValidationFault(err) {
				t.Errorf("Rank() error = %v, want ValidationFault", err)
			}
		})
	}
}

func TestEngineRankRetrieverUnavailable(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{err: ErrRetrieverUnavailable}
	eng, _, _ := newTestEngine(t, retriever)

	_, err := eng.Rank(context.Background(), RankRequest{
		UserID:  "user-1",
		Current: rankCurrent,
		Desired: rankDesired,
	})
	if !errors.Is(err, ErrRetrieverUnavailable) {
		t.Errorf("Rank() error = %v, want ErrRetrieverUnavailable", err)
	}
}

func TestEngineRankDegraded(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{candidates: rankCandidates()[:2]}
	eng, _, _ := newTestEngine(t, retriever)

	resp, err := eng.Rank(context.Background(), RankRequest{
		UserID:  "user-1",
		Current: rankCurrent,
		Desired: rankDesired,
		Limit:   5,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v, want nil", err)
	}
	if !resp.Degraded {
		t.Error("degraded = false, want true with a short candidate set")
	}
	if len(resp.Recommendations) != 2 {
		t.Errorf("len(recommendations) = %d, want 2", len(resp.Recommendations))
	}

	stats, err := eng.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v, want nil", err)
	}
	if stats.DegradedRetrievals != 1 {
		t.Errorf("degraded retrievals = %d, want 1", stats.DegradedRetrievals)
	}
}

func TestEngineRankEmptyCandidates(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})

	resp, err := eng.Rank(context.Background(), RankRequest{
		UserID:  "user-1",
		Current: rankCurrent,
		Desired: rankDesired,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v, want nil", err)
	}
	if resp.Recommendations == nil {
		t.Fatal("recommendations = nil, want empty slice")
	}
	if len(resp.Recommendations) != 0 {
		t.Errorf("len(recommendations) = %d, want 0", len(resp.Recommendations))
	}
	if !resp.Degraded {
		t.Error("degraded = false, want true with no candidates")
	}
}

func TestEngineRankCache(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{candidates: rankCandidates()}
	cache := newMemCache()
	eng, _, _ := newTestEngine(t, retriever, WithResponseCache(cache))

	req := RankRequest{UserID: "user-1", Current: rankCurrent, Desired: rankDesired, Limit: 3}
	ctx := context.Background()

	first, err := eng.Rank(ctx, req)
	if err != nil {
		t.Fatalf("first Rank() error = %v, want nil", err)
	}
	if first.CacheHit {
		t.Error("first response CacheHit = true, want false")
	}

	second, err := eng.Rank(ctx, req)
	if err != nil {
		t.Fatalf("second Rank() error = %v, want nil", err)
	}
	if !second.CacheHit {
		t.Error("second response CacheHit = false, want true")
	}
	if got := len(second.Recommendations); got != len(first.Recommendations) {
		t.Errorf("cached recommendations = %d, want %d", got, len(first.Recommendations))
	}

	retriever.mu.Lock()
	calls := retriever.calls
	retriever.mu.Unlock()
	if calls != 1 {
		t.Errorf("retriever calls = %d, want 1 with a cache hit", calls)
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v, want nil", err)
	}
	if stats.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", stats.CacheHits)
	}
}

func TestEngineApplyFeedbackInvalidatesCache(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{candidates: rankCandidates()}
	cache := newMemCache()
	eng, _, _ := newTestEngine(t, retriever, WithResponseCache(cache))
	ctx := context.Background()

	rank := func(userID string) {
		t.Helper()
		if _, err := eng.Rank(ctx, RankRequest{UserID: userID, Current: rankCurrent, Desired: rankDesired, Limit: 3}); err != nil {
			t.Fatalf("Rank(%s) error = %v, want nil", userID, err)
		}
	}
	rank("user-1")
	rank("user-2")
	if cache.len() != 2 {
		t.Fatalf("cached responses = %d, want 2", cache.len())
	}

	_, err := eng.ApplyFeedback(ctx, Feedback{
		UserID:      "user-1",
		ContentID:   "content-b",
		StateBefore: rankCurrent,
		StateAfter:  EmotionalState{Valence: 0.4, Arousal: -0.2, Stress: 0.3},
		Desired:     rankDesired,
		Completed:   true,
		Rating:      4,
	})
	if err != nil {
		t.Fatalf("ApplyFeedback() error = %v, want nil", err)
	}

	// Only the learner's entries go; the other user's stay cached.
	if cache.len() != 1 {
		t.Errorf("cached responses after feedback = %d, want 1", cache.len())
	}

	resp, err := eng.Rank(ctx, RankRequest{UserID: "user-1", Current: rankCurrent, Desired: rankDesired, Limit: 3})
	if err != nil {
		t.Fatalf("Rank() after feedback error = %v, want nil", err)
	}
	if resp.CacheHit {
		t.Error("CacheHit = true after feedback, want a fresh ranking")
	}
}

func TestEngineApplyFeedback(t *testing.T) {
	t.Parallel()

	publisher := &recordPublisher{}
	broadcaster := &recordBroadcaster{}
	eng, st, log := newTestEngine(t, &stubRetriever{},
		WithPublisher(publisher), WithBroadcaster(broadcaster))
	ctx := context.Background()

	fb := Feedback{
		UserID:      "user-2",
		ContentID:   "content-b",
		StateBefore: rankCurrent,
		StateAfter:  EmotionalState{Valence: 0.4, Arousal: -0.2, Stress: 0.3},
		Desired:     rankDesired,
		Completed:   true,
		Rating:      5,
	}

	result, err := eng.ApplyFeedback(ctx, fb)
	if err != nil {
		t.Fatalf("ApplyFeedback() error = %v, want nil", err)
	}

	if result.Reward.Reward <= 0 {
		t.Errorf("reward = %v, want positive for movement toward the goal", result.Reward.Reward)
	}
	if result.Update.VisitCount != 1 {
		t.Errorf("visit count = %d, want 1", result.Update.VisitCount)
	}
	if result.Update.OldQ != 0.5 {
		t.Errorf("old Q = %v, want default 0.5", result.Update.OldQ)
	}
	if result.Update.NewQ == result.Update.OldQ {
		t.Error("new Q equals old Q, want an applied update")
	}
	if math.Abs(result.ExplorationRate-0.285) > 1e-9 {
		t.Errorf("exploration rate = %v, want 0.285 after one decay", result.ExplorationRate)
	}

	// The experience must be logged with the Q-delta the update caused.
	history, err := log.ForUser(ctx, "user-2", 0)
	if err != nil {
		t.Fatalf("ForUser() error = %v, want nil", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	wantDelta := result.Update.NewQ - result.Update.OldQ
	if math.Abs(history[0].QDelta-wantDelta) > 1e-12 {
		t.Errorf("logged QDelta = %v, want %v", history[0].QDelta, wantDelta)
	}
	if history[0].Reward != result.Reward.Reward {
		t.Errorf("logged reward = %v, want %v", history[0].Reward, result.Reward.Reward)
	}

	// The cell must be persisted.
	key := NewDiscretizer(DefaultConfig().Discretizer).Key(fb.StateBefore)
	entry, found, err := st.Entry(ctx, "user-2", key, "content-b")
	if err != nil || !found {
		t.Fatalf("Entry() = found %v, err %v, want stored cell", found, err)
	}
	if math.Abs(entry.QValue-result.Update.NewQ) > 1e-12 {
		t.Errorf("stored Q = %v, want %v", entry.QValue, result.Update.NewQ)
	}

	if publisher.count() != 1 {
		t.Errorf("published updates = %d, want 1", publisher.count())
	}
	broadcaster.mu.Lock()
	updates := broadcaster.updates
	broadcaster.mu.Unlock()
	if updates != 1 {
		t.Errorf("broadcast updates = %d, want 1", updates)
	}
}

func TestEngineApplyFeedbackPublishFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	publisher := &recordPublisher{err: errors.New("broker down")}
	eng, _, _ := newTestEngine(t, &stubRetriever{}, WithPublisher(publisher))

	_, err := eng.ApplyFeedback(context.Background(), Feedback{
		UserID:      "user-2",
		ContentID:   "content-b",
		StateBefore: rankCurrent,
		StateAfter:  rankCurrent,
		Desired:     rankDesired,
	})
	if err != nil {
		t.Fatalf("ApplyFeedback() error = %v, want nil despite publish failure", err)
	}
}

func TestEngineApplyFeedbackValidation(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})

	tests := []struct {
		name string
		fb   Feedback
	}{
		{
			name: "empty user",
			fb:   Feedback{ContentID: "c", StateBefore: rankCurrent, StateAfter: rankCurrent, Desired: rankDesired},
		},
		{
			name: "empty content",
			fb:   Feedback{UserID: "u", StateBefore: rankCurrent, StateAfter: rankCurrent, Desired: rankDesired},
		},
		{
			name: "rating out of range",
			fb: Feedback{
				UserID: "u", ContentID: "c",
				StateBefore: rankCurrent, StateAfter: rankCurrent, Desired: rankDesired,
				Rating: 9,
			},
		},
		{
			name: "negative watched seconds",
			fb: Feedback{
				UserID: "u", ContentID: "c",
				StateBefore: rankCurrent, StateAfter: rankCurrent, Desired: rankDesired,
				WatchedSeconds: -10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := eng.ApplyFeedback(context.Background(), tt.fb)
			if !IsValidationFault(err) {
				t.Errorf("ApplyFeedback() error = %v, want ValidationFault", err)
			}
		})
	}
}

func TestEngineProgressNewUser(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})

	progress, err := eng.Progress(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Progress() error = %v, want nil", err)
	}
	if progress.ExperienceCount != 0 {
		t.Errorf("experience count = %d, want 0", progress.ExperienceCount)
	}
	if progress.Stage != StageExploring {
		t.Errorf("stage = %q, want %q", progress.Stage, StageExploring)
	}
	if progress.ConvergenceScore != 0 {
		t.Errorf("convergence score = %v, want 0", progress.ConvergenceScore)
	}
	// No persisted epsilon: the analyzer approximates from zero
	// experiences, which is the initial rate.
	if math.Abs(progress.ExplorationRate-0.3) > 1e-9 {
		t.Errorf("exploration rate = %v, want 0.3", progress.ExplorationRate)
	}
}

func TestEngineProgressAfterFeedback(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})
	ctx := context.Background()

	fb := Feedback{
		UserID:      "user-3",
		ContentID:   "content-a",
		StateBefore: rankCurrent,
		StateAfter:  EmotionalState{Valence: 0.4, Arousal: -0.2, Stress: 0.3},
		Desired:     rankDesired,
		Completed:   true,
		Rating:      4,
	}
	const n = 6
	for i := 0; i < n; i++ {
		if _, err := eng.ApplyFeedback(ctx, fb); err != nil {
			t.Fatalf("ApplyFeedback() iteration %d error = %v", i, err)
		}
	}

	progress, err := eng.Progress(ctx, "user-3")
	if err != nil {
		t.Fatalf("Progress() error = %v, want nil", err)
	}
	if progress.ExperienceCount != n {
		t.Errorf("experience count = %d, want %d", progress.ExperienceCount, n)
	}
	wantEps := 0.3 * math.Pow(0.95, n)
	if math.Abs(progress.ExplorationRate-wantEps) > 1e-9 {
		t.Errorf("exploration rate = %v, want %v after %d decays", progress.ExplorationRate, wantEps, n)
	}
	if progress.AverageReward <= 0 {
		t.Errorf("average reward = %v, want positive", progress.AverageReward)
	}
}

func TestEngineReplayIsDeterministic(t *testing.T) {
	t.Parallel()

	feedbacks := []Feedback{
		{
			UserID: "user-r", ContentID: "content-a",
			StateBefore: rankCurrent,
			StateAfter:  EmotionalState{Valence: 0.4, Arousal: -0.2, Stress: 0.3},
			Desired:     rankDesired, Completed: true, Rating: 5,
		},
		{
			UserID: "user-r", ContentID: "content-b",
			StateBefore: rankCurrent,
			StateAfter:  EmotionalState{Valence: -0.7, Arousal: 0.6, Stress: 0.9},
			Desired:     rankDesired, Completed: false,
		},
		{
			UserID: "user-r", ContentID: "content-a",
			StateBefore: EmotionalState{Valence: 0.4, Arousal: -0.2, Stress: 0.3},
			StateAfter:  EmotionalState{Valence: 0.5, Arousal: -0.3, Stress: 0.2},
			Desired:     rankDesired, Completed: true, Rating: 4,
			WatchedSeconds: 600, TotalSeconds: 1200,
		},
	}

	run := func() *memStore {
		eng, st, _ := newTestEngine(t, &stubRetriever{})
		for i, fb := range feedbacks {
			for round := 0; round < 3; round++ {
				if _, err := eng.ApplyFeedback(context.Background(), fb); err != nil {
					t.Fatalf("ApplyFeedback() feedback %d round %d error = %v", i, round, err)
				}
			}
		}
		return st
	}

	first := run()
	second := run()

	ctx := context.Background()
	firstCount, _ := first.EntryCount(ctx)
	secondCount, _ := second.EntryCount(ctx)
	if firstCount != secondCount {
		t.Fatalf("entry counts differ: %d vs %d", firstCount, secondCount)
	}

	disc := NewDiscretizer(DefaultConfig().Discretizer)
	for _, fb := range feedbacks {
		key := disc.Key(fb.StateBefore)
		a, foundA, _ := first.Entry(ctx, fb.UserID, key, fb.ContentID)
		b, foundB, _ := second.Entry(ctx, fb.UserID, key, fb.ContentID)
		if foundA != foundB {
			t.Fatalf("cell %s/%s presence differs", key, fb.ContentID)
		}
		if math.Abs(a.QValue-b.QValue) > 1e-12 {
			t.Errorf("cell %s/%s Q = %v vs %v, want identical", key, fb.ContentID, a.QValue, b.QValue)
		}
		if a.VisitCount != b.VisitCount {
			t.Errorf("cell %s/%s visits = %d vs %d, want identical", key, fb.ContentID, a.VisitCount, b.VisitCount)
		}
	}
}

func TestEngineStats(t *testing.T) {
	t.Parallel()

	retriever := &stubRetriever{candidates: rankCandidates()}
	eng, _, _ := newTestEngine(t, retriever)
	ctx := context.Background()

	if _, err := eng.Rank(ctx, RankRequest{UserID: "u", Current: rankCurrent, Desired: rankDesired, Limit: 3}); err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if _, err := eng.ApplyFeedback(ctx, Feedback{
		UserID: "u", ContentID: "content-a",
		StateBefore: rankCurrent, StateAfter: rankCurrent, Desired: rankDesired,
	}); err != nil {
		t.Fatalf("ApplyFeedback() error = %v", err)
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v, want nil", err)
	}
	if stats.RankRequests != 1 {
		t.Errorf("rank requests = %d, want 1", stats.RankRequests)
	}
	if stats.FeedbackApplied != 1 {
		t.Errorf("feedback applied = %d, want 1", stats.FeedbackApplied)
	}
	if stats.QTableEntries != 1 {
		t.Errorf("q-table entries = %d, want 1", stats.QTableEntries)
	}
	if stats.Experiences != 1 {
		t.Errorf("experiences = %d, want 1", stats.Experiences)
	}
}

func TestEngineClosed(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})
	if err := eng.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
	if err := eng.Close(); err != nil {
		t.Fatalf("second Close() error = %v, want nil", err)
	}

	ctx := context.Background()
	if _, err := eng.Rank(ctx, RankRequest{UserID: "u", Current: rankCurrent, Desired: rankDesired}); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Rank() after close error = %v, want ErrEngineClosed", err)
	}
	if _, err := eng.ApplyFeedback(ctx, Feedback{UserID: "u", ContentID: "c"}); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("ApplyFeedback() after close error = %v, want ErrEngineClosed", err)
	}
	if _, err := eng.Progress(ctx, "u"); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Progress() after close error = %v, want ErrEngineClosed", err)
	}
	if _, err := eng.Stats(ctx); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("Stats() after close error = %v, want ErrEngineClosed", err)
	}
}

func TestEngineClockStampsResponses(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	retriever := &stubRetriever{candidates: rankCandidates()}
	eng, _, _ := newTestEngine(t, retriever, withClock(func() time.Time { return fixed }))
	ctx := context.Background()

	resp, err := eng.Rank(ctx, RankRequest{
		UserID: "user-clock", Current: rankCurrent, Desired: rankDesired, Limit: 3,
	})
	if err != nil {
		t.Fatalf("Rank() error = %v, want nil", err)
	}
	if !resp.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", resp.Timestamp, fixed)
	}
	if resp.LatencyMS != 0 {
		t.Errorf("latency = %d ms, want 0 under a fixed clock", resp.LatencyMS)
	}

	result, err := eng.ApplyFeedback(ctx, Feedback{
		UserID: "user-clock", ContentID: "content-a",
		StateBefore: rankCurrent, StateAfter: rankCurrent, Desired: rankDesired,
	})
	if err != nil {
		t.Fatalf("ApplyFeedback() error = %v, want nil", err)
	}
	if !result.Timestamp.Equal(fixed) {
		t.Errorf("feedback timestamp = %v, want %v", result.Timestamp, fixed)
	}
}

func TestEngineContentStats(t *testing.T) {
	t.Parallel()

	eng, _, _ := newTestEngine(t, &stubRetriever{})
	ctx := context.Background()

	after := EmotionalState{Valence: 0.4, Arousal: -0.2, Stress: 0.3}
	plays := []struct {
		contentID string
		completed bool
		rating    int
	}{
		{"content-a", true, 5},
		{"content-a", true, 4},
		{"content-b", false, 0},
	}
	for _, p := range plays {
		fb := Feedback{
			UserID:      "user-stats",
			ContentID:   p.contentID,
			StateBefore: rankCurrent,
			StateAfter:  after,
			Desired:     rankDesired,
			Completed:   p.completed,
			Rating:      p.rating,
		}
		if _, err := eng.ApplyFeedback(ctx, fb); err != nil {
			t.Fatalf("ApplyFeedback(%s) error = %v", p.contentID, err)
		}
	}

	stats, err := eng.ContentStats(ctx, "user-stats")
	if err != nil {
		t.Fatalf("ContentStats() error = %v, want nil", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d content entries, want 2", len(stats))
	}

	// Completed, well-rated plays out-earn an abandoned one, so content-a
	// ranks first.
	if stats[0].ContentID != "content-a" {
		t.Errorf("top content = %q, want content-a", stats[0].ContentID)
	}
	if stats[0].Plays != 2 {
		t.Errorf("content-a plays = %d, want 2", stats[0].Plays)
	}
	if stats[0].CompletionRate != 1 {
		t.Errorf("content-a completion rate = %v, want 1", stats[0].CompletionRate)
	}
	if stats[0].MeanRating != 4.5 {
		t.Errorf("content-a mean rating = %v, want 4.5", stats[0].MeanRating)
	}
	if stats[1].ContentID != "content-b" {
		t.Errorf("second content = %q, want content-b", stats[1].ContentID)
	}
	if stats[1].MeanRating != 0 {
		t.Errorf("content-b mean rating = %v, want 0 for unrated", stats[1].MeanRating)
	}

	if _, err := eng.ContentStats(ctx, ""); !IsValidationFault(err) {
		t.Errorf("ContentStats(\"\") error = %v, want ValidationFault", err)
	}

	empty, err := eng.ContentStats(ctx, "nobody")
	if err != nil {
		t.Fatalf("ContentStats(nobody) error = %v, want nil", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d entries for unknown user, want 0", len(empty))
	}
}

func TestEngineQValue(t *testing.T) {
	t.Parallel()

	eng, st, _ := newTestEngine(t, &stubRetriever{})
	ctx := context.Background()

	key := StateKey("v1:a2:s1")
	seedCell(t, st, "user-q", key, "content-a", 0.62, 3)

	entry, found, err := eng.QValue(ctx, "user-q", key, "content-a")
	if err != nil {
		t.Fatalf("QValue() error = %v, want nil", err)
	}
	if !found {
		t.Fatal("QValue() found = false, want true for seeded cell")
	}
	if entry.QValue != 0.62 {
		t.Errorf("q-value = %v, want 0.62", entry.QValue)
	}
	if entry.VisitCount != 3 {
		t.Errorf("visit count = %d, want 3", entry.VisitCount)
	}

	_, found, err = eng.QValue(ctx, "user-q", key, "content-z")
	if err != nil {
		t.Fatalf("QValue() error = %v, want nil", err)
	}
	if found {
		t.Error("QValue() found = true, want false for unwritten cell")
	}

	if _, _, err := eng.QValue(ctx, "", key, "content-a"); !IsValidationFault(err) {
		t.Errorf("QValue with empty user error = %v, want ValidationFault", err)
	}
	if _, _, err := eng.QValue(ctx, "user-q", "", "content-a"); !IsValidationFault(err) {
		t.Errorf("QValue with empty state error = %v, want ValidationFault", err)
	}
	if _, _, err := eng.QValue(ctx, "user-q", key, ""); !IsValidationFault(err) {
		t.Errorf("QValue with empty content error = %v, want ValidationFault", err)
	}
}
