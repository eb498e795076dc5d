// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package engine

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Policy owns the Q-table access rules: the default value for unseen
// cells, the exploration strategy, and the temporal-difference update.
// Update is the only Q-table mutator in the system.
//
// The policy holds no table state itself; everything lives in the injected
// Store so a process restart resumes exactly where learning stopped.
type Policy struct {
	cfg    PolicyConfig
	disc   *Discretizer
	store  Store
	logger zerolog.Logger

	// rng is the seeded source behind exploration draws. Guarded by rngMu
	// because rand.Rand is not safe for concurrent use.
	rng   *rand.Rand
	rngMu sync.Mutex
}

// NewPolicy builds a policy over the given store. The seed makes
// exploration decisions reproducible; tests inject fixed seeds.
func NewPolicy(cfg PolicyConfig, disc *Discretizer, store Store, logger zerolog.Logger, seed int64) *Policy {
	return &Policy{
		cfg:    cfg,
		disc:   disc,
		store:  store,
		logger: logger.With().Str("component", "policy").Logger(),
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic exploration, not cryptography
	}
}

// QValue returns the stored value for the cell, or the configured default
// when the cell has never been updated. Read-only: it creates nothing.
func (p *Policy) QValue(ctx context.Context, userID string, key StateKey, contentID string) (float64, error) {
	entry, found, err := p.store.Entry(ctx, userID, key, contentID)
	if err != nil {
		return 0, err
	}
	if !found {
		return p.cfg.DefaultQ, nil
	}
	return entry.QValue, nil
}

// Entries batch-reads cells for ranking. Missing cells are absent from the
// map; callers substitute the default value.
func (p *Policy) Entries(ctx context.Context, userID string, key StateKey, contentIDs []string) (map[string]QEntry, error) {
	return p.store.Entries(ctx, userID, key, contentIDs)
}

// DefaultQ exposes the configured prior for never-updated cells.
func (p *Policy) DefaultQ() float64 { return p.cfg.DefaultQ }

// SelectAction picks one candidate under the configured exploration
// strategy and reports whether the pick was exploratory. An empty
// candidate list returns an empty content ID.
func (p *Policy) SelectAction(ctx context.Context, userID string, key StateKey, candidates []Candidate) (string, bool, error) {
	if len(candidates) == 0 {
		return "", false, nil
	}

	entries, err := p.store.Entries(ctx, userID, key, contentIDs(candidates))
	if err != nil {
		return "", false, err
	}

	if p.cfg.Exploration.Strategy == ExplorationUCB {
		return p.selectUCB(candidates, entries)
	}
	return p.selectEpsilonGreedy(ctx, userID, candidates, entries)
}

// selectEpsilonGreedy draws u ~ Uniform(0,1); u < epsilon picks uniformly
// at random, otherwise the argmax Q with ties broken by higher similarity
// and then insertion order.
func (p *Policy) selectEpsilonGreedy(ctx context.Context, userID string, candidates []Candidate, entries map[string]QEntry) (string, bool, error) {
	eps, err := p.ExplorationRate(ctx, userID)
	if err != nil {
		return "", false, err
	}

	p.rngMu.Lock()
	u := p.rng.Float64()
	var pick int
	if u < eps {
		pick = p.rng.Intn(len(candidates))
	}
	p.rngMu.Unlock()

	if u < eps {
		return candidates[pick].ContentID, true, nil
	}

	best := p.greedyIndex(candidates, entries, nil)
	return candidates[best].ContentID, false, nil
}

// selectUCB adds the upper-confidence bonus c*sqrt(ln N / n_i) to each
// visited candidate's Q estimate. Unvisited candidates are taken first
// (highest similarity, then insertion order) and always count as
// exploration; otherwise a pick that differs from the pure-greedy argmax
// counts as exploration.
func (p *Policy) selectUCB(candidates []Candidate, entries map[string]QEntry) (string, bool, error) {
	cold := -1
	for i, c := range candidates {
		if entries[c.ContentID].VisitCount > 0 {
			continue
		}
		if cold < 0 || c.Similarity > candidates[cold].Similarity {
			cold = i
		}
	}
	if cold >= 0 {
		return candidates[cold].ContentID, true, nil
	}

	var total float64
	for _, c := range candidates {
		total += float64(entries[c.ContentID].VisitCount)
	}
	lnN := math.Log(total)

	bonus := func(i int) float64 {
		n := float64(entries[candidates[i].ContentID].VisitCount)
		return p.cfg.Exploration.UCBConfidence * math.Sqrt(lnN/n)
	}

	best := p.greedyIndex(candidates, entries, bonus)
	greedy := p.greedyIndex(candidates, entries, nil)
	return candidates[best].ContentID, best != greedy, nil
}

// greedyIndex returns the argmax of Q (plus an optional per-index bonus)
// with deterministic tie-breaking: higher similarity first, then earlier
// insertion order.
func (p *Policy) greedyIndex(candidates []Candidate, entries map[string]QEntry, bonus func(int) float64) int {
	best := 0
	bestScore := math.Inf(-1)
	for i, c := range candidates {
		score := p.cfg.DefaultQ
		if e, ok := entries[c.ContentID]; ok && e.VisitCount > 0 {
			score = e.QValue
		}
		if bonus != nil {
			score += bonus(i)
		}
		switch {
		case score > bestScore:
			best, bestScore = i, score
		case score == bestScore && c.Similarity > candidates[best].Similarity:
			best = i
		}
	}
	return best
}

// Update applies the Q-learning rule
//
//	Q(s,a) <- Q(s,a) + alpha * (r + gamma * max Q(s',a') - Q(s,a))
//
// where s' is the discretized post-viewing state and the max runs over the
// user's recorded cells for s'. With no recorded next-state cells the
// bootstrap term is zero, a pure Monte-Carlo-style update.
//
// The store serializes same-key read-modify-writes, so concurrent feedback
// for the same (user, state, content) never loses an update. The bootstrap
// read happens outside the written key's critical section; a briefly stale
// max is acceptable.
func (p *Policy) Update(ctx context.Context, userID string, exp Experience) (PolicyUpdate, error) {
	key := p.disc.Key(exp.StateBefore)
	nextKey := p.disc.Key(exp.StateAfter)

	bootstrap := 0.0
	if maxNext, ok, err := p.store.MaxQ(ctx, userID, nextKey); err != nil {
		return PolicyUpdate{}, err
	} else if ok {
		bootstrap = maxNext
	}

	var update PolicyUpdate
	entry, err := p.store.Update(ctx, userID, key, exp.ContentID, func(cur QEntry) QEntry {
		old := cur.QValue
		if cur.VisitCount == 0 {
			// A cell that never received an update reads as the default
			// prior regardless of its zero value.
			old = p.cfg.DefaultQ
		}
		tdError := exp.Reward + p.cfg.DiscountFactor*bootstrap - old
		newQ := old + p.cfg.LearningRate*tdError

		update = PolicyUpdate{
			StateKey:     key,
			NextStateKey: nextKey,
			OldQ:         old,
			NewQ:         newQ,
			TDError:      tdError,
			VisitCount:   cur.VisitCount + 1,
		}

		return QEntry{
			UserID:      userID,
			StateKey:    key,
			ContentID:   exp.ContentID,
			QValue:      newQ,
			VisitCount:  cur.VisitCount + 1,
			LastUpdated: time.Now().UTC(),
		}
	})
	if err != nil {
		return PolicyUpdate{}, err
	}

	p.logger.Debug().
		Str("user_id", userID).
		Str("state_key", key.String()).
		Str("content_id", exp.ContentID).
		Float64("old_q", update.OldQ).
		Float64("new_q", entry.QValue).
		Float64("td_error", update.TDError).
		Int("visits", entry.VisitCount).
		Msg("policy updated")

	return update, nil
}

// DecayExploration multiplies the user's epsilon by the decay factor,
// floored at the configured minimum so exploration never fully stops.
// Returns the new rate.
func (p *Policy) DecayExploration(ctx context.Context, userID string) (float64, error) {
	return p.store.UpdateEpsilon(ctx, userID, func(eps float64, found bool) float64 {
		if !found {
			eps = p.cfg.Exploration.InitialEpsilon
		}
		return math.Max(eps*p.cfg.Exploration.EpsilonDecay, p.cfg.Exploration.MinEpsilon)
	})
}

// ExplorationRate returns the user's current epsilon, or the initial rate
// for users with no recorded exploration state.
func (p *Policy) ExplorationRate(ctx context.Context, userID string) (float64, error) {
	eps, found, err := p.store.Epsilon(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !found {
		return p.cfg.Exploration.InitialEpsilon, nil
	}
	return eps, nil
}

// ExplorationDecision makes one per-slot exploration call for the ranker.
// Zero-visit candidates always explore; otherwise epsilon-greedy draws
// with the user's current rate. Under UCB only zero-visit slots count as
// exploration, since the bonus makes exploration pressure implicit.
func (p *Policy) ExplorationDecision(epsilon float64, visitCount int) bool {
	if visitCount == 0 {
		return true
	}
	if p.cfg.Exploration.Strategy == ExplorationUCB {
		return false
	}
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Float64() < epsilon
}

// contentIDs projects candidate IDs for batch reads.
func contentIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ContentID
	}
	return ids
}
