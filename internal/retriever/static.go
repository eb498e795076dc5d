// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package retriever

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/affectlab/resonate/internal/engine"
)

// CatalogEntry is one content item in a static catalog file.
type CatalogEntry struct {
	ContentID string                `json:"content_id"`
	Profile   engine.ContentProfile `json:"profile"`
}

// Static scores a fixed in-process catalog by cosine similarity between
// the requested transition and each content profile. Results are
// deterministic: similarity descending, content ID ascending on ties.
type Static struct {
	mu      sync.RWMutex
	catalog map[string]engine.ContentProfile
}

// NewStatic returns an empty static retriever.
func NewStatic() *Static {
	return &Static{catalog: make(map[string]engine.ContentProfile)}
}

// NewStaticFromFile loads a JSON catalog (an array of CatalogEntry).
func NewStaticFromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	s := NewStatic()
	for i, entry := range entries {
		if entry.ContentID == "" {
			return nil, fmt.Errorf("parse catalog %s: entry %d has no content_id", path, i)
		}
		s.Put(entry.ContentID, entry.Profile)
	}
	return s, nil
}

// Put adds or replaces a catalog entry.
func (s *Static) Put(contentID string, profile engine.ContentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[contentID] = profile
}

// Len reports the catalog size.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.catalog)
}

// Query scores every catalog entry against the transition and returns the
// top matches.
func (s *Static) Query(ctx context.Context, vec engine.TransitionVector, limit int) ([]engine.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	cands := make([]engine.Candidate, 0, len(s.catalog))
	for id, profile := range s.catalog {
		cands = append(cands, engine.Candidate{
			ContentID:  id,
			Similarity: transitionSimilarity(vec, profile),
			Profile:    profile,
		})
	}
	s.mu.RUnlock()

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Similarity != cands[j].Similarity {
			return cands[i].Similarity > cands[j].Similarity
		}
		return cands[i].ContentID < cands[j].ContentID
	})

	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

// transitionSimilarity maps the cosine between the requested shift and the
// profile's expected shift from [-1, 1] onto [0, 1]. A zero-length vector
// on either side has no direction to compare, so it scores the neutral 0.5.
func transitionSimilarity(vec engine.TransitionVector, p engine.ContentProfile) float64 {
	dot := vec.Valence*p.ValenceDelta + vec.Arousal*p.ArousalDelta + vec.Stress*p.StressDelta
	na := vec.Valence*vec.Valence + vec.Arousal*vec.Arousal + vec.Stress*vec.Stress
	nb := p.ValenceDelta*p.ValenceDelta + p.ArousalDelta*p.ArousalDelta + p.StressDelta*p.StressDelta
	if na == 0 || nb == 0 {
		return 0.5
	}

	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

// Compile-time interface assertion
var _ engine.Retriever = (*Static)(nil)
