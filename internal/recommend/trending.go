// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/hypergraph"
)

// trendingScores ranks active media by time-decayed interaction weight.
//
// The score is computed as:
//
//	score(item) = sum(max(weight, 0) * 0.5^(age / half_life))
//
// over user interactions inside the trending window. Negative signals such
// as skips contribute nothing. Media with no recent activity follow at score
// zero, newest first, so that a cold catalog still has an order.
func (s *Service) trendingScores(now time.Time) []cache.Scored {
	scores := make(map[string]float64)
	for _, e := range s.graph.EdgesSince(now.Add(-s.cfg.TrendingWindow)) {
		if !e.FromUser() {
			continue
		}
		w := math.Max(e.Weight, 0)
		age := now.Sub(e.Timestamp)
		if age < 0 {
			age = 0
		}
		decayed := w * math.Exp2(-age.Hours()/s.cfg.TrendingHalfLife.Hours())
		for _, id := range e.EntityIDs {
			if ent, ok := s.graph.Entity(id); ok && ent.Kind == hypergraph.KindMedia {
				scores[id] += decayed
			}
		}
	}

	ranked := make([]cache.Scored, 0, len(scores))
	for id, sc := range scores {
		if sc > 0 {
			ranked = append(ranked, cache.Scored{ID: id, Score: sc})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})

	// Cold-start padding: everything else, newest first.
	media := s.graph.EntitiesByKind(hypergraph.KindMedia)
	sort.SliceStable(media, func(i, j int) bool {
		return media[i].CreatedAt.After(media[j].CreatedAt)
	})
	for _, m := range media {
		if sc, ok := scores[m.ID]; ok && sc > 0 {
			continue
		}
		ranked = append(ranked, cache.Scored{ID: m.ID})
	}
	return ranked
}

// trendingItems applies f to the trending list and keeps the first limit.
func (s *Service) trendingItems(f *filter, limit int) []Item {
	items := make([]Item, 0, limit)
	for _, sc := range s.trendingScores(s.graph.Now()) {
		if len(items) == limit {
			break
		}
		ent, ok := s.graph.Entity(sc.ID)
		if !ok || !f.admit(ent) {
			continue
		}
		items = append(items, Item{ID: ent.ID, Score: sc.Score, Features: ent.Features})
	}
	return items
}
