// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tomtom215/ruvector/internal/hypergraph"
)

// categoryKeys are the media features matched by category filters.
var categoryKeys = []string{"genre", "genres", "category"}

// interner assigns dense uint32 ids to entity ids so seen-sets can be held
// in roaring bitmaps. Ids are never released; the table grows with the
// entity set.
type interner struct {
	mu  sync.RWMutex
	ids map[string]uint32
}

func newInterner() *interner {
	return &interner{ids: make(map[string]uint32)}
}

func (in *interner) intern(id string) uint32 {
	in.mu.RLock()
	n, ok := in.ids[id]
	in.mu.RUnlock()
	if ok {
		return n
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if n, ok := in.ids[id]; ok {
		return n
	}
	n = uint32(len(in.ids)) //nolint:gosec // entity counts stay far below 2^32
	in.ids[id] = n
	return n
}

func (in *interner) lookup(id string) (uint32, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	n, ok := in.ids[id]
	return n, ok
}

// filter is the per-query admission test for candidate media.
type filter struct {
	ids        *interner
	exclude    *roaring.Bitmap
	categories map[string]struct{}
	notBefore  time.Time
}

// newFilter builds the admission test for q. Ids in extra are always
// excluded; ExcludeSeen adds everything contextUser has interacted with.
func (s *Service) newFilter(q Query, contextUser string, extra ...string) (*filter, error) {
	f := &filter{ids: s.ids, exclude: roaring.New()}

	for _, id := range extra {
		f.exclude.Add(s.ids.intern(id))
	}
	if q.ExcludeSeen && contextUser != "" {
		seen, err := s.seenBy(contextUser)
		if err != nil {
			return nil, err
		}
		for _, id := range seen {
			f.exclude.Add(s.ids.intern(id))
		}
	}

	if len(q.Categories) > 0 {
		f.categories = make(map[string]struct{}, len(q.Categories))
		for _, c := range q.Categories {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				f.categories[c] = struct{}{}
			}
		}
	}
	if q.RecencyWindow > 0 {
		f.notBefore = s.graph.Now().Add(-q.RecencyWindow)
	}
	return f, nil
}

// seenBy lists the media touched by any user interaction of user.
func (s *Service) seenBy(user string) ([]string, error) {
	edges, err := s.graph.AdjacencyOf(user)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range edges {
		if !e.FromUser() {
			continue
		}
		for _, m := range e.EntityIDs {
			if m != user {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// admit reports whether e may be recommended.
func (f *filter) admit(e hypergraph.Entity) bool {
	if e.Kind != hypergraph.KindMedia || !e.Active {
		return false
	}
	if n, ok := f.ids.lookup(e.ID); ok && f.exclude.Contains(n) {
		return false
	}
	if !f.notBefore.IsZero() && e.CreatedAt.Before(f.notBefore) {
		return false
	}
	if len(f.categories) > 0 && !f.matchesCategory(e.Features) {
		return false
	}
	return true
}

func (f *filter) matchesCategory(features hypergraph.Features) bool {
	for _, key := range categoryKeys {
		v, ok := features[key]
		if !ok {
			continue
		}
		for _, s := range v.Strings() {
			if _, hit := f.categories[strings.ToLower(strings.TrimSpace(s))]; hit {
				return true
			}
		}
	}
	return false
}
