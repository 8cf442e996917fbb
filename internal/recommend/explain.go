// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/rverrors"
)

const (
	maxReasons      = 3
	maxHistoryItems = 10

	reasonTrending    = "Trending now"
	reasonPreferences = "Recommended based on your preferences"
)

// Explain returns human-readable reasons linking a seed to a recommended
// media item, derived from attribute entities they share.
func (s *Service) Explain(_ context.Context, seedID, itemID string) ([]string, error) {
	seed, ok := s.graph.Entity(seedID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", rverrors.ErrUnknownEntity, seedID)
	}
	if _, ok := s.graph.Entity(itemID); !ok {
		return nil, fmt.Errorf("%w: %s", rverrors.ErrUnknownEntity, itemID)
	}
	return s.reasons(seed, s.historyOf(seed), itemID), nil
}

// attachReasons fills Reasons on each item.
func (s *Service) attachReasons(seed hypergraph.Entity, items []Item) {
	history := s.historyOf(seed)
	for i := range items {
		items[i].Reasons = s.reasons(seed, history, items[i].ID)
	}
}

// historyOf returns the media a user seed engaged with most, strongest
// first. Media seeds have no history.
func (s *Service) historyOf(seed hypergraph.Entity) []string {
	if seed.Kind != hypergraph.KindUser {
		return nil
	}
	edges, err := s.graph.AdjacencyOf(seed.ID)
	if err != nil {
		return nil
	}
	weights := make(map[string]float64)
	for _, e := range edges {
		if !e.FromUser() || e.Weight <= 0 {
			continue
		}
		for _, id := range e.EntityIDs {
			if id != seed.ID {
				weights[id] += e.Weight
			}
		}
	}
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if weights[ids[i]] != weights[ids[j]] {
			return weights[ids[i]] > weights[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > maxHistoryItems {
		ids = ids[:maxHistoryItems]
	}
	return ids
}

func (s *Service) reasons(seed hypergraph.Entity, history []string, itemID string) []string {
	sources := history
	if seed.Kind != hypergraph.KindUser {
		sources = []string{seed.ID}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, src := range sources {
		if src == itemID {
			continue
		}
		shared, err := s.graph.SharedAttributes(src, itemID)
		if err != nil {
			continue
		}
		for _, attr := range shared {
			if _, dup := seen[attr.ID]; dup {
				continue
			}
			seen[attr.ID] = struct{}{}
			out = append(out, describe(attr))
			if len(out) == maxReasons {
				return out
			}
		}
	}
	if len(out) == 0 {
		return []string{reasonPreferences}
	}
	return out
}

func describe(attr hypergraph.Entity) string {
	name := hypergraph.AttributeName(attr)
	switch attr.Kind {
	case hypergraph.KindGenre:
		return "Similar genre: " + name
	case hypergraph.KindDirector:
		return "Same director: " + name
	case hypergraph.KindActor:
		return "Shared cast: " + name
	default:
		return "Shares " + name
	}
}
