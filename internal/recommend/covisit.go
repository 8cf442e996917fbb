// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"github.com/tomtom215/ruvector/internal/hypergraph"
)

// coInteraction scores media by how strongly the users who engaged with
// seed also engaged with them:
//
//	co(seed, x) = sum over users u with a positive interaction on seed of w(u, x)
//
// where w(u, x) is the summed positive interaction weight between u and x.
// Scores are normalized into [0, 1] by the maximum. The seed itself is
// never scored.
func (s *Service) coInteraction(seed string) (map[string]float64, error) {
	edges, err := s.graph.AdjacencyOf(seed)
	if err != nil {
		return nil, err
	}

	users := make(map[string]struct{})
	for _, e := range edges {
		if !e.FromUser() || e.Weight <= 0 {
			continue
		}
		for _, id := range e.EntityIDs {
			if ent, ok := s.graph.Entity(id); ok && ent.Kind == hypergraph.KindUser {
				users[id] = struct{}{}
			}
		}
	}

	co := make(map[string]float64)
	for u := range users {
		userEdges, err := s.graph.AdjacencyOf(u)
		if err != nil {
			return nil, err
		}
		for _, e := range userEdges {
			if !e.FromUser() || e.Weight <= 0 {
				continue
			}
			for _, id := range e.EntityIDs {
				if id == u || id == seed {
					continue
				}
				co[id] += e.Weight
			}
		}
	}

	var peak float64
	for _, v := range co {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return nil, nil
	}
	for id := range co {
		co[id] /= peak
	}
	return co, nil
}
