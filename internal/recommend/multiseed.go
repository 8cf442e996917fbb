// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/recommend/reranking"
	"github.com/tomtom215/ruvector/internal/rverrors"
	"github.com/tomtom215/ruvector/internal/vector"
)

// ErrNoSeeds is returned by MultiSeed without any seed.
var ErrNoSeeds = errors.New("at least one seed is required")

// MultiSeed recommends media for several seeds at once. Each seed is
// queried independently and the lists are fused by reciprocal rank or by
// mean score. The seeds themselves never appear in the result.
func (s *Service) MultiSeed(ctx context.Context, seedIDs []string, q Query) (*Response, error) {
	seeds, err := s.resolveSeeds(seedIDs)
	if err != nil {
		return nil, err
	}
	q.Limit = s.cfg.clampLimit(q.Limit)
	if q.Aggregation == "" {
		q.Aggregation = s.cfg.Aggregation
	}
	if !q.Aggregation.Valid() {
		return nil, fmt.Errorf("aggregation must be rank or score, got %q", q.Aggregation)
	}

	ids := make([]string, len(seeds))
	for i, seed := range seeds {
		ids[i] = seed.ID
	}
	return s.cached(ctx, "multi", ids, q, func(ctx context.Context) (*Response, error) {
		return s.multiSeed(ctx, seeds, ids, q)
	})
}

func (s *Service) resolveSeeds(seedIDs []string) ([]hypergraph.Entity, error) {
	if len(seedIDs) == 0 {
		return nil, ErrNoSeeds
	}
	seen := make(map[string]struct{}, len(seedIDs))
	seeds := make([]hypergraph.Entity, 0, len(seedIDs))
	for _, id := range seedIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ent, ok := s.graph.Entity(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", rverrors.ErrUnknownEntity, id)
		}
		seeds = append(seeds, ent)
	}
	return seeds, nil
}

func (s *Service) multiSeed(ctx context.Context, seeds []hypergraph.Entity, ids []string, q Query) (*Response, error) {
	f, err := s.newFilter(q, q.UserID, ids...)
	if err != nil {
		return nil, err
	}
	if q.ExcludeSeen {
		for _, seed := range seeds {
			if seed.Kind != hypergraph.KindUser {
				continue
			}
			history, err := s.seenBy(seed.ID)
			if err != nil {
				return nil, err
			}
			for _, id := range history {
				f.exclude.Add(s.ids.intern(id))
			}
		}
	}

	// Resolve query vectors; seeds without one are skipped.
	var (
		queries  []vector.Vector
		firstErr error
	)
	for _, seed := range seeds {
		qv, err := s.seedVector(ctx, seed)
		if err != nil {
			if _, degraded := fallbackReason(err); !degraded {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		queries = append(queries, qv)
	}
	if len(queries) == 0 {
		return s.fallbackOr(firstErr, ids, f, q)
	}

	lists := make([][]reranking.Candidate, len(queries))
	gens := make([]uint64, len(queries))
	err = s.withStaleRetry(ctx, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Parallelism)
		for i, qv := range queries {
			g.Go(func() error {
				cands, gen, err := s.retrieve(gctx, qv, f, q.Limit)
				if err != nil {
					return err
				}
				lists[i], gens[i] = cands, gen
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return s.fallbackOr(err, ids, f, q)
	}

	fused := fuse(lists, q.Aggregation, s.cfg.RRFK)
	var gen uint64
	for _, g := range gens {
		if g > gen {
			gen = g
		}
	}

	resp := &Response{
		Seeds:      ids,
		Items:      s.toItems(s.mmr.Rerank(ctx, fused, q.Limit)),
		Source:     SourceMultiSeed,
		Generation: gen,
	}
	if q.Explain {
		s.attachMultiReasons(seeds, resp.Items)
	}
	return resp, nil
}

// fuse merges per-seed candidate lists into one list ordered by the fused
// score. Rank fusion sums 1/(k + rank) with 1-based ranks; score fusion
// averages similarity over all seeds, counting a missing entry as zero.
func fuse(lists [][]reranking.Candidate, agg Aggregation, k float64) []reranking.Candidate {
	scores := make(map[string]float64)
	vectors := make(map[string]vector.Vector)
	order := make([]string, 0)

	for _, list := range lists {
		for rank, c := range list {
			if _, ok := vectors[c.ID]; !ok {
				vectors[c.ID] = c.Vector
				order = append(order, c.ID)
			}
			switch agg {
			case AggregateScore:
				scores[c.ID] += c.Score / float64(len(lists))
			default:
				scores[c.ID] += 1 / (k + float64(rank+1))
			}
		}
	}

	out := make([]reranking.Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, reranking.Candidate{ID: id, Score: scores[id], Vector: vectors[id]})
	}
	sortCandidates(out)
	return out
}

func (s *Service) attachMultiReasons(seeds []hypergraph.Entity, items []Item) {
	histories := make([][]string, len(seeds))
	for i, seed := range seeds {
		histories[i] = s.historyOf(seed)
	}
	for i := range items {
		seen := make(map[string]struct{})
		var merged []string
		for j, seed := range seeds {
			for _, r := range s.reasons(seed, histories[j], items[i].ID) {
				if r == reasonPreferences {
					continue
				}
				if _, dup := seen[r]; dup || len(merged) == maxReasons {
					continue
				}
				seen[r] = struct{}{}
				merged = append(merged, r)
			}
		}
		if len(merged) == 0 {
			merged = []string{reasonPreferences}
		}
		items[i].Reasons = merged
	}
}
