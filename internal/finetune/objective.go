// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/vector"
)

// DefaultMargin is the triplet loss margin.
const DefaultMargin = 0.2

// Evaluator prepares the objective a worker evaluates for one job.
type Evaluator interface {
	Prepare(ctx context.Context, job *JobRequest, workerID string) (Evaluation, error)
}

// Evaluation is an objective bound to a fixed sample set. Loss must be
// deterministic for the same params.
type Evaluation interface {
	Loss(params *embedding.Params) float64
	Samples() int
}

// Triplet is one replayed interaction: a user anchor, an item the user
// interacted with positively, and an item they did not.
type Triplet struct {
	Anchor   string `json:"anchor"`
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// Objective is the mean triplet margin loss with cosine distance.
type Objective struct {
	Margin float64
}

// TripletLoss returns max(0, d(a,p) − d(a,n) + margin).
func (o Objective) TripletLoss(a, p, n vector.Vector) float64 {
	return math.Max(0, vector.CosineDistance(a, p)-vector.CosineDistance(a, n)+o.Margin)
}

// Mean evaluates the loss over triplets under params. raw holds the
// pre-projection vectors; triplets referencing a missing id are skipped.
func (o Objective) Mean(params *embedding.Params, raw map[string][]float64, triplets []Triplet) float64 {
	projected := make(map[string]vector.Vector, len(raw))
	project := func(id string) (vector.Vector, bool) {
		if v, ok := projected[id]; ok {
			return v, true
		}
		r, ok := raw[id]
		if !ok {
			return nil, false
		}
		v := params.Project(r)
		projected[id] = v
		return v, true
	}

	var sum float64
	n := 0
	for _, t := range triplets {
		a, ok1 := project(t.Anchor)
		p, ok2 := project(t.Positive)
		neg, ok3 := project(t.Negative)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		sum += o.TripletLoss(a, p, neg)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ReplayGraph is the read side of the hypergraph replay needs.
type ReplayGraph interface {
	Edges() []*hypergraph.Hyperedge
	EntitiesByKind(kind hypergraph.Kind) []hypergraph.Entity
}

// RawEmbedder produces pre-projection vectors.
type RawEmbedder interface {
	ComputeRaw(ctx context.Context, ids []string, generation uint64) (map[string][]float64, error)
}

// ReplayEvaluator replays positive user interactions from the local graph
// as triplets. Each worker draws its own sample from (job seed, worker id).
type ReplayEvaluator struct {
	graph     ReplayGraph
	embedder  RawEmbedder
	objective Objective
}

// NewReplayEvaluator creates a replay evaluator.
func NewReplayEvaluator(graph ReplayGraph, embedder RawEmbedder, objective Objective) *ReplayEvaluator {
	return &ReplayEvaluator{graph: graph, embedder: embedder, objective: objective}
}

type replayEvaluation struct {
	objective Objective
	raw       map[string][]float64
	triplets  []Triplet
}

func (e *replayEvaluation) Loss(params *embedding.Params) float64 {
	return e.objective.Mean(params, e.raw, e.triplets)
}

func (e *replayEvaluation) Samples() int {
	return len(e.triplets)
}

type pair struct{ user, item string }

// Prepare samples triplets and computes their raw vectors at the job's generation.
func (r *ReplayEvaluator) Prepare(ctx context.Context, job *JobRequest, workerID string) (Evaluation, error) {
	items := make([]string, 0)
	for _, e := range r.graph.EntitiesByKind(hypergraph.KindMedia) {
		if e.Active {
			items = append(items, e.ID)
		}
	}
	users := make(map[string]bool)
	for _, e := range r.graph.EntitiesByKind(hypergraph.KindUser) {
		users[e.ID] = true
	}
	itemSet := make(map[string]bool, len(items))
	for _, id := range items {
		itemSet[id] = true
	}

	seen := make(map[string]map[string]bool)
	var pairs []pair
	for _, edge := range r.graph.Edges() {
		if !edge.FromUser() || edge.Weight <= 0 {
			continue
		}
		for _, u := range edge.EntityIDs {
			if !users[u] {
				continue
			}
			for _, m := range edge.EntityIDs {
				if !itemSet[m] {
					continue
				}
				if seen[u] == nil {
					seen[u] = make(map[string]bool)
				}
				if !seen[u][m] {
					seen[u][m] = true
					pairs = append(pairs, pair{u, m})
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].user != pairs[j].user {
			return pairs[i].user < pairs[j].user
		}
		return pairs[i].item < pairs[j].item
	})

	rng := rand.New(rand.NewSource(job.Seed ^ workerSalt(workerID))) //nolint:gosec // deterministic replay sampling
	if job.MaxSamples > 0 && len(pairs) > job.MaxSamples {
		perm := rng.Perm(len(pairs))[:job.MaxSamples]
		sort.Ints(perm)
		sampled := make([]pair, len(perm))
		for i, p := range perm {
			sampled[i] = pairs[p]
		}
		pairs = sampled
	}

	triplets := make([]Triplet, 0, len(pairs))
	ids := make(map[string]struct{})
	for _, p := range pairs {
		neg, ok := sampleNegative(rng, items, seen[p.user])
		if !ok {
			continue
		}
		triplets = append(triplets, Triplet{Anchor: p.user, Positive: p.item, Negative: neg})
		ids[p.user], ids[p.item], ids[neg] = struct{}{}, struct{}{}, struct{}{}
	}

	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Strings(list)
	raw, err := r.embedder.ComputeRaw(ctx, list, job.Generation)
	if err != nil {
		return nil, fmt.Errorf("replay raw vectors: %w", err)
	}

	kept := triplets[:0]
	for _, t := range triplets {
		if _, ok := raw[t.Anchor]; !ok {
			continue
		}
		if _, ok := raw[t.Positive]; !ok {
			continue
		}
		if _, ok := raw[t.Negative]; !ok {
			continue
		}
		kept = append(kept, t)
	}
	return &replayEvaluation{objective: r.objective, raw: raw, triplets: kept}, nil
}

const negativeDraws = 16

func sampleNegative(rng *rand.Rand, items []string, seen map[string]bool) (string, bool) {
	if len(items) == 0 || len(seen) >= len(items) {
		return "", false
	}
	for i := 0; i < negativeDraws; i++ {
		if c := items[rng.Intn(len(items))]; !seen[c] {
			return c, true
		}
	}
	// dense users: scan from a random offset
	start := rng.Intn(len(items))
	for i := range items {
		if c := items[(start+i)%len(items)]; !seen[c] {
			return c, true
		}
	}
	return "", false
}

func workerSalt(workerID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(workerID))
	return int64(h.Sum64() & math.MaxInt64) //nolint:gosec // masked
}
