// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package reranking

import (
	"context"
	"math"

	"github.com/tomtom215/ruvector/internal/vector"
)

// maxRerankSize limits slice allocations; k is also bounded by len(items).
const maxRerankSize = 10000

// Candidate is a scored item with the embedding used for diversity.
// A nil Vector is treated as dissimilar to everything.
type Candidate struct {
	ID     string
	Score  float64
	Vector vector.Vector
}

// MMR implements Maximal Marginal Relevance reranking over embedding
// cosine similarity.
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	// Lambda balances relevance vs. diversity (0.0 to 1.0)
	lambda float64
}

// NewMMR creates a new MMR reranker.
func NewMMR(lambda float64) *MMR {
	if lambda < 0 || math.IsNaN(lambda) {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Name returns the reranker identifier.
func (m *MMR) Name() string {
	return "mmr"
}

// Lambda returns the relevance weight.
func (m *MMR) Lambda() float64 {
	return m.lambda
}

// Rerank selects up to k items. items must be ordered by descending score;
// the first item is always selected first. Ties on the MMR score keep the
// earlier (higher-relevance) candidate.
func (m *MMR) Rerank(ctx context.Context, items []Candidate, k int) []Candidate {
	if len(items) == 0 || k <= 0 {
		return nil
	}
	if k > maxRerankSize {
		k = maxRerankSize
	}
	if k > len(items) {
		k = len(items)
	}

	if m.lambda >= 1.0 {
		out := make([]Candidate, k)
		copy(out, items[:k])
		return out
	}

	selected := make([]Candidate, 0, k)
	taken := make([]bool, len(items))
	// maxSim[i] is the highest similarity of item i to anything selected.
	maxSim := make([]float64, len(items))

	pick := func(idx int) {
		taken[idx] = true
		chosen := items[idx]
		selected = append(selected, chosen)
		for i := range items {
			if taken[i] {
				continue
			}
			if sim := similarity(items[i].Vector, chosen.Vector); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	pick(0)
	for len(selected) < k {
		if ctx.Err() != nil {
			break
		}
		bestIdx := -1
		bestMMR := math.Inf(-1)
		for i := range items {
			if taken[i] {
				continue
			}
			score := m.lambda*items[i].Score - (1-m.lambda)*maxSim[i]
			if score > bestMMR {
				bestMMR = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		pick(bestIdx)
	}
	return selected
}

func similarity(a, b vector.Vector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return vector.Cosine(a, b)
}
