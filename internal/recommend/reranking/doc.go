// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package reranking implements post-processing for recommendation diversity.
//
// Reranking runs after retrieval has produced a relevance-ordered candidate
// list:
//
//	Index query -> Filters -> Rerankers -> Final ranking
//	(relevance)               (diversity)
//
// # MMR Algorithm
//
// Maximal Marginal Relevance iteratively selects items that are both
// relevant and dissimilar to already-selected items:
//
//	MMR = argmax[lambda * score(i) - (1-lambda) * max_similarity(i, selected)]
//
// Where:
//   - lambda: balance parameter (1.0 = pure relevance, 0.0 = pure diversity)
//   - score(i): relevance score from the similarity index
//   - max_similarity: maximum cosine similarity of the candidate embeddings
//
// The recommendation service derives lambda from its diversity weight as
// lambda = 1 - diversity_weight, so a weight of zero reduces MMR to a plain
// top-k cut.
//
// # Performance
//
//   - Time: O(k * n) similarity evaluations, each O(d) in the dimension
//   - Space: O(n) for the running max-similarity column
//
// # Thread Safety
//
// MMR is stateless and safe for concurrent use.
package reranking
