// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package recommend answers recommendation queries over the hypergraph
// embeddings.
//
// # Query Flow
//
//	seed -> query vector -> index (over-fetch) -> filters -> rescoring -> MMR -> items
//
// A query vector is the seed's published embedding. Users without one are
// represented by the interaction-weighted mean of the media they engaged
// with, and media registered after the last rebuild are embedded on demand
// when a SeedEmbedder is installed.
//
// Item seeds blend cosine similarity with co-interaction evidence, the
// summed interaction weight of users who engaged with both titles, so that
// "people who watched A also watched B" outranks attribute overlap alone.
//
// # Degraded Operation
//
// Queries never fail because the index is missing or stale. They are
// answered from the trending list instead, with Response.Source set to
// "trending" and FallbackReason naming the cause:
//
//   - index_not_built: no embedding generation has been published yet
//   - insufficient_graph_data: the seed has no usable neighbourhood
//   - stale_generation: the retrieved generation was discarded mid-query
//     more often than the configured retry budget allows
//
// # Caching
//
// Responses are held in an expiring LRU keyed by the query, the embedding
// generation and the graph version, and concurrent identical misses are
// collapsed with singleflight.
//
// # Usage
//
//	svc, err := recommend.NewService(recommend.DefaultConfig(), graph, store, table, logger)
//	resp, err := svc.Recommend(ctx, "user-42", recommend.Query{Limit: 10, ExcludeSeen: true})
package recommend
