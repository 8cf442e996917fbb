// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"context"
	"time"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/vector"
	"github.com/tomtom215/ruvector/internal/vectorstore"
)

// Source names where a response's items came from.
type Source string

const (
	// SourceSimilarity is a nearest-neighbour answer for one seed.
	SourceSimilarity Source = "similarity"
	// SourceMultiSeed is a fused answer for several seeds.
	SourceMultiSeed Source = "multi_seed"
	// SourceTrending is the decayed popularity list, either requested
	// directly or served as a fallback.
	SourceTrending Source = "trending"
)

// Fallback reasons reported when a similarity query is answered from trending.
const (
	FallbackIndexNotBuilt   = "index_not_built"
	FallbackInsufficient    = "insufficient_graph_data"
	FallbackStaleGeneration = "stale_generation"
)

// Query carries the per-request options shared by every operation.
type Query struct {
	// Limit is the number of items wanted; zero means the configured default.
	Limit int

	// ExcludeSeen drops media the context user has already interacted with.
	ExcludeSeen bool

	// UserID is the context user for ExcludeSeen when the seed is an item.
	// For user seeds it defaults to the seed.
	UserID string

	// Categories keeps only media whose genre, genres or category feature
	// matches one of these values, case-insensitively.
	Categories []string

	// RecencyWindow keeps only media registered within this window.
	RecencyWindow time.Duration

	// Explain attaches shared-attribute reasons to each item.
	Explain bool

	// Aggregation overrides the configured multi-seed fusion.
	Aggregation Aggregation
}

// Item is one recommended media entity.
type Item struct {
	ID       string              `json:"id"`
	Score    float64             `json:"score"`
	Features hypergraph.Features `json:"features,omitempty"`
	Reasons  []string            `json:"reasons,omitempty"`
}

// Response is the result of a recommendation query.
type Response struct {
	Seeds          []string `json:"seeds,omitempty"`
	Items          []Item   `json:"items"`
	Source         Source   `json:"source"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
	Generation     uint64   `json:"generation"`
	Cached         bool     `json:"cached"`
}

// Graph is the read side of the hypergraph used by queries.
type Graph interface {
	Entity(id string) (hypergraph.Entity, bool)
	AdjacencyOf(id string) ([]*hypergraph.Hyperedge, error)
	EdgesSince(since time.Time) []*hypergraph.Hyperedge
	EntitiesByKind(kind hypergraph.Kind) []hypergraph.Entity
	SharedAttributes(a, b string) ([]hypergraph.Entity, error)
	Version() uint64
	Now() time.Time
}

// Index answers nearest-neighbour queries. vectorstore.Store satisfies it.
type Index interface {
	Query(ctx context.Context, q vector.Vector, topN int) (vectorstore.Result, error)
}

// Embeddings reads published embedding generations. *embedding.Table
// satisfies it.
type Embeddings interface {
	CurrentNumber() uint64
	Vector(id string) (vector.Vector, uint64, bool)
	VectorAt(id string, generation uint64) (vector.Vector, bool, error)
}

// SeedEmbedder computes a vector on demand for a seed that is missing from
// the published generation, such as media registered after the last rebuild.
type SeedEmbedder func(ctx context.Context, id string) (vector.Vector, error)
