// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package vectorstore defines the similarity backend contract used by the
// recommendation service, with the in-process IVF index as the default
// implementation. The postgres subpackage provides a pgvector backend.
package vectorstore

import (
	"context"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/ivf"
	"github.com/tomtom215/ruvector/internal/vector"
)

// Result is a ranked list of hits and the embedding generation they came from.
type Result struct {
	Hits       []cache.Scored
	Generation uint64
}

// Store is a similarity backend.
type Store interface {
	// Name identifies the backend in metrics and logs.
	Name() string

	// Build replaces the indexed set with vectors.
	Build(ctx context.Context, generation uint64, vectors map[string]vector.Vector) error

	// Upsert adds or replaces vectors without a full rebuild.
	Upsert(ctx context.Context, generation uint64, vectors map[string]vector.Vector) error

	// Query returns up to topN nearest entries by cosine similarity.
	Query(ctx context.Context, q vector.Vector, topN int) (Result, error)

	// Vector returns the indexed vector for id.
	Vector(ctx context.Context, id string) (vector.Vector, bool, error)
}

// IVFStore adapts an ivf.Index to Store.
type IVFStore struct {
	index  *ivf.Index
	seed   int64
	probed int
}

// NewIVF wraps index. Builds use seed and queries probe probed lists.
func NewIVF(index *ivf.Index, seed int64, probed int) *IVFStore {
	return &IVFStore{index: index, seed: seed, probed: probed}
}

// Index returns the underlying index.
func (s *IVFStore) Index() *ivf.Index {
	return s.index
}

// Name implements Store.
func (s *IVFStore) Name() string {
	return "ivf"
}

// Build implements Store.
func (s *IVFStore) Build(ctx context.Context, generation uint64, vectors map[string]vector.Vector) error {
	_, err := s.index.Build(ctx, generation, vectors, s.seed)
	return err
}

// Upsert implements Store.
func (s *IVFStore) Upsert(_ context.Context, generation uint64, vectors map[string]vector.Vector) error {
	return s.index.InsertBatch(vectors, generation)
}

// Query implements Store.
func (s *IVFStore) Query(_ context.Context, q vector.Vector, topN int) (Result, error) {
	hits, gen, err := s.index.Query(q, topN, s.probed)
	if err != nil {
		return Result{}, err
	}
	return Result{Hits: hits, Generation: gen}, nil
}

// Vector implements Store.
func (s *IVFStore) Vector(_ context.Context, id string) (vector.Vector, bool, error) {
	snap := s.index.Snapshot()
	if snap == nil {
		return nil, false, ivf.ErrIndexNotBuilt
	}
	v, ok := snap.Vector(id)
	return v, ok, nil
}
