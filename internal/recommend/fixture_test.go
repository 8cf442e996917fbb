// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/rverrors"
	"github.com/tomtom215/ruvector/internal/vector"
	"github.com/tomtom215/ruvector/internal/vectorstore"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// bruteIndex answers queries by exact cosine over the current generation.
type bruteIndex struct {
	table *embedding.Table

	// staleFor makes the first N queries report a discarded generation.
	staleFor atomic.Int64
	calls    atomic.Int64
}

func (b *bruteIndex) Query(_ context.Context, q vector.Vector, topN int) (vectorstore.Result, error) {
	call := b.calls.Add(1)
	g := b.table.Current()
	if g == nil {
		return vectorstore.Result{}, rverrors.ErrIndexNotBuilt
	}
	hits := make([]cache.Scored, 0, len(g.Vectors))
	for id, v := range g.Vectors {
		hits = append(hits, cache.Scored{ID: id, Score: vector.Cosine(q, v)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	gen := g.Number
	if call <= b.staleFor.Load() {
		gen = 999
	}
	return vectorstore.Result{Hits: hits, Generation: gen}, nil
}

type fixture struct {
	now   time.Time
	graph *hypergraph.Store
	table *embedding.Table
	index *bruteIndex
}

func (f *fixture) clock() time.Time { return f.now }

// catalog registers media with their genre features and fixed embeddings.
type media struct {
	id       string
	features hypergraph.Features
	vec      vector.Vector
}

func newFixture(t *testing.T, items []media) *fixture {
	t.Helper()
	f := &fixture{now: t0.Add(-48 * time.Hour)}
	f.graph = hypergraph.NewStore(hypergraph.Options{Stripes: 4, Now: f.clock})
	f.table = embedding.NewTable()
	f.index = &bruteIndex{table: f.table}

	for _, m := range items {
		_, err := f.graph.RegisterMedia(m.id, m.features)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) publish(t *testing.T, number uint64, items []media) {
	t.Helper()
	vecs := make(map[string]vector.Vector, len(items))
	for _, m := range items {
		if m.vec != nil {
			vecs[m.id] = m.vec
		}
	}
	require.NoError(t, f.table.Publish(&embedding.Generation{Number: number, Vectors: vecs}))
}

func (f *fixture) interact(t *testing.T, user, item string, typ hypergraph.InteractionType, at time.Time) {
	t.Helper()
	_, err := f.graph.RegisterEntity(user, hypergraph.KindUser, nil)
	require.NoError(t, err)
	_, err = f.graph.RecordInteraction(hypergraph.Interaction{
		EntityIDs: []string{user, item},
		Type:      typ,
		Timestamp: at,
	})
	require.NoError(t, err)
}

func (f *fixture) service(t *testing.T, mutate func(*Config), opts ...Option) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DiversityWeight = 0
	cfg.CacheSize = 0
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg, f.graph, f.index, f.table, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return svc
}

func genre(name string) hypergraph.Features {
	return hypergraph.Features{"genre": hypergraph.String(name)}
}

// catalog is a small library with three genres and a cross-genre title.
// m-new is registered shortly before t0; everything else two days earlier.
var catalog = []media{
	{id: "m-action1", features: genre("Action"), vec: vector.Vector{1, 0, 0}},
	{id: "m-action2", features: genre("Action"), vec: vector.Vector{0.9, 0.1, 0}},
	{id: "m-comedy1", features: genre("Comedy"), vec: vector.Vector{0, 1, 0}},
	{id: "m-drama1", features: genre("Drama"), vec: vector.Vector{0, 0, 1}},
	{id: "m-mixed", features: hypergraph.Features{"genres": hypergraph.StringList("Action", "Comedy")}, vec: vector.Vector{0.7, 0.7, 0}},
}

var newRelease = media{id: "m-new", features: genre("Comedy"), vec: vector.Vector{0.1, 0.9, 0.2}}

// libraryFixture builds the catalog, registers m-new at t0-10m, records
// u1 liking m-action1 and publishes generation 1. The clock ends at t0.
func libraryFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, catalog)
	f.now = t0.Add(-10 * time.Minute)
	_, err := f.graph.RegisterMedia(newRelease.id, newRelease.features)
	require.NoError(t, err)
	f.now = t0

	f.interact(t, "u1", "m-action1", hypergraph.Like, t0.Add(-time.Hour))
	f.publish(t, 1, append(append([]media(nil), catalog...), newRelease))
	return f
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
