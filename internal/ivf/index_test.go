// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package ivf

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ruvector/internal/vector"
)

func randomVectors(n, dim int, seed int64) map[string]vector.Vector {
	rng := rand.New(rand.NewSource(seed))
	out := make(map[string]vector.Vector, n)
	for i := 0; i < n; i++ {
		v := make(vector.Vector, dim)
		for d := range v {
			v[d] = float32(rng.NormFloat64())
		}
		vector.Normalize(v)
		out[fmt.Sprintf("item:%04d", i)] = v
	}
	return out
}

func newIndex(t *testing.T, lists, probed int) *Index {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumLists = lists
	cfg.ProbedLists = probed
	cfg.Workers = 4
	ix, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	return ix
}

func TestQueryBeforeBuild(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 4, 1)
	_, _, err := ix.Query(vector.Vector{1, 0}, 5, 1)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
	_, err = ix.Exact(vector.Vector{1, 0}, 5)
	assert.ErrorIs(t, err, ErrIndexNotBuilt)
	assert.ErrorIs(t, ix.Insert("a", vector.Vector{1, 0}, 1), ErrIndexNotBuilt)
	assert.True(t, ix.NeedsRebuild())
}

func TestBuild_EveryEntryInExactlyOneList(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 8, 2)
	vecs := randomVectors(300, 16, 1)
	snap, err := ix.Build(context.Background(), 7, vecs, 42)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), snap.Generation)
	assert.Len(t, snap.Centroids, 8)
	assert.Equal(t, 300, snap.Size())

	seen := make(map[string]int)
	for l, list := range snap.Lists {
		for _, e := range list {
			seen[e.ID]++
			got, ok := snap.ListOf(e.ID)
			require.True(t, ok)
			assert.Equal(t, l, got)
		}
	}
	assert.Len(t, seen, 300)
	for id, n := range seen {
		assert.Equal(t, 1, n, "%s appears in %d lists", id, n)
	}
	assert.NoError(t, snap.Validate())
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	vecs := randomVectors(200, 8, 2)
	a, err := newIndex(t, 6, 2).Build(context.Background(), 1, vecs, 99)
	require.NoError(t, err)
	b, err := newIndex(t, 6, 2).Build(context.Background(), 1, vecs, 99)
	require.NoError(t, err)
	assert.Equal(t, a.ListSizes(), b.ListSizes())
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestBuild_FewerVectorsThanLists(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 16, 4)
	snap, err := ix.Build(context.Background(), 1, randomVectors(3, 4, 3), 1)
	require.NoError(t, err)
	assert.Len(t, snap.Lists, 3)

	empty, err := ix.Build(context.Background(), 2, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Size())
	hits, _, err := ix.Query(vector.Vector{1, 0, 0, 0}, 5, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := newIndex(t, 2, 1).Build(context.Background(), 1, map[string]vector.Vector{
		"a": {1, 0},
		"b": {1, 0, 0},
	}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBuild_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newIndex(t, 4, 1).Build(ctx, 1, randomVectors(50, 4, 4), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func recallAt(hits, exact []string) float64 {
	want := make(map[string]bool, len(exact))
	for _, id := range exact {
		want[id] = true
	}
	found := 0
	for _, id := range hits {
		if want[id] {
			found++
		}
	}
	return float64(found) / float64(len(exact))
}

func TestQuery_RecallMonotoneInProbedLists(t *testing.T) {
	t.Parallel()

	const lists, topN = 12, 10
	ix := newIndex(t, lists, 1)
	vecs := randomVectors(600, 16, 5)
	snap, err := ix.Build(context.Background(), 1, vecs, 7)
	require.NoError(t, err)

	queries := randomVectors(25, 16, 6)
	for qid, q := range queries {
		exact := snap.Exact(q, topN)
		exactIDs := make([]string, len(exact))
		for i, s := range exact {
			exactIDs[i] = s.ID
		}

		prev := -1.0
		for probed := 1; probed <= lists; probed++ {
			hits := snap.Query(q, topN, probed)
			hitIDs := make([]string, len(hits))
			for i, s := range hits {
				hitIDs[i] = s.ID
			}
			r := recallAt(hitIDs, exactIDs)
			assert.GreaterOrEqual(t, r, prev, "%s: recall dropped at probed=%d", qid, probed)
			prev = r
		}
		assert.Equal(t, 1.0, prev, "%s: probing every list must match exact search", qid)
	}
}

func TestQuery_TiesBrokenByID(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 1, 1)
	v := vector.Vector{1, 0}
	_, err := ix.Build(context.Background(), 1, map[string]vector.Vector{"c": v, "a": v, "b": v}, 1)
	require.NoError(t, err)

	hits, gen, err := ix.Query(v, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
}

func TestInsert_CopyOnWrite(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 4, 2)
	vecs := randomVectors(100, 8, 8)
	before, err := ix.Build(context.Background(), 1, vecs, 3)
	require.NoError(t, err)
	sizesBefore := before.ListSizes()

	fresh := randomVectors(1, 8, 9)["item:0000"]
	require.NoError(t, ix.Insert("new:1", fresh, 2))

	after := ix.Snapshot()
	assert.Equal(t, sizesBefore, before.ListSizes(), "old snapshot must not change")
	assert.Equal(t, 101, after.Size())
	assert.Equal(t, uint64(2), after.Generation)
	assert.Equal(t, before.Centroids, after.Centroids, "inserts never move centroids")

	// Re-inserting an existing id moves it rather than duplicating it.
	moved := vecs["item:0001"].Clone()
	for i := range moved {
		moved[i] = -moved[i]
	}
	require.NoError(t, ix.Insert("item:0001", moved, 2))
	snap := ix.Snapshot()
	assert.Equal(t, 101, snap.Size())
	count := 0
	for _, list := range snap.Lists {
		for _, e := range list {
			if e.ID == "item:0001" {
				count++
			}
		}
	}
	assert.Equal(t, 1, count)
	got, ok := snap.Vector("item:0001")
	require.True(t, ok)
	assert.Equal(t, moved, got)

	require.NoError(t, ix.Remove("item:0001", "missing"))
	assert.Equal(t, 100, ix.Snapshot().Size())
	_, ok = snap.Vector("item:0001")
	assert.True(t, ok, "removal must not affect earlier snapshots")
}

func TestNeedsRebuild(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 2, 1)
	_, err := ix.Build(context.Background(), 1, randomVectors(10, 4, 10), 1)
	require.NoError(t, err)
	assert.False(t, ix.NeedsRebuild())

	extra := randomVectors(3, 4, 11)
	batch := make(map[string]vector.Vector)
	for id, v := range extra {
		batch["x"+id] = v
	}
	require.NoError(t, ix.InsertBatch(batch, 1))
	assert.True(t, ix.NeedsRebuild(), "3 inserts over 10 exceeds 0.2")
}

func TestRestore_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	ix := newIndex(t, 2, 1)
	bad := &Snapshot{
		Dim:       2,
		Centroids: []vector.Vector{{1, 0}, {0, 1}},
		Lists: [][]Entry{
			{{ID: "a", Vector: vector.Vector{1, 0}}},
			{{ID: "a", Vector: vector.Vector{0, 1}}},
		},
	}
	assert.ErrorIs(t, ix.Restore(bad), ErrInvalidSnapshot)
	assert.False(t, ix.Built())

	good := &Snapshot{
		Generation: 4,
		Dim:        2,
		Centroids:  []vector.Vector{{1, 0}},
		Lists:      [][]Entry{{{ID: "a", Vector: vector.Vector{1, 0}}}},
	}
	require.NoError(t, ix.Restore(good))
	hits, gen, err := ix.Query(vector.Vector{1, 0}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), gen)
	assert.Equal(t, "a", hits[0].ID)
}

func TestTrain_AssignmentMatchesFinalCentroids(t *testing.T) {
	t.Parallel()

	vecs := randomVectors(300, 8, 11)
	points := make([]vector.Vector, 0, len(vecs))
	for i := 0; i < len(vecs); i++ {
		points = append(points, vecs[fmt.Sprintf("item:%04d", i)])
	}

	// A budget of one or two iterations stops right after a centroid update.
	for _, maxIter := range []int{1, 2, 25} {
		res, err := train(context.Background(), points, 12, maxIter, 3, 42)
		require.NoError(t, err)
		require.Len(t, res.centroids, 12)
		for i, p := range points {
			assert.Equal(t, nearest(p, res.centroids), res.assignment[i],
				"maxIter=%d: point %d assigned to a stale centroid", maxIter, i)
		}
	}
}
