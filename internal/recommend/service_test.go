// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/rverrors"
	"github.com/tomtom215/ruvector/internal/vector"
)

func TestRecommend_UserSeed(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	svc := f.service(t, nil)
	ctx := context.Background()

	t.Run("excludes seen media", func(t *testing.T) {
		resp, err := svc.Recommend(ctx, "u1", Query{Limit: 2, ExcludeSeen: true})
		require.NoError(t, err)
		assert.Equal(t, SourceSimilarity, resp.Source)
		assert.Equal(t, uint64(1), resp.Generation)
		assert.Equal(t, []string{"m-action2", "m-mixed"}, ids(resp.Items))
		assert.Equal(t, []string{"u1"}, resp.Seeds)
	})

	t.Run("keeps history when not excluded", func(t *testing.T) {
		resp, err := svc.Recommend(ctx, "u1", Query{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"m-action1", "m-action2"}, ids(resp.Items))
	})

	t.Run("items carry features", func(t *testing.T) {
		resp, err := svc.Recommend(ctx, "u1", Query{Limit: 1, ExcludeSeen: true})
		require.NoError(t, err)
		require.Len(t, resp.Items, 1)
		g, ok := resp.Items[0].Features["genre"].Str()
		require.True(t, ok)
		assert.Equal(t, "Action", g)
	})
}

func TestRecommend_AfterCompaction(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	f.interact(t, "u2", "m-action1", hypergraph.Like, t0.Add(-time.Hour))
	f.interact(t, "u2", "m-mixed", hypergraph.Complete, t0.Add(-time.Hour))
	svc := f.service(t, nil)
	ctx := context.Background()

	before, err := svc.Recommend(ctx, "u1", Query{Limit: 2, ExcludeSeen: true})
	require.NoError(t, err)
	trendBefore, err := svc.Trending(ctx, Query{Limit: 3})
	require.NoError(t, err)
	similarBefore, err := svc.Similar(ctx, "m-action1", Query{Limit: 3})
	require.NoError(t, err)

	res, err := f.graph.Compact(t0.Add(time.Minute))
	require.NoError(t, err)
	require.NotZero(t, res.Folded)

	after, err := svc.Recommend(ctx, "u1", Query{Limit: 2, ExcludeSeen: true})
	require.NoError(t, err)
	assert.Equal(t, SourceSimilarity, after.Source)
	assert.Empty(t, after.FallbackReason)
	assert.Equal(t, ids(before.Items), ids(after.Items))
	assert.NotContains(t, ids(after.Items), "m-action1", "compacted history still counts as seen")

	trendAfter, err := svc.Trending(ctx, Query{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, ids(trendBefore.Items), ids(trendAfter.Items))
	for i := range trendAfter.Items {
		assert.InDelta(t, trendBefore.Items[i].Score, trendAfter.Items[i].Score, 1e-9)
	}

	similarAfter, err := svc.Similar(ctx, "m-action1", Query{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, ids(similarBefore.Items), ids(similarAfter.Items))
	for i := range similarAfter.Items {
		assert.InDelta(t, similarBefore.Items[i].Score, similarAfter.Items[i].Score, 1e-9, "co-interaction survives compaction")
	}
}

func TestRecommend_UnknownSeed(t *testing.T) {
	t.Parallel()
	svc := libraryFixture(t).service(t, nil)

	_, err := svc.Recommend(context.Background(), "nobody", Query{})
	assert.True(t, errors.Is(err, rverrors.ErrUnknownEntity), "err = %v", err)

	_, err = svc.Similar(context.Background(), "u1", Query{})
	assert.True(t, errors.Is(err, rverrors.ErrUnknownEntity), "users are not media seeds: %v", err)

	_, err = svc.MultiSeed(context.Background(), []string{"m-action1", "ghost"}, Query{})
	assert.True(t, errors.Is(err, rverrors.ErrUnknownEntity), "err = %v", err)

	_, err = svc.MultiSeed(context.Background(), nil, Query{})
	assert.ErrorIs(t, err, ErrNoSeeds)
}

func TestRecommend_LimitClamping(t *testing.T) {
	t.Parallel()
	svc := libraryFixture(t).service(t, func(c *Config) {
		c.DefaultLimit = 2
		c.MaxLimit = 3
	})

	resp, err := svc.Similar(context.Background(), "m-action1", Query{})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)

	resp, err = svc.Similar(context.Background(), "m-action1", Query{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 3)
}

func TestRecommend_FallsBackBeforeFirstBuild(t *testing.T) {
	t.Parallel()
	f := newFixture(t, catalog)
	f.now = t0
	svc := f.service(t, nil)

	resp, err := svc.Similar(context.Background(), "m-action1", Query{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, SourceTrending, resp.Source)
	assert.Equal(t, FallbackIndexNotBuilt, resp.FallbackReason)
	assert.Len(t, resp.Items, 3)
	assert.NotContains(t, ids(resp.Items), "m-action1", "the seed is never recommended")
}

func TestRecommend_SeedWithoutEmbedding(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	_, err := f.graph.RegisterMedia("m-late", genre("Drama"))
	require.NoError(t, err)

	t.Run("falls back without an embedder", func(t *testing.T) {
		resp, err := f.service(t, nil).Similar(context.Background(), "m-late", Query{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, SourceTrending, resp.Source)
		assert.Equal(t, FallbackInsufficient, resp.FallbackReason)
	})

	t.Run("embeds on demand", func(t *testing.T) {
		embed := func(_ context.Context, id string) (vector.Vector, error) {
			assert.Equal(t, "m-late", id)
			return vector.Vector{0, 0, 1}, nil
		}
		resp, err := f.service(t, nil, WithSeedEmbedder(embed)).Similar(context.Background(), "m-late", Query{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, SourceSimilarity, resp.Source)
		assert.Equal(t, []string{"m-drama1"}, ids(resp.Items))
	})
}

func TestSimilar_Filters(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	svc := f.service(t, nil)
	ctx := context.Background()

	t.Run("category", func(t *testing.T) {
		resp, err := svc.Similar(ctx, "m-action1", Query{Limit: 10, Categories: []string{" COMEDY "}})
		require.NoError(t, err)
		assert.Equal(t, []string{"m-mixed", "m-new", "m-comedy1"}, ids(resp.Items))
	})

	t.Run("recency", func(t *testing.T) {
		resp, err := svc.Similar(ctx, "m-action1", Query{Limit: 10, RecencyWindow: time.Hour})
		require.NoError(t, err)
		assert.Equal(t, []string{"m-new"}, ids(resp.Items))
	})

	t.Run("exclude seen for a context user", func(t *testing.T) {
		resp, err := svc.Similar(ctx, "m-action2", Query{Limit: 10, ExcludeSeen: true, UserID: "u1"})
		require.NoError(t, err)
		assert.NotContains(t, ids(resp.Items), "m-action1")
		assert.NotContains(t, ids(resp.Items), "m-action2")
	})

	t.Run("deactivated media", func(t *testing.T) {
		_, err := f.graph.Deactivate("m-action2")
		require.NoError(t, err)
		resp, err := svc.Similar(ctx, "m-action1", Query{Limit: 10})
		require.NoError(t, err)
		assert.NotContains(t, ids(resp.Items), "m-action2")
	})
}

func TestSimilar_CoInteractionOutranksCosine(t *testing.T) {
	t.Parallel()
	items := []media{
		{id: "a", vec: vector.Vector{1, 0, 0}},
		{id: "b", vec: vector.Vector{0, 1, 0}},
		{id: "c", vec: vector.Vector{0.2, 0, 0.98}},
	}
	f := newFixture(t, items)
	f.now = t0
	for _, u := range []string{"u1", "u2", "u3"} {
		f.interact(t, u, "a", hypergraph.Like, t0.Add(-time.Hour))
		f.interact(t, u, "b", hypergraph.Complete, t0.Add(-time.Hour))
	}
	f.interact(t, "u4", "a", hypergraph.Like, t0.Add(-time.Hour))
	f.interact(t, "u4", "c", hypergraph.View, t0.Add(-time.Hour))
	f.publish(t, 1, items)

	pure := f.service(t, func(c *Config) { c.CoInteractionWeight = 0 })
	resp, err := pure.Similar(context.Background(), "a", Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(resp.Items), "cosine alone prefers c")

	blended := f.service(t, nil)
	resp, err = blended.Similar(context.Background(), "a", Query{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(resp.Items))
	assert.InDelta(t, 0.5, resp.Items[0].Score, 1e-9)
}

func TestTrending_DecayAndPadding(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	f.interact(t, "u2", "m-comedy1", hypergraph.Like, t0)
	f.interact(t, "u3", "m-comedy1", hypergraph.Like, t0)
	f.interact(t, "u2", "m-drama1", hypergraph.Complete, t0.Add(-240*time.Hour))
	f.interact(t, "u3", "m-mixed", hypergraph.Skip, t0)
	svc := f.service(t, nil)

	resp, err := svc.Trending(context.Background(), Query{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, SourceTrending, resp.Source)
	assert.Empty(t, resp.FallbackReason)
	assert.Equal(t,
		[]string{"m-comedy1", "m-action1", "m-drama1", "m-new", "m-action2", "m-mixed"},
		ids(resp.Items))

	assert.InDelta(t, 4.0, resp.Items[0].Score, 1e-9)
	assert.InDelta(t, 2*0.990419, resp.Items[1].Score, 1e-4)
	assert.InDelta(t, 3*0.099213, resp.Items[2].Score, 1e-4)
	assert.Zero(t, resp.Items[5].Score, "a skip contributes nothing")

	t.Run("excludes the context user's history", func(t *testing.T) {
		resp, err := svc.Trending(context.Background(), Query{Limit: 2, ExcludeSeen: true, UserID: "u2"})
		require.NoError(t, err)
		assert.Equal(t, []string{"m-action1", "m-new"}, ids(resp.Items))
	})

	t.Run("outside the window only pads", func(t *testing.T) {
		f.now = t0.Add(60 * 24 * time.Hour)
		resp, err := svc.Trending(context.Background(), Query{Limit: 1})
		require.NoError(t, err)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "m-new", resp.Items[0].ID)
		assert.Zero(t, resp.Items[0].Score)
		f.now = t0
	})
}

func TestRecommend_StaleGenerationRetry(t *testing.T) {
	t.Parallel()

	t.Run("recovers within budget", func(t *testing.T) {
		f := libraryFixture(t)
		f.index.staleFor.Store(2)
		svc := f.service(t, func(c *Config) { c.StaleRetries = 3 })

		resp, err := svc.Similar(context.Background(), "m-action1", Query{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, SourceSimilarity, resp.Source)
		assert.Equal(t, int64(3), f.index.calls.Load())
	})

	t.Run("falls back after exhausting retries", func(t *testing.T) {
		f := libraryFixture(t)
		f.index.staleFor.Store(100)
		svc := f.service(t, func(c *Config) { c.StaleRetries = 3 })

		resp, err := svc.Similar(context.Background(), "m-action1", Query{Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, SourceTrending, resp.Source)
		assert.Equal(t, FallbackStaleGeneration, resp.FallbackReason)
		assert.Equal(t, int64(4), f.index.calls.Load())
	})
}

func TestRecommend_Cache(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	svc := f.service(t, func(c *Config) {
		c.CacheSize = 16
		c.CacheTTL = time.Minute
	})
	ctx := context.Background()
	q := Query{Limit: 2, ExcludeSeen: true}

	first, err := svc.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, ids(first.Items), ids(second.Items))
	assert.Equal(t, int64(1), f.index.calls.Load())

	// mutating a cached copy must not leak into the cache
	second.Items[0].ID = "tampered"
	third, err := svc.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.Equal(t, "m-action2", third.Items[0].ID)

	// a graph write changes the version and therefore the key
	f.interact(t, "u1", "m-action2", hypergraph.View, t0)
	fourth, err := svc.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.False(t, fourth.Cached)
	assert.NotContains(t, ids(fourth.Items), "m-action2")

	svc.InvalidateCache()
	fifth, err := svc.Recommend(ctx, "u1", q)
	require.NoError(t, err)
	assert.False(t, fifth.Cached)
}

func TestMultiSeed(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	svc := f.service(t, nil)
	ctx := context.Background()
	seeds := []string{"m-action1", "m-comedy1", "m-action1"}

	t.Run("score aggregation", func(t *testing.T) {
		resp, err := svc.MultiSeed(ctx, seeds, Query{Limit: 3, Aggregation: AggregateScore})
		require.NoError(t, err)
		assert.Equal(t, SourceMultiSeed, resp.Source)
		assert.Equal(t, []string{"m-action1", "m-comedy1"}, resp.Seeds)
		assert.Equal(t, []string{"m-mixed", "m-action2", "m-new"}, ids(resp.Items))
	})

	t.Run("rank aggregation excludes seeds", func(t *testing.T) {
		resp, err := svc.MultiSeed(ctx, seeds, Query{Limit: 10})
		require.NoError(t, err)
		got := ids(resp.Items)
		assert.NotContains(t, got, "m-action1")
		assert.NotContains(t, got, "m-comedy1")
		assert.Len(t, got, 4)
	})

	t.Run("invalid aggregation", func(t *testing.T) {
		_, err := svc.MultiSeed(ctx, seeds, Query{Aggregation: "median"})
		assert.Error(t, err)
	})
}

func TestExplain(t *testing.T) {
	t.Parallel()
	f := libraryFixture(t)
	svc := f.service(t, nil)
	ctx := context.Background()

	reasons, err := svc.Explain(ctx, "u1", "m-mixed")
	require.NoError(t, err)
	assert.Equal(t, []string{"Similar genre: Action"}, reasons)

	reasons, err = svc.Explain(ctx, "u1", "m-drama1")
	require.NoError(t, err)
	assert.Equal(t, []string{reasonPreferences}, reasons)

	_, err = svc.Explain(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, rverrors.ErrUnknownEntity)

	resp, err := svc.Similar(ctx, "m-action1", Query{Limit: 1, Explain: true})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, []string{"Similar genre: Action"}, resp.Items[0].Reasons)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero default limit", func(c *Config) { c.DefaultLimit = 0 }, true},
		{"max below default", func(c *Config) { c.MaxLimit = 1 }, true},
		{"diversity above one", func(c *Config) { c.DiversityWeight = 1.5 }, true},
		{"unknown aggregation", func(c *Config) { c.Aggregation = "median" }, true},
		{"co-interaction negative", func(c *Config) { c.CoInteractionWeight = -0.1 }, true},
		{"zero half-life", func(c *Config) { c.TrendingHalfLife = 0 }, true},
		{"cache without ttl", func(c *Config) { c.CacheTTL = 0 }, true},
		{"cache disabled without ttl", func(c *Config) { c.CacheSize, c.CacheTTL = 0, 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
