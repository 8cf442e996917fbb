// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/pubsub"
)

// tasteGraph: users u0-u2 like m0/m1, users u3-u5 like m2/m3.
func tasteGraph(t *testing.T) *hypergraph.Store {
	t.Helper()
	g := hypergraph.NewStore(hypergraph.Options{Stripes: 4})
	for i := 0; i < 4; i++ {
		if _, err := g.RegisterEntity(fmt.Sprintf("m%d", i), hypergraph.KindMedia, nil); err != nil {
			t.Fatal(err)
		}
	}
	ts := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for u := 0; u < 6; u++ {
		uid := fmt.Sprintf("u%d", u)
		if _, err := g.RegisterEntity(uid, hypergraph.KindUser, nil); err != nil {
			t.Fatal(err)
		}
		items := []string{"m0", "m1"}
		if u >= 3 {
			items = []string{"m2", "m3"}
		}
		for i, m := range items {
			if _, err := g.RecordInteraction(hypergraph.Interaction{
				EntityIDs: []string{uid, m},
				Type:      hypergraph.Like,
				Timestamp: ts.Add(time.Duration(u*10+i) * time.Second),
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	// a skip is not a positive interaction
	if _, err := g.RecordInteraction(hypergraph.Interaction{
		EntityIDs: []string{"u0", "m3"},
		Type:      hypergraph.Skip,
		Timestamp: ts.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	return g
}

func testEmbedder(t *testing.T, g *hypergraph.Store) *embedding.Engine {
	t.Helper()
	cfg := embedding.DefaultConfig()
	cfg.Dimensions = 8
	cfg.WalkLength = 10
	cfg.WalksPerEntity = 4
	cfg.Workers = 2
	e, err := embedding.NewEngine(cfg, g, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestReplayEvaluator_Triplets(t *testing.T) {
	t.Parallel()

	g := tasteGraph(t)
	ev := NewReplayEvaluator(g, testEmbedder(t, g), Objective{Margin: DefaultMargin})
	job := &JobRequest{JobID: "j", Seed: 3, Perturbation: 0.1, Generation: 1, Params: embedding.IdentityParams(8)}

	got, err := ev.Prepare(context.Background(), job, "w1")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	re := got.(*replayEvaluation)
	if re.Samples() != 12 {
		t.Fatalf("samples = %d, want 12 positive user-item pairs", re.Samples())
	}
	for _, tr := range re.triplets {
		if tr.Negative == tr.Positive {
			t.Fatalf("triplet %+v uses its positive as negative", tr)
		}
		neg, _ := g.Entity(tr.Negative)
		if neg.Kind != hypergraph.KindMedia {
			t.Fatalf("negative %s is not media", tr.Negative)
		}
		cluster := tr.Anchor < "u3"
		if cluster && (tr.Negative == "m0" || tr.Negative == "m1") {
			t.Fatalf("negative %s was liked by %s", tr.Negative, tr.Anchor)
		}
	}

	again, err := ev.Prepare(context.Background(), job, "w1")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if l1, l2 := got.Loss(job.Params), again.Loss(job.Params); l1 != l2 {
		t.Errorf("replay not deterministic: %v vs %v", l1, l2)
	}
	if l := got.Loss(job.Params); math.IsNaN(l) || l < 0 {
		t.Errorf("loss = %v", l)
	}

	capped := *job
	capped.MaxSamples = 5
	small, err := ev.Prepare(context.Background(), &capped, "w2")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if small.Samples() != 5 {
		t.Errorf("capped samples = %d, want 5", small.Samples())
	}
}

func TestReplayEvaluator_AfterCompaction(t *testing.T) {
	t.Parallel()

	g := tasteGraph(t)
	if _, err := g.Compact(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}
	ev := NewReplayEvaluator(g, testEmbedder(t, g), Objective{Margin: DefaultMargin})
	job := &JobRequest{JobID: "j", Seed: 3, Perturbation: 0.1, Generation: 1, Params: embedding.IdentityParams(8)}

	got, err := ev.Prepare(context.Background(), job, "w1")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if got.Samples() != 12 {
		t.Errorf("samples = %d after compaction, want 12", got.Samples())
	}
}

func TestReplayEvaluator_EmptyGraph(t *testing.T) {
	t.Parallel()

	g := hypergraph.NewStore(hypergraph.Options{})
	ev := NewReplayEvaluator(g, testEmbedder(t, g), Objective{Margin: DefaultMargin})
	got, err := ev.Prepare(context.Background(), &JobRequest{JobID: "j", Perturbation: 0.1, Params: embedding.IdentityParams(8)}, "w")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if got.Samples() != 0 || got.Loss(embedding.IdentityParams(8)) != 0 {
		t.Errorf("empty graph produced samples=%d", got.Samples())
	}
}

func TestChannelBus_RoundOverRouter(t *testing.T) {
	t.Parallel()

	g := tasteGraph(t)
	emb := testEmbedder(t, g)
	logger := zerolog.Nop()

	bus := pubsub.NewChannelBus(pubsub.ChannelConfig{Topics: pubsub.DefaultTopics()}, logger)
	defer bus.Close()

	routerCfg := pubsub.DefaultRouterConfig()
	routerCfg.CloseTimeout = time.Second
	router, err := pubsub.NewRouter(routerCfg, logging.NewWatermillAdapter(logger))
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	cfg := testCoordinatorConfig(2)
	cfg.Seed = 5
	coord, err := NewCoordinator(cfg, emb.Params(), bus.Publisher, logger,
		WithGeneration(func() uint64 { return 1 }),
		WithOnPublish(func(_ context.Context, rc *RoundComplete) error { return emb.SetParams(rc.Params) }),
	)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}
	coord.Register(router, bus.Subscriber, bus.Topics.Results)

	evaluator := NewReplayEvaluator(g, emb, Objective{Margin: DefaultMargin})
	for _, id := range []string{"w1", "w2"} {
		w, err := NewWorker(WorkerConfig{ID: id, ResultsTopic: bus.Topics.Results}, evaluator, bus.Publisher, logger)
		if err != nil {
			t.Fatalf("NewWorker() error = %v", err)
		}
		w.Register(router, bus.Subscriber, bus.Topics.Jobs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()
	<-router.Running()

	rc, err := coord.RunRound(context.Background())
	if err != nil {
		t.Fatalf("RunRound() error = %v", err)
	}
	if rc.Round != 1 || rc.Workers != 2 {
		t.Errorf("round=%d workers=%d, want 1/2", rc.Round, rc.Workers)
	}
	if emb.Params().Round != 1 {
		t.Errorf("engine params round = %d, want 1", emb.Params().Round)
	}
}
