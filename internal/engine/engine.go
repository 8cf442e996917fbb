// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ruvector/internal/blobstore"
	"github.com/tomtom215/ruvector/internal/config"
	"github.com/tomtom215/ruvector/internal/docstore"
	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/finetune"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/ivf"
	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/pubsub"
	"github.com/tomtom215/ruvector/internal/recommend"
	"github.com/tomtom215/ruvector/internal/retry"
	"github.com/tomtom215/ruvector/internal/snapshot"
	"github.com/tomtom215/ruvector/internal/vector"
	"github.com/tomtom215/ruvector/internal/vectorstore"
	"github.com/tomtom215/ruvector/internal/vectorstore/postgres"
)

// ErrNotInitialized is returned by operations that need Initialize first.
var ErrNotInitialized = errors.New("engine not initialized")

// Engine owns the hypergraph, embeddings, similarity backend, fine-tuning
// pipeline and snapshot manager of one node.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger

	graph    *hypergraph.Store
	embedder *embedding.Engine
	table    *embedding.Table
	index    *ivf.Index // nil unless the in-process backend is used
	store    vectorstore.Store
	recs     *recommend.Service

	docs      docstore.Store
	blobs     blobstore.Store
	snapshots *snapshot.Manager

	bus         *pubsub.Bus
	router      *pubsub.Router
	coordinator *finetune.Coordinator
	workers     []*finetune.Worker
	jobs        *finetune.JobManager

	buildRetry retry.Config

	// buildMu serializes rebuilds, incremental index writes and state swaps.
	// Queries never take it.
	buildMu sync.Mutex

	initialized atomic.Bool
	paramsDirty atomic.Bool
	lastBuild   atomic.Pointer[BuildResult]

	closers []func() error
}

type options struct {
	docs  docstore.Store
	blobs blobstore.Store
	bus   *pubsub.Bus
	store vectorstore.Store
	now   func() time.Time
}

// Option customizes New.
type Option func(*options)

// WithDocStore uses docs instead of opening the configured document store.
func WithDocStore(docs docstore.Store) Option {
	return func(o *options) { o.docs = docs }
}

// WithBlobStore uses blobs instead of opening the configured blob store.
func WithBlobStore(blobs blobstore.Store) Option {
	return func(o *options) { o.blobs = blobs }
}

// WithBus uses bus instead of opening the configured transport. The caller
// keeps ownership and closes it.
func WithBus(bus *pubsub.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithVectorStore replaces the configured similarity backend.
func WithVectorStore(store vectorstore.Store) Option {
	return func(o *options) { o.store = store }
}

// WithClock sets the hypergraph clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires an engine from cfg. The engine is empty until Initialize.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "engine").Logger(),
		table:  embedding.NewTable(),
		buildRetry: retry.Config{
			MaxAttempts:     3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
			RetryIf:         retryableBuildError,
		},
	}
	ok := false
	defer func() {
		if !ok {
			_ = e.closeAll()
		}
	}()

	e.graph = hypergraph.NewStore(hypergraph.Options{
		Stripes: cfg.Graph.LockStripes,
		Weights: graphWeights(&cfg.Graph),
		Now:     o.now,
	})

	embedder, err := embedding.NewEngine(embeddingConfig(&cfg.Embedding), e.graph, logger)
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}
	e.embedder = embedder

	if err := e.openVectorStore(ctx, o.store); err != nil {
		return nil, err
	}

	recs, err := recommend.NewService(recommend.FromSettings(cfg.Recommend), e.graph, e.store, e.table, logger,
		recommend.WithSeedEmbedder(e.embedSeed))
	if err != nil {
		return nil, fmt.Errorf("recommend service: %w", err)
	}
	e.recs = recs

	if err := e.openStorage(ctx, o); err != nil {
		return nil, err
	}

	codec, err := snapshot.ParseCodec(cfg.Snapshot.Compression)
	if err != nil {
		return nil, err
	}
	e.snapshots = snapshot.NewManager(e.blobs, e.docs, e, snapshot.Config{Codec: codec, Retain: cfg.Snapshot.Retain}, logger)

	if err := e.openMessaging(o.bus, logger); err != nil {
		return nil, err
	}

	e.jobs = finetune.NewJobManager(finetune.JobManagerConfig{
		SubmitRate:  rate.Every(time.Second),
		SubmitBurst: 5,
	}, e.docs, e, logger)
	e.closers = append(e.closers, func() error { e.jobs.Close(); return nil })

	ok = true
	return e, nil
}

func (e *Engine) openVectorStore(ctx context.Context, injected vectorstore.Store) error {
	if injected != nil {
		e.store = injected
		if s, ok := injected.(*vectorstore.IVFStore); ok {
			e.index = s.Index()
		}
		return nil
	}

	switch e.cfg.Index.Backend {
	case "", "ivf":
		index, err := ivf.New(ivf.Config{
			NumLists:      e.cfg.Index.NumLists,
			ProbedLists:   e.cfg.Index.ProbedLists,
			MaxIterations: e.cfg.Index.MaxIterations,
			RebuildRatio:  e.cfg.Index.RebuildRatio,
			Workers:       e.cfg.Embedding.Workers,
		}, e.logger)
		if err != nil {
			return fmt.Errorf("ivf index: %w", err)
		}
		e.index = index
		e.store = vectorstore.NewIVF(index, e.cfg.Index.Seed, e.cfg.Index.ProbedLists)
	case "pgvector":
		pg := e.cfg.Postgres
		store, err := postgres.Open(pg.DSN, pg.MaxOpenConns, postgres.Config{
			Table:          pg.Table,
			Dimensions:     e.cfg.Embedding.Dimensions,
			IndexKind:      pg.IndexKind,
			Lists:          pg.Lists,
			Probes:         pg.Probes,
			M:              pg.M,
			EfConstruction: pg.EfConstruction,
		}, e.logger)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, store.Close)
		if err := store.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize pgvector: %w", err)
		}
		e.store = store
	default:
		return fmt.Errorf("unknown index backend %q", e.cfg.Index.Backend)
	}
	return nil
}

func (e *Engine) openStorage(ctx context.Context, o *options) error {
	e.docs = o.docs
	if e.docs == nil {
		docs, err := docstore.Open(ctx, &e.cfg.Storage, e.logger)
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		e.docs = docs
		e.closers = append(e.closers, docs.Close)
	}
	e.blobs = o.blobs
	if e.blobs == nil {
		blobs, err := blobstore.Open(ctx, &e.cfg.Storage)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		e.blobs = blobs
	}
	return nil
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func (e *Engine) openMessaging(bus *pubsub.Bus, logger zerolog.Logger) error {
	ft := e.cfg.FineTune
	workerID := ft.WorkerID
	if workerID == "" {
		workerID = "local"
	}

	e.bus = bus
	if e.bus == nil {
		opened, err := pubsub.Open(&e.cfg.PubSub, &e.cfg.NATS, workerID, logger)
		if err != nil {
			return fmt.Errorf("open pubsub: %w", err)
		}
		e.bus = opened
		e.closers = append(e.closers, opened.Close)
	}

	routerCfg := pubsub.DefaultRouterConfig()
	if e.cfg.PubSub.DedupCapacity > 0 {
		routerCfg.DedupCapacity = e.cfg.PubSub.DedupCapacity
	}
	if e.cfg.PubSub.DedupTTL > 0 {
		routerCfg.DedupTTL = e.cfg.PubSub.DedupTTL
	}
	if e.cfg.PubSub.RetryCount > 0 {
		routerCfg.RetryMaxRetries = e.cfg.PubSub.RetryCount
	}
	if e.cfg.PubSub.RetryInitialInterval > 0 {
		routerCfg.RetryInitialInterval = e.cfg.PubSub.RetryInitialInterval
	}
	if e.cfg.NATS.CloseTimeout > 0 {
		routerCfg.CloseTimeout = e.cfg.NATS.CloseTimeout
	}
	router, err := pubsub.NewRouter(routerCfg, logging.NewWatermillAdapter(logger))
	if err != nil {
		return err
	}
	e.router = router
	e.closers = append(e.closers, router.Close)

	topics := e.bus.Topics
	coord, err := finetune.NewCoordinator(finetune.CoordinatorConfig{
		Quorum:        ft.Quorum,
		QuorumTimeout: ft.QuorumTimeout,
		Schedule: finetune.Schedule{
			A:         ft.A,
			C:         ft.C,
			Alpha:     ft.Alpha,
			Gamma:     ft.Gamma,
			Stability: ft.Stability,
		},
		Retry: retry.Config{
			MaxAttempts:     ft.MaxAttempts,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			Multiplier:      2.0,
		},
		Seed:           e.cfg.Index.Seed,
		MaxSamples:     ft.ReplaySamples,
		JobsTopic:      topics.Jobs,
		ModelSyncTopic: topics.ModelSync,
	}, e.embedder.Params(), e.bus.Publisher, logger,
		finetune.WithGeneration(e.table.CurrentBasis),
		finetune.WithOnPublish(e.adoptRound),
	)
	if err != nil {
		return fmt.Errorf("fine-tune coordinator: %w", err)
	}
	e.coordinator = coord
	coord.Register(router, e.bus.Subscriber, topics.Results)

	evaluator := finetune.NewReplayEvaluator(e.graph, e.embedder, finetune.Objective{Margin: ft.Margin})
	for i := 0; i < ft.LocalWorkers; i++ {
		w, err := finetune.NewWorker(finetune.WorkerConfig{
			ID:           fmt.Sprintf("%s-%d", workerID, i+1),
			ResultsTopic: topics.Results,
		}, evaluator, e.bus.Publisher, logger)
		if err != nil {
			return err
		}
		w.Register(router, e.bus.Subscriber, topics.Jobs)
		e.workers = append(e.workers, w)
	}

	router.AddConsumerHandler("engine.model_sync", topics.ModelSync, e.bus.Subscriber, finetune.SyncHandler(e.applySync))
	return nil
}

// Close stops background jobs and releases every store the engine opened.
func (e *Engine) Close() error {
	return e.closeAll()
}

func (e *Engine) closeAll() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// RunMessaging runs the fine-tuning message router until ctx is cancelled.
func (e *Engine) RunMessaging(ctx context.Context) error {
	return e.router.Run(ctx)
}

// MessagingRunning closes once the router is consuming.
func (e *Engine) MessagingRunning() <-chan struct{} {
	return e.router.Running()
}

// Initialized reports whether Initialize has completed.
func (e *Engine) Initialized() bool {
	return e.initialized.Load()
}

// Graph returns the hypergraph store.
func (e *Engine) Graph() *hypergraph.Store {
	return e.graph
}

// Snapshots returns the snapshot manager.
func (e *Engine) Snapshots() *snapshot.Manager {
	return e.snapshots
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) embedSeed(ctx context.Context, id string) (vector.Vector, error) {
	return e.embedder.Embed(ctx, id, e.table.CurrentBasis())
}

func graphWeights(g *config.GraphConfig) map[hypergraph.InteractionType]float64 {
	w := make(map[hypergraph.InteractionType]float64)
	if g.ViewWeight != 0 {
		w[hypergraph.View] = g.ViewWeight
	}
	if g.LikeWeight != 0 {
		w[hypergraph.Like] = g.LikeWeight
	}
	if g.CompleteWeight != 0 {
		w[hypergraph.Complete] = g.CompleteWeight
	}
	if g.SkipWeight != 0 {
		w[hypergraph.Skip] = g.SkipWeight
	}
	return w
}

func embeddingConfig(c *config.EmbeddingConfig) embedding.Config {
	out := embedding.DefaultConfig()
	if c.Dimensions > 0 {
		out.Dimensions = c.Dimensions
	}
	if c.WalkLength > 0 {
		out.WalkLength = c.WalkLength
	}
	if c.WalksPerEntity > 0 {
		out.WalksPerEntity = c.WalksPerEntity
	}
	if c.WindowSize > 0 {
		out.WindowSize = c.WindowSize
	}
	if c.ReturnParam > 0 {
		out.ReturnParam = c.ReturnParam
	}
	if c.InOutParam > 0 {
		out.InOutParam = c.InOutParam
	}
	if len(c.IterationWeights) > 0 {
		out.IterationWeights = append([]float64(nil), c.IterationWeights...)
	}
	if c.MinWalkSamples > 0 {
		out.MinWalkSamples = c.MinWalkSamples
	}
	if c.ColdBlend > 0 {
		out.ColdBlend = c.ColdBlend
	}
	if c.WarmBlend > 0 {
		out.WarmBlend = c.WarmBlend
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	return out
}

func retryableBuildError(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ivf.ErrDimensionMismatch)
}
