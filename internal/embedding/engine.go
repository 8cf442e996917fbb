// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package embedding turns hypergraph structure into fixed-length vectors.
//
// Each vector blends two CPU-only signals: node2vec-style biased random
// walks summarized as skip-gram co-occurrence, and a FastRP sparse random
// projection of the weighted neighbourhood. The blend favours FastRP for
// cold entities and walks for warm ones. A tunable d×d projection (Params)
// is applied last and the result is L2-normalized.
//
// All randomness for an entity is seeded from FNV-64a(id ‖ generation), so
// a generation is reproducible from the same graph.
package embedding

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/vector"
)

// Graph is the read side of the hypergraph the engine needs.
type Graph interface {
	Entity(id string) (hypergraph.Entity, bool)
	AdjacencyOf(id string) ([]*hypergraph.Hyperedge, error)
}

// Regime records which blend an entity received.
type Regime string

const (
	RegimeCold Regime = "cold"
	RegimeWarm Regime = "warm"
)

// Result is the outcome of a batch.
type Result struct {
	Generation uint64
	Round      uint64
	Vectors    map[string]vector.Vector
	Regimes    map[string]Regime

	// Skipped holds entities that could not be embedded and why.
	Skipped map[string]error
}

// Engine computes embeddings. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	graph  Graph
	params atomic.Pointer[Params]
	logger zerolog.Logger
}

// NewEngine creates an engine with identity parameters.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, graph Graph, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	e := &Engine{
		cfg:    cfg,
		graph:  graph,
		logger: logger.With().Str("component", "embedding").Logger(),
	}
	e.params.Store(IdentityParams(cfg.Dimensions))
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Params returns the current projection parameters. Callers must not modify them.
func (e *Engine) Params() *Params {
	return e.params.Load()
}

// SetParams adopts new projection parameters for subsequent batches.
func (e *Engine) SetParams(p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Dim != e.cfg.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, p.Dim, e.cfg.Dimensions)
	}
	e.params.Store(p.Clone())
	e.logger.Info().Uint64("round", p.Round).Msg("Adopted projection parameters")
	return nil
}

// ComputeEmbeddings embeds ids for generation using the current parameters.
// Entities that cannot be embedded are reported in Result.Skipped; the
// error is non-nil only when ctx is cancelled.
func (e *Engine) ComputeEmbeddings(ctx context.Context, ids []string, generation uint64) (*Result, error) {
	start := time.Now()
	params := e.Params()
	raws, regimes, skipped, err := e.computeRaw(ctx, ids, generation)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Generation: generation,
		Round:      params.Round,
		Vectors:    make(map[string]vector.Vector, len(raws)),
		Regimes:    regimes,
		Skipped:    skipped,
	}
	cold, warm := 0, 0
	for id, raw := range raws {
		res.Vectors[id] = params.Project(raw)
		if regimes[id] == RegimeCold {
			cold++
		} else {
			warm++
		}
	}

	metrics.RecordEmbeddingBatch(time.Since(start), cold, warm, len(skipped), generation)
	e.logger.Debug().
		Uint64("generation", generation).
		Int("embedded", len(res.Vectors)).
		Int("cold", cold).
		Int("skipped", len(skipped)).
		Dur("duration", time.Since(start)).
		Msg("Computed embedding batch")
	return res, nil
}

// ComputeRaw returns the blended pre-projection vectors for ids. Fine-tuning
// uses it to evaluate perturbed parameters without recomputing walks.
func (e *Engine) ComputeRaw(ctx context.Context, ids []string, generation uint64) (map[string][]float64, error) {
	raws, _, _, err := e.computeRaw(ctx, ids, generation)
	return raws, err
}

// Embed computes a single vector. It returns ErrInsufficientGraphData for
// an entity with no hyperedges and no features.
func (e *Engine) Embed(ctx context.Context, id string, generation uint64) (vector.Vector, error) {
	raws, _, skipped, err := e.computeRaw(ctx, []string{id}, generation)
	if err != nil {
		return nil, err
	}
	if reason, ok := skipped[id]; ok {
		return nil, reason
	}
	return e.Params().Project(raws[id]), nil
}

func (e *Engine) computeRaw(ctx context.Context, ids []string, generation uint64) (map[string][]float64, map[string]Regime, map[string]error, error) {
	b := newBatch(e, generation)
	raws := make(map[string][]float64, len(ids))
	regimes := make(map[string]Regime, len(ids))
	skipped := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, id := range sortedIDs(ids) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, regime, err := b.blend(id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped[id] = err
				return nil
			}
			raws[id] = raw
			regimes[id] = regime
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	return raws, regimes, skipped, nil
}

// blend computes the pre-projection vector for one entity.
func (b *batch) blend(id string) ([]float64, Regime, error) {
	cfg := b.engine.cfg
	ent, ok := b.engine.graph.Entity(id)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}

	hood := b.neighborhood(id)
	if hood.incident == 0 && len(ent.Features) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrInsufficientGraphData, id)
	}

	walkVec, samples := b.walkSignal(id)
	fast := b.fastRPSignal(id)

	regime, blend := RegimeWarm, cfg.WarmBlend
	if samples < cfg.MinWalkSamples {
		regime, blend = RegimeCold, cfg.ColdBlend
	}

	hasWalk := normalize64(walkVec)
	hasFast := normalize64(fast)
	raw := make([]float64, cfg.Dimensions)
	switch {
	case hasWalk && hasFast:
		for i := range raw {
			raw[i] = blend*walkVec[i] + (1-blend)*fast[i]
		}
	case hasWalk:
		copy(raw, walkVec)
	case hasFast:
		copy(raw, fast)
	default:
		// Unconnected: the base vector carries the hashed features.
		copy(raw, b.base(id))
		regime = RegimeCold
	}
	if !normalize64(raw) {
		return nil, "", fmt.Errorf("%w: %s", ErrInsufficientGraphData, id)
	}
	return raw, regime, nil
}

func sortedIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
