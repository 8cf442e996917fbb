// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/finetune"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/retry"
	"github.com/tomtom215/ruvector/internal/snapshot"
	"github.com/tomtom215/ruvector/internal/vector"
)

var _ snapshot.Source = (*Engine)(nil)

// CaptureSnapshot implements snapshot.Source. Embeddings and the index are
// read before the graph: entities are never removed, so every embedded or
// indexed id is present in the later graph copy.
func (e *Engine) CaptureSnapshot(_ context.Context) (*snapshot.Payload, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	p := &snapshot.Payload{
		Version:   snapshot.PayloadVersion,
		CreatedAt: time.Now().UTC(),
	}
	if gen := e.table.Current(); gen != nil {
		p.Embeddings = gen
		p.Generation = gen.Number
	}
	if e.index != nil && p.Embeddings != nil {
		p.Index = e.index.Snapshot()
	}
	opt := e.coordinator.Optimization()
	p.Optimization = snapshot.Optimization{
		Params:   opt.Params,
		Seed:     opt.Seed,
		Round:    opt.Round,
		LastLoss: opt.LastLoss,
	}
	p.Graph = e.graph.State()
	p.Offset = p.Graph.Offset
	return p, nil
}

// ApplySnapshot implements snapshot.Source. Everything that can fail runs
// before the graph, parameters and embeddings are replaced: the payload is
// checked against this node, the coordinator is restored (it refuses while
// a round runs) and the similarity backend is rebuilt. A backend failure
// puts the coordinator back, so the engine is either fully restored or
// left as it was.
func (e *Engine) ApplySnapshot(ctx context.Context, p *snapshot.Payload) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	params := p.Optimization.Params
	if want := e.embedder.Config().Dimensions; params.Dim != want {
		return fmt.Errorf("%w: snapshot dimension %d, engine %d", embedding.ErrDimensionMismatch, params.Dim, want)
	}
	if err := hypergraph.ValidateState(p.Graph); err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	restoreIndex := p.Embeddings != nil && e.index != nil && p.Index != nil
	if restoreIndex {
		if err := p.Index.Validate(); err != nil {
			return fmt.Errorf("restore index: %w", err)
		}
	}

	prev := e.coordinator.Optimization()
	if err := e.coordinator.Restore(finetune.OptimizationState{
		Params:   params,
		Seed:     p.Optimization.Seed,
		Round:    p.Optimization.Round,
		LastLoss: p.Optimization.LastLoss,
	}); err != nil {
		return err
	}

	if p.Embeddings != nil && !restoreIndex {
		indexed := mediaVectors(mediaOf(p.Graph.Entities), p.Embeddings.Vectors)
		err := retry.Do(ctx, e.buildRetry, "index restore", func(ctx context.Context) error {
			return e.store.Build(ctx, p.Embeddings.Number, indexed)
		})
		if err != nil {
			if rerr := e.coordinator.Restore(prev); rerr != nil {
				e.logger.Error().Err(rerr).Msg("Failed to roll back optimization state")
			}
			return fmt.Errorf("rebuild %s index: %w", e.store.Name(), err)
		}
	}

	// Validated above; nothing below fails on a consistent payload.
	if _, err := e.graph.LoadState(p.Graph); err != nil {
		return fmt.Errorf("load graph: %w", err)
	}
	restored := params.Clone()
	restored.Round = p.Optimization.Round
	if err := e.embedder.SetParams(restored); err != nil {
		return err
	}
	e.table.Reset(p.Embeddings)
	if restoreIndex {
		if err := e.index.Restore(p.Index); err != nil {
			return fmt.Errorf("restore index: %w", err)
		}
	}

	e.paramsDirty.Store(false)
	e.recs.InvalidateCache()
	e.logger.Info().
		Uint64("generation", p.Generation).
		Uint64("offset", p.Offset).
		Uint64("round", p.Optimization.Round).
		Msg("Applied engine state")
	return nil
}

func mediaOf(entities []hypergraph.Entity) []hypergraph.Entity {
	out := make([]hypergraph.Entity, 0, len(entities))
	for _, ent := range entities {
		if ent.Kind == hypergraph.KindMedia {
			out = append(out, ent)
		}
	}
	return out
}

// Snapshot writes a snapshot to the blob store.
func (e *Engine) Snapshot(ctx context.Context) (*snapshot.Manifest, error) {
	return e.snapshots.Snapshot(ctx)
}

// Export returns the full engine state as JSON.
func (e *Engine) Export(ctx context.Context) ([]byte, error) {
	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}
	return e.snapshots.Export(ctx)
}

// Import replaces the engine state with an export or snapshot blob. The
// engine counts as initialized afterwards.
func (e *Engine) Import(ctx context.Context, data []byte) (*snapshot.Payload, error) {
	p, err := e.snapshots.Import(ctx, data)
	if err != nil {
		return nil, err
	}
	e.initialized.Store(true)
	return p, nil
}

// Stats is a point-in-time summary of the engine.
type Stats struct {
	Initialized  bool                       `json:"initialized"`
	Graph        hypergraph.Stats           `json:"graph"`
	Embeddings   EmbeddingStats             `json:"embeddings"`
	Index        IndexStats                 `json:"index"`
	Optimization OptimizationStats          `json:"optimization"`
	Jobs         map[finetune.JobStatus]int `json:"jobs"`
	LastBuild    *BuildResult               `json:"last_build,omitempty"`
}

// EmbeddingStats describes the published embedding generations.
type EmbeddingStats struct {
	Generation uint64   `json:"generation"`
	Round      uint64   `json:"round"`
	Vectors    int      `json:"vectors"`
	Live       []uint64 `json:"live_generations"`
	Dimensions int      `json:"dimensions"`
}

// IndexStats describes the similarity backend.
type IndexStats struct {
	Backend      string `json:"backend"`
	Built        bool   `json:"built"`
	Generation   uint64 `json:"generation"`
	Size         int    `json:"size"`
	Lists        int    `json:"lists"`
	ListSizes    []int  `json:"list_sizes,omitempty"`
	Inserts      int    `json:"inserts_since_build"`
	NeedsRebuild bool   `json:"needs_rebuild"`
}

// OptimizationStats describes the fine-tuning coordinator.
type OptimizationStats struct {
	State    string  `json:"state"`
	Round    uint64  `json:"round"`
	LastLoss float64 `json:"last_loss"`
	Workers  int     `json:"local_workers"`
}

// Stats summarizes the engine.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		Initialized: e.initialized.Load(),
		Graph:       e.graph.Stats(),
		LastBuild:   e.lastBuild.Load(),
	}

	counts := make(map[string]int, len(st.Graph.EntitiesByKind))
	for kind, n := range st.Graph.EntitiesByKind {
		counts[string(kind)] = n
	}
	metrics.SetEntityCounts(counts)

	st.Embeddings = EmbeddingStats{
		Live:       e.table.Live(),
		Dimensions: e.embedder.Config().Dimensions,
	}
	if gen := e.table.Current(); gen != nil {
		st.Embeddings.Generation = gen.Number
		st.Embeddings.Round = gen.Round
		st.Embeddings.Vectors = gen.Len()
	}

	st.Index = IndexStats{Backend: e.store.Name()}
	if e.index != nil {
		if snap := e.index.Snapshot(); snap != nil {
			st.Index.Built = true
			st.Index.Generation = snap.Generation
			st.Index.Size = snap.Size()
			st.Index.Lists = len(snap.Lists)
			st.Index.ListSizes = snap.ListSizes()
			st.Index.Inserts = snap.Inserts
		}
		st.Index.NeedsRebuild = e.index.NeedsRebuild()
	} else if b := st.LastBuild; b != nil {
		st.Index.Built = true
		st.Index.Generation = b.Generation
		st.Index.Size = b.Indexed
	}

	opt := e.coordinator.Optimization()
	st.Optimization = OptimizationStats{
		State:    e.coordinator.State().String(),
		Round:    opt.Round,
		LastLoss: opt.LastLoss,
		Workers:  len(e.workers),
	}

	jobs, err := e.jobs.Counts(ctx)
	if err != nil {
		return nil, err
	}
	st.Jobs = jobs
	return st, nil
}

// ListSnapshots lists stored snapshots, newest first.
func (e *Engine) ListSnapshots(ctx context.Context) ([]snapshot.Manifest, error) {
	return e.snapshots.List(ctx)
}

// Vector returns the current embedding of id.
func (e *Engine) Vector(id string) (vector.Vector, uint64, bool) {
	return e.table.Vector(id)
}
