// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/retry"
	"github.com/tomtom215/ruvector/internal/rverrors"
	"github.com/tomtom215/ruvector/internal/snapshot"
	"github.com/tomtom215/ruvector/internal/vector"
)

// InitResult describes what Initialize did.
type InitResult struct {
	RestoredFrom string       `json:"restored_from,omitempty"`
	DemoMedia    int          `json:"demo_media,omitempty"`
	Build        *BuildResult `json:"build"`
}

// BuildResult describes a completed rebuild.
type BuildResult struct {
	Generation uint64        `json:"generation"`
	Round      uint64        `json:"round"`
	Embedded   int           `json:"embedded"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Backend    string        `json:"backend"`
	Duration   time.Duration `json:"duration_ns"`
	BuiltAt    time.Time     `json:"built_at"`
}

// Initialize restores the newest valid snapshot when configured, seeds the
// demo catalogue into an empty graph when enabled, and builds the index.
// Calling it again only rebuilds.
func (e *Engine) Initialize(ctx context.Context) (*InitResult, error) {
	res := &InitResult{}
	if !e.initialized.Load() {
		if e.cfg.Snapshot.RestoreOnStartup {
			man, err := e.snapshots.RestoreLatest(ctx)
			switch {
			case err == nil:
				res.RestoredFrom = man.Key
			case errors.Is(err, snapshot.ErrNoSnapshot):
				e.logger.Info().Msg("No snapshot to restore, starting empty")
			case errors.Is(err, snapshot.ErrCorruptSnapshot):
				e.logger.Warn().Err(err).Msg("No usable snapshot, starting empty")
			default:
				return nil, fmt.Errorf("restore latest snapshot: %w", err)
			}
		}
		if res.RestoredFrom == "" && e.cfg.Graph.SeedDemoData && e.graph.Offset() == 0 {
			n, err := seedDemo(e.graph)
			if err != nil {
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
			res.DemoMedia = n
		}
	}

	build, err := e.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	res.Build = build
	e.initialized.Store(true)
	e.logger.Info().
		Str("restored_from", res.RestoredFrom).
		Int("demo_media", res.DemoMedia).
		Uint64("generation", build.Generation).
		Msg("Engine initialized")
	return res, nil
}

// Rebuild embeds every active user and media entity into a new generation,
// rebuilds the similarity backend from the media vectors and retires older
// generations. Queries keep reading the previous generation until the new
// index is published.
func (e *Engine) Rebuild(ctx context.Context) (*BuildResult, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) (*BuildResult, error) {
	start := time.Now()
	next := e.table.CurrentNumber() + 1

	users := e.graph.EntitiesByKind(hypergraph.KindUser)
	media := e.graph.EntitiesByKind(hypergraph.KindMedia)
	ids := make([]string, 0, len(users)+len(media))
	for _, list := range [][]hypergraph.Entity{users, media} {
		for _, ent := range list {
			if ent.Active {
				ids = append(ids, ent.ID)
			}
		}
	}

	computed, err := e.embedder.ComputeEmbeddings(ctx, ids, next)
	if err != nil {
		return nil, fmt.Errorf("compute embeddings: %w", err)
	}
	gen := &embedding.Generation{
		Number:    next,
		Round:     computed.Round,
		Vectors:   computed.Vectors,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.table.Publish(gen); err != nil {
		return nil, fmt.Errorf("publish generation %d: %w", next, err)
	}

	indexed := mediaVectors(media, gen.Vectors)
	err = retry.Do(ctx, e.buildRetry, "index build", func(ctx context.Context) error {
		return e.store.Build(ctx, next, indexed)
	})
	if err != nil {
		// The previous generation stays live so the old index keeps serving.
		return nil, fmt.Errorf("build %s index: %w", e.store.Name(), err)
	}
	dropped := e.table.Discard(next)
	e.paramsDirty.Store(false)
	e.recs.InvalidateCache()

	res := &BuildResult{
		Generation: next,
		Round:      computed.Round,
		Embedded:   len(gen.Vectors),
		Indexed:    len(indexed),
		Skipped:    len(computed.Skipped),
		Backend:    e.store.Name(),
		Duration:   time.Since(start),
		BuiltAt:    gen.CreatedAt,
	}
	e.lastBuild.Store(res)
	e.logger.Info().
		Uint64("generation", next).
		Uint64("round", res.Round).
		Int("embedded", res.Embedded).
		Int("indexed", res.Indexed).
		Int("skipped", res.Skipped).
		Int("retired", dropped).
		Dur("duration", res.Duration).
		Msg("Rebuilt embeddings and index")
	return res, nil
}

func mediaVectors(media []hypergraph.Entity, vectors map[string]vector.Vector) map[string]vector.Vector {
	out := make(map[string]vector.Vector, len(media))
	for _, m := range media {
		if !m.Active {
			continue
		}
		if v, ok := vectors[m.ID]; ok {
			out[m.ID] = v
		}
	}
	return out
}

// indexMedia embeds one media item into a merged generation and inserts it
// into the live index. Before the first build it is a no-op.
func (e *Engine) indexMedia(ctx context.Context, id string) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	cur := e.table.Current()
	if cur == nil {
		return nil
	}
	v, err := e.embedder.Embed(ctx, id, cur.BasisNumber())
	if errors.Is(err, embedding.ErrInsufficientGraphData) {
		return nil
	}
	if err != nil {
		return err
	}

	next := cur.Number + 1
	update := map[string]vector.Vector{id: v}
	if _, err := e.table.Merge(next, cur.Round, update); err != nil {
		return err
	}
	if err := e.store.Upsert(ctx, next, update); err != nil {
		if errors.Is(err, rverrors.ErrIndexNotBuilt) {
			// An empty index has no lists to insert into.
			_, err = e.rebuildLocked(ctx)
			return err
		}
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	e.table.Discard(next)
	return nil
}

// MaintainIndex rebuilds when inserts since the last build exceed the
// rebuild ratio or when fine-tuning published parameters the index has not
// been rebuilt with. It reports whether a rebuild ran.
func (e *Engine) MaintainIndex(ctx context.Context) (bool, error) {
	if !e.initialized.Load() {
		return false, nil
	}
	need := e.paramsDirty.Load()
	if e.index != nil && e.index.NeedsRebuild() {
		need = true
	}
	if !need {
		return false, nil
	}
	if _, err := e.Rebuild(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Compact folds hyperedges older than the configured horizon into
// aggregates. A zero horizon disables it.
func (e *Engine) Compact(_ context.Context) (hypergraph.CompactResult, error) {
	horizon := e.cfg.Graph.CompactAfter
	if horizon <= 0 {
		return hypergraph.CompactResult{}, nil
	}
	res, err := e.graph.Compact(e.graph.Now().Add(-horizon))
	if err != nil {
		return res, err
	}
	if res.Folded > 0 {
		e.logger.Info().
			Int("folded", res.Folded).
			Int("aggregates", res.Aggregates).
			Msg("Compacted hyperedge log")
	}
	return res, nil
}

// LastBuild returns the most recent rebuild, or nil.
func (e *Engine) LastBuild() *BuildResult {
	return e.lastBuild.Load()
}
