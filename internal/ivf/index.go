// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package ivf implements an inverted-file approximate nearest-neighbour
// index over L2-normalized vectors.
//
// A build clusters the vectors into k lists with seeded k-means++ and
// spherical Lloyd iterations. Queries rank centroids by dot product, probe
// the nearest lists and scan only their members. Every mutation publishes
// a new immutable Snapshot through an atomic pointer, so queries never
// block on builds or inserts. Centroids only change on a full rebuild.
package ivf

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/vector"
)

// Config controls clustering and rebuild triggers.
type Config struct {
	NumLists      int
	ProbedLists   int
	MaxIterations int

	// RebuildRatio is the inserts-since-build to built-size ratio at which
	// NeedsRebuild reports true.
	RebuildRatio float64

	Workers int
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() Config {
	return Config{
		NumLists:      16,
		ProbedLists:   4,
		MaxIterations: 25,
		RebuildRatio:  0.2,
		Workers:       runtime.GOMAXPROCS(0),
	}
}

// Entry is one indexed vector.
type Entry struct {
	ID     string        `json:"id"`
	Vector vector.Vector `json:"vector"`
}

// Snapshot is an immutable index state. It is safe for concurrent reads.
type Snapshot struct {
	Generation uint64          `json:"generation"`
	Dim        int             `json:"dim"`
	Centroids  []vector.Vector `json:"centroids"`
	Lists      [][]Entry       `json:"lists"`
	BuiltSize  int             `json:"built_size"`
	Inserts    int             `json:"inserts"`
	Seed       int64           `json:"seed"`
	BuiltAt    time.Time       `json:"built_at"`

	assign map[string]int
}

// Size returns the number of indexed entries.
func (s *Snapshot) Size() int {
	return len(s.assign)
}

// ListSizes returns the member count of each list.
func (s *Snapshot) ListSizes() []int {
	out := make([]int, len(s.Lists))
	for i, l := range s.Lists {
		out[i] = len(l)
	}
	return out
}

// ListOf returns the list holding id.
func (s *Snapshot) ListOf(id string) (int, bool) {
	l, ok := s.assign[id]
	return l, ok
}

// Vector returns the cached vector for id.
func (s *Snapshot) Vector(id string) (vector.Vector, bool) {
	l, ok := s.assign[id]
	if !ok {
		return nil, false
	}
	for _, e := range s.Lists[l] {
		if e.ID == id {
			return e.Vector, true
		}
	}
	return nil, false
}

// Query returns up to topN entries by cosine similarity, scanning the
// probed nearest lists. Ties are broken by ascending id.
func (s *Snapshot) Query(q vector.Vector, topN, probed int) []cache.Scored {
	if topN <= 0 || len(s.Centroids) == 0 {
		return []cache.Scored{}
	}
	if probed < 1 {
		probed = 1
	}
	top := cache.NewTopK(topN)
	for _, l := range s.probeOrder(q, probed) {
		for _, e := range s.Lists[l] {
			top.Push(e.ID, vector.Dot(q, e.Vector))
		}
	}
	return top.Sorted()
}

// Exact scans every entry. It is the recall baseline for Query.
func (s *Snapshot) Exact(q vector.Vector, topN int) []cache.Scored {
	top := cache.NewTopK(topN)
	for _, list := range s.Lists {
		for _, e := range list {
			top.Push(e.ID, vector.Dot(q, e.Vector))
		}
	}
	return top.Sorted()
}

// probeOrder returns the probed nearest lists, best first, lowest index on ties.
func (s *Snapshot) probeOrder(q vector.Vector, probed int) []int {
	type cand struct {
		list  int
		score float64
	}
	cands := make([]cand, len(s.Centroids))
	for i, c := range s.Centroids {
		cands[i] = cand{i, vector.Dot(q, c)}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if probed > len(cands) {
		probed = len(cands)
	}
	out := make([]int, probed)
	for i := range out {
		out[i] = cands[i].list
	}
	return out
}

// Index owns the published snapshot. Writers are serialized; readers load
// the snapshot pointer without locking.
type Index struct {
	cfg    Config
	snap   atomic.Pointer[Snapshot]
	mu     sync.Mutex
	logger zerolog.Logger
}

// New creates an unbuilt index.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) (*Index, error) {
	if cfg.NumLists < 1 {
		return nil, fmt.Errorf("num lists must be positive, got %d", cfg.NumLists)
	}
	if cfg.ProbedLists < 1 || cfg.ProbedLists > cfg.NumLists {
		return nil, fmt.Errorf("probed lists must be within [1, %d], got %d", cfg.NumLists, cfg.ProbedLists)
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Index{cfg: cfg, logger: logger.With().Str("component", "ivf").Logger()}, nil
}

// Config returns the index configuration.
func (ix *Index) Config() Config {
	return ix.cfg
}

// Snapshot returns the current snapshot, or nil before the first build.
func (ix *Index) Snapshot() *Snapshot {
	return ix.snap.Load()
}

// Built reports whether a snapshot has been published.
func (ix *Index) Built() bool {
	return ix.snap.Load() != nil
}

// Build clusters vectors and publishes a fresh snapshot. Queries keep
// reading the previous snapshot until it is published. Vectors must be
// L2-normalized and share one dimension.
func (ix *Index) Build(ctx context.Context, generation uint64, vectors map[string]vector.Vector, seed int64) (*Snapshot, error) {
	start := time.Now()

	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	dim := 0
	points := make([]vector.Vector, len(ids))
	for i, id := range ids {
		v := vectors[id]
		if i == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, id, len(v), dim)
		}
		points[i] = v
	}

	tr, err := train(ctx, points, ix.cfg.NumLists, ix.cfg.MaxIterations, ix.cfg.Workers, seed)
	if err != nil {
		return nil, fmt.Errorf("train centroids: %w", err)
	}

	snap := &Snapshot{
		Generation: generation,
		Dim:        dim,
		Centroids:  tr.centroids,
		Lists:      make([][]Entry, len(tr.centroids)),
		BuiltSize:  len(ids),
		Seed:       seed,
		BuiltAt:    time.Now().UTC(),
		assign:     make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		l := tr.assignment[i]
		snap.Lists[l] = append(snap.Lists[l], Entry{ID: id, Vector: points[i]})
		snap.assign[id] = l
	}

	ix.mu.Lock()
	ix.snap.Store(snap)
	ix.mu.Unlock()

	metrics.RecordIndexBuild(time.Since(start), snap.Size(), len(snap.Lists))
	ix.logger.Info().
		Uint64("generation", generation).
		Int("size", snap.Size()).
		Int("lists", len(snap.Lists)).
		Int("iterations", tr.iterations).
		Dur("duration", time.Since(start)).
		Msg("Built similarity index")
	return snap, nil
}

// Query searches the current snapshot. It returns the hits and the
// generation they were read from.
func (ix *Index) Query(q vector.Vector, topN, probed int) ([]cache.Scored, uint64, error) {
	start := time.Now()
	snap := ix.snap.Load()
	if snap == nil {
		return nil, 0, ErrIndexNotBuilt
	}
	if snap.Dim != 0 && len(q) != snap.Dim {
		return nil, 0, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(q), snap.Dim)
	}
	if probed <= 0 {
		probed = ix.cfg.ProbedLists
	}
	hits := snap.Query(q, topN, probed)
	metrics.RecordIndexQuery("ivf", time.Since(start))
	return hits, snap.Generation, nil
}

// Exact runs a brute-force search over the current snapshot.
func (ix *Index) Exact(q vector.Vector, topN int) ([]cache.Scored, error) {
	snap := ix.snap.Load()
	if snap == nil {
		return nil, ErrIndexNotBuilt
	}
	return snap.Exact(q, topN), nil
}

// Insert adds or moves one entry. See InsertBatch.
func (ix *Index) Insert(id string, v vector.Vector, generation uint64) error {
	return ix.InsertBatch(map[string]vector.Vector{id: v}, generation)
}

// InsertBatch assigns each vector to its nearest existing centroid and
// publishes a snapshot in which only the touched lists are copied. An id
// already indexed is moved, so it stays in exactly one list.
func (ix *Index) InsertBatch(vectors map[string]vector.Vector, generation uint64) error {
	if len(vectors) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load()
	if cur == nil {
		return ErrIndexNotBuilt
	}
	if len(cur.Centroids) == 0 {
		// Nothing to assign to; only a rebuild can create lists.
		return fmt.Errorf("%w: index has no lists", ErrIndexNotBuilt)
	}

	next := &Snapshot{
		Generation: cur.Generation,
		Dim:        cur.Dim,
		Centroids:  cur.Centroids,
		Lists:      make([][]Entry, len(cur.Lists)),
		BuiltSize:  cur.BuiltSize,
		Inserts:    cur.Inserts,
		Seed:       cur.Seed,
		BuiltAt:    cur.BuiltAt,
		assign:     make(map[string]int, len(cur.assign)+len(vectors)),
	}
	copy(next.Lists, cur.Lists)
	for id, l := range cur.assign {
		next.assign[id] = l
	}
	if generation > next.Generation {
		next.Generation = generation
	}

	copied := make(map[int]bool)
	own := func(l int) {
		if !copied[l] {
			list := make([]Entry, len(next.Lists[l]), len(next.Lists[l])+1)
			copy(list, next.Lists[l])
			next.Lists[l] = list
			copied[l] = true
		}
	}

	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := vectors[id]
		if len(v) != next.Dim {
			return fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, id, len(v), next.Dim)
		}
		if old, ok := next.assign[id]; ok {
			own(old)
			next.Lists[old] = removeEntry(next.Lists[old], id)
		}
		l := nearest(v, next.Centroids)
		own(l)
		next.Lists[l] = append(next.Lists[l], Entry{ID: id, Vector: v})
		next.assign[id] = l
		next.Inserts++
	}

	ix.snap.Store(next)
	metrics.IndexInsertsTotal.Add(float64(len(ids)))
	metrics.IndexSize.Set(float64(next.Size()))
	return nil
}

// Remove drops ids from the index, copying only the affected lists.
func (ix *Index) Remove(ids ...string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load()
	if cur == nil {
		return ErrIndexNotBuilt
	}
	next := *cur
	next.Lists = make([][]Entry, len(cur.Lists))
	copy(next.Lists, cur.Lists)
	next.assign = make(map[string]int, len(cur.assign))
	for id, l := range cur.assign {
		next.assign[id] = l
	}
	removed := 0
	for _, id := range ids {
		l, ok := next.assign[id]
		if !ok {
			continue
		}
		list := make([]Entry, len(next.Lists[l]))
		copy(list, next.Lists[l])
		next.Lists[l] = removeEntry(list, id)
		delete(next.assign, id)
		removed++
	}
	if removed > 0 {
		ix.snap.Store(&next)
		metrics.IndexSize.Set(float64(next.Size()))
	}
	return nil
}

// NeedsRebuild reports whether inserts since the last build exceed
// RebuildRatio of the built size.
func (ix *Index) NeedsRebuild() bool {
	snap := ix.snap.Load()
	if snap == nil {
		return true
	}
	if snap.BuiltSize == 0 {
		return snap.Inserts > 0
	}
	return float64(snap.Inserts)/float64(snap.BuiltSize) > ix.cfg.RebuildRatio
}

// Restore publishes a snapshot decoded from persistence after validating it.
func (ix *Index) Restore(s *Snapshot) error {
	if err := s.rebuildAssign(); err != nil {
		return err
	}
	ix.mu.Lock()
	ix.snap.Store(s)
	ix.mu.Unlock()
	metrics.IndexSize.Set(float64(s.Size()))
	metrics.IndexLists.Set(float64(len(s.Lists)))
	return nil
}

// Validate checks the structural invariants of a decoded snapshot.
func (s *Snapshot) Validate() error {
	cp := *s
	return cp.rebuildAssign()
}

func (s *Snapshot) rebuildAssign() error {
	if len(s.Lists) != len(s.Centroids) {
		return fmt.Errorf("%w: %d lists for %d centroids", ErrInvalidSnapshot, len(s.Lists), len(s.Centroids))
	}
	for i, c := range s.Centroids {
		if len(c) != s.Dim {
			return fmt.Errorf("%w: centroid %d has dimension %d", ErrInvalidSnapshot, i, len(c))
		}
	}
	assign := make(map[string]int)
	for l, list := range s.Lists {
		for _, e := range list {
			if _, dup := assign[e.ID]; dup {
				return fmt.Errorf("%w: %s is in more than one list", ErrInvalidSnapshot, e.ID)
			}
			if len(e.Vector) != s.Dim {
				return fmt.Errorf("%w: %s has dimension %d", ErrInvalidSnapshot, e.ID, len(e.Vector))
			}
			for _, x := range e.Vector {
				if math.IsNaN(float64(x)) {
					return fmt.Errorf("%w: %s has NaN", ErrInvalidSnapshot, e.ID)
				}
			}
			assign[e.ID] = l
		}
	}
	s.assign = assign
	return nil
}

func removeEntry(list []Entry, id string) []Entry {
	out := list[:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}
