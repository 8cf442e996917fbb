// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package embedding

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/ruvector/internal/vector"
)

// Generation is an immutable set of current embeddings.
type Generation struct {
	Number uint64 `json:"number"`
	Round  uint64 `json:"round"`

	// Basis is the generation whose seeds produced the vectors. A full
	// build sets it to Number; merges inherit it so that incremental
	// embeddings stay comparable with the built ones.
	Basis uint64 `json:"basis,omitempty"`

	Vectors   map[string]vector.Vector `json:"vectors"`
	CreatedAt time.Time                `json:"created_at"`
}

// BasisNumber returns the seeding generation, falling back to Number for
// generations written without one.
func (g *Generation) BasisNumber() uint64 {
	if g.Basis != 0 {
		return g.Basis
	}
	return g.Number
}

// Vector returns the embedding for id.
func (g *Generation) Vector(id string) (vector.Vector, bool) {
	v, ok := g.Vectors[id]
	return v, ok
}

// Len returns the number of embedded entities.
func (g *Generation) Len() int {
	return len(g.Vectors)
}

// IDs returns the embedded ids, sorted.
func (g *Generation) IDs() []string {
	out := make([]string, 0, len(g.Vectors))
	for id := range g.Vectors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Table holds the published generations. Reads of the current generation
// are lock-free. Superseded generations stay readable until Discard.
type Table struct {
	current atomic.Pointer[Generation]

	mu   sync.Mutex
	live map[uint64]*Generation
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{live: make(map[uint64]*Generation)}
}

// Current returns the newest published generation, or nil.
func (t *Table) Current() *Generation {
	return t.current.Load()
}

// CurrentNumber returns the newest generation number, 0 when empty.
func (t *Table) CurrentNumber() uint64 {
	if g := t.current.Load(); g != nil {
		return g.Number
	}
	return 0
}

// CurrentBasis returns the seeding generation of the current generation,
// 0 when empty. Incremental embeddings must use it.
func (t *Table) CurrentBasis() uint64 {
	if g := t.current.Load(); g != nil {
		return g.BasisNumber()
	}
	return 0
}

// Publish makes g the current generation. g.Number must exceed the current one.
func (t *Table) Publish(g *Generation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur := t.current.Load(); cur != nil && g.Number <= cur.Number {
		return fmt.Errorf("%w: %d after %d", ErrGenerationOutOfOrder, g.Number, cur.Number)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if g.Basis == 0 {
		g.Basis = g.Number
	}
	t.live[g.Number] = g
	t.current.Store(g)
	return nil
}

// Merge publishes a new generation holding the current vectors overlaid
// with updates. It keeps the current basis. The previous generation is
// left untouched.
func (t *Table) Merge(number, round uint64, updates map[string]vector.Vector) (*Generation, error) {
	cur := t.Current()
	size := len(updates)
	if cur != nil {
		size += cur.Len()
	}
	vectors := make(map[string]vector.Vector, size)
	var basis uint64
	if cur != nil {
		basis = cur.BasisNumber()
		for id, v := range cur.Vectors {
			vectors[id] = v
		}
	}
	for id, v := range updates {
		vectors[id] = v
	}
	g := &Generation{Number: number, Round: round, Basis: basis, Vectors: vectors}
	if err := t.Publish(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Vector returns id's vector from the current generation.
func (t *Table) Vector(id string) (vector.Vector, uint64, bool) {
	g := t.current.Load()
	if g == nil {
		return nil, 0, false
	}
	v, ok := g.Vectors[id]
	return v, g.Number, ok
}

// VectorAt returns id's vector from a specific generation. It fails with
// ErrStaleGenerationRead once that generation has been discarded.
func (t *Table) VectorAt(id string, generation uint64) (vector.Vector, bool, error) {
	g, ok := t.Get(generation)
	if !ok {
		return nil, false, fmt.Errorf("%w: generation %d", ErrStaleGenerationRead, generation)
	}
	v, found := g.Vectors[id]
	return v, found, nil
}

// Get returns a live generation.
func (t *Table) Get(generation uint64) (*Generation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.live[generation]
	return g, ok
}

// Discard drops live generations older than before. The current generation
// is never dropped. It returns how many were removed.
func (t *Table) Discard(before uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.current.Load()
	removed := 0
	for n := range t.live {
		if n < before && (cur == nil || n != cur.Number) {
			delete(t.live, n)
			removed++
		}
	}
	return removed
}

// Live returns the retained generation numbers in ascending order.
func (t *Table) Live() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]uint64, 0, len(t.live))
	for n := range t.live {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset replaces every generation with g. Used by snapshot restore.
func (t *Table) Reset(g *Generation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.live = make(map[uint64]*Generation)
	if g == nil {
		t.current.Store(nil)
		return
	}
	t.live[g.Number] = g
	t.current.Store(g)
}
