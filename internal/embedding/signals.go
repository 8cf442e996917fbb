// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package embedding

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/ruvector/internal/hypergraph"
)

var sqrt3 = math.Sqrt(3)

// neighborhood is the positive-weight clique expansion of one entity.
type neighborhood struct {
	ids     []string // sorted
	weights []float64
	total   float64
	set     map[string]struct{}

	// incident is the number of hyperedges touching the entity, of any weight.
	incident int
}

// batch memoizes neighbourhoods, base vectors and propagation levels for
// one ComputeEmbeddings call. It is shared by the batch workers.
type batch struct {
	engine     *Engine
	generation uint64

	group singleflight.Group

	mu     sync.RWMutex
	hoods  map[string]*neighborhood
	bases  map[string][]float64
	levels map[string][]float64
}

func newBatch(e *Engine, generation uint64) *batch {
	return &batch{
		engine:     e,
		generation: generation,
		hoods:      make(map[string]*neighborhood),
		bases:      make(map[string][]float64),
		levels:     make(map[string][]float64),
	}
}

// entitySeed is FNV-64a over id ‖ generation.
func entitySeed(id string, generation uint64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], generation)
	_, _ = h.Write(buf[:])
	return int64(h.Sum64()) //nolint:gosec // seed bits, overflow is intended
}

func (b *batch) neighborhood(id string) *neighborhood {
	b.mu.RLock()
	n, ok := b.hoods[id]
	b.mu.RUnlock()
	if ok {
		return n
	}

	v, _, _ := b.group.Do("n:"+id, func() (interface{}, error) {
		return b.loadNeighborhood(id), nil
	})
	n = v.(*neighborhood)

	b.mu.Lock()
	b.hoods[id] = n
	b.mu.Unlock()
	return n
}

func (b *batch) loadNeighborhood(id string) *neighborhood {
	n := &neighborhood{set: make(map[string]struct{})}
	edges, err := b.engine.graph.AdjacencyOf(id)
	if err != nil {
		return n
	}
	n.incident = len(edges)

	sums := make(map[string]float64)
	for _, e := range edges {
		for _, m := range e.EntityIDs {
			if m != id {
				sums[m] += e.Weight
			}
		}
	}
	for m, w := range sums {
		// Walk transitions and propagation ignore non-positive edges.
		if w > 0 {
			n.ids = append(n.ids, m)
		}
	}
	sort.Strings(n.ids)
	n.weights = make([]float64, len(n.ids))
	for i, m := range n.ids {
		n.weights[i] = sums[m]
		n.total += sums[m]
		n.set[m] = struct{}{}
	}
	return n
}

// base returns the seeded sparse random projection of id plus its hashed
// features. Entries are ±√3 with density 1/3.
func (b *batch) base(id string) []float64 {
	b.mu.RLock()
	v, ok := b.bases[id]
	b.mu.RUnlock()
	if ok {
		return v
	}

	dim := b.engine.cfg.Dimensions
	v = make([]float64, dim)
	rng := rand.New(rand.NewSource(entitySeed(id, b.generation))) //nolint:gosec // deterministic projection
	for i := range v {
		r := rng.Float64()
		switch {
		case r < 1.0/6:
			v[i] = sqrt3
		case r < 2.0/6:
			v[i] = -sqrt3
		}
	}
	if ent, ok := b.engine.graph.Entity(id); ok {
		feat := featureVector(ent.Features, dim)
		for i := range v {
			v[i] += feat[i]
		}
	}

	b.mu.Lock()
	b.bases[id] = v
	b.mu.Unlock()
	return v
}

// featureVector hashes feature tokens into dim buckets with a sign bit and
// scales the result to the expected norm of the random part, √dim.
func featureVector(f hypergraph.Features, dim int) []float64 {
	out := make([]float64, dim)
	if len(f) == 0 {
		return out
	}
	for _, key := range f.Keys() {
		for _, tok := range f[key].Tokens(key) {
			h := fnv.New64a()
			_, _ = h.Write([]byte(tok))
			sum := h.Sum64()
			idx := int(sum % uint64(dim))
			if sum>>63 == 1 {
				out[idx]--
			} else {
				out[idx]++
			}
		}
	}
	var norm float64
	for _, x := range out {
		norm += x * x
	}
	if norm == 0 {
		return out
	}
	scale := math.Sqrt(float64(dim)) / math.Sqrt(norm)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// walkSignal runs biased walks from id and sums the base vectors of every
// co-occurring entity with a linear window weight. It also returns the
// number of distinct co-occurring entities.
func (b *batch) walkSignal(id string) ([]float64, int) {
	cfg := b.engine.cfg
	rng := rand.New(rand.NewSource(entitySeed(id, b.generation))) //nolint:gosec // deterministic walks
	counts := make(map[string]float64)

	walk := make([]string, 0, cfg.WalkLength)
	for w := 0; w < cfg.WalksPerEntity; w++ {
		walk = b.walk(walk[:0], id, rng)
		for i, node := range walk {
			if node != id {
				continue
			}
			lo, hi := i-cfg.WindowSize, i+cfg.WindowSize
			if lo < 0 {
				lo = 0
			}
			if hi > len(walk)-1 {
				hi = len(walk) - 1
			}
			for j := lo; j <= hi; j++ {
				if j == i || walk[j] == id {
					continue
				}
				dist := j - i
				if dist < 0 {
					dist = -dist
				}
				counts[walk[j]] += float64(cfg.WindowSize-dist+1) / float64(cfg.WindowSize)
			}
		}
	}

	ctxIDs := make([]string, 0, len(counts))
	for c := range counts {
		ctxIDs = append(ctxIDs, c)
	}
	sort.Strings(ctxIDs)

	acc := make([]float64, cfg.Dimensions)
	for _, c := range ctxIDs {
		base := b.base(c)
		w := counts[c]
		for i := range acc {
			acc[i] += w * base[i]
		}
	}
	return acc, len(ctxIDs)
}

// walk appends one node2vec walk starting at start to buf.
func (b *batch) walk(buf []string, start string, rng *rand.Rand) []string {
	cfg := b.engine.cfg
	buf = append(buf, start)
	prev, cur := "", start
	probs := make([]float64, 0, 16)

	for step := 1; step < cfg.WalkLength; step++ {
		hood := b.neighborhood(cur)
		if len(hood.ids) == 0 {
			break
		}
		var prevSet map[string]struct{}
		if prev != "" {
			prevSet = b.neighborhood(prev).set
		}

		probs = probs[:0]
		var total float64
		for i, x := range hood.ids {
			p := hood.weights[i]
			if prev != "" {
				switch _, shared := prevSet[x]; {
				case x == prev:
					p /= cfg.ReturnParam
				case shared:
				default:
					p /= cfg.InOutParam
				}
			}
			probs = append(probs, p)
			total += p
		}

		r := rng.Float64() * total
		next := hood.ids[len(hood.ids)-1]
		for i, p := range probs {
			r -= p
			if r < 0 {
				next = hood.ids[i]
				break
			}
		}
		buf = append(buf, next)
		prev, cur = cur, next
	}
	return buf
}

// level returns the normalized FastRP propagation of id at depth k:
// level 0 is the base vector and level k is the weight-normalized mean of
// the neighbours' level k-1.
func (b *batch) level(id string, k int) []float64 {
	key := id + "\x00" + strconv.Itoa(k)
	b.mu.RLock()
	v, ok := b.levels[key]
	b.mu.RUnlock()
	if ok {
		return v
	}

	res, _, _ := b.group.Do("l:"+key, func() (interface{}, error) {
		dim := b.engine.cfg.Dimensions
		out := make([]float64, dim)
		if k == 0 {
			copy(out, b.base(id))
		} else {
			hood := b.neighborhood(id)
			for i, n := range hood.ids {
				prev := b.level(n, k-1)
				w := hood.weights[i] / hood.total
				for d := range out {
					out[d] += w * prev[d]
				}
			}
		}
		normalize64(out)
		return out, nil
	})
	v = res.([]float64)

	b.mu.Lock()
	b.levels[key] = v
	b.mu.Unlock()
	return v
}

// fastRPSignal combines the propagation levels by IterationWeights.
func (b *batch) fastRPSignal(id string) []float64 {
	cfg := b.engine.cfg
	acc := make([]float64, cfg.Dimensions)
	for k, w := range cfg.IterationWeights {
		if w == 0 {
			continue
		}
		lv := b.level(id, k)
		for i := range acc {
			acc[i] += w * lv[i]
		}
	}
	return acc
}

func normalize64(v []float64) bool {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return false
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] *= inv
	}
	return true
}
