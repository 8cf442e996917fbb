// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package cache

import "sort"

// Scored is an id with a similarity or popularity score.
type Scored struct {
	ID    string
	Score float64
}

// less orders a before b when a ranks lower: smaller score first, and on
// equal scores the larger id first so that the smaller id wins ties.
func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

// TopK keeps the k highest-scoring entries seen so far in a bounded
// min-heap. Push is O(log k). It is not safe for concurrent use; each query
// owns its own TopK.
type TopK struct {
	k    int
	heap []Scored
}

// NewTopK creates a TopK bounded to k entries.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, heap: make([]Scored, 0, k)}
}

// Push offers an entry. It is dropped if k entries that all outrank it are
// already held.
func (t *TopK) Push(id string, score float64) {
	if t.k == 0 {
		return
	}
	s := Scored{ID: id, Score: score}
	if len(t.heap) < t.k {
		t.heap = append(t.heap, s)
		t.bubbleUp(len(t.heap) - 1)
		return
	}
	if !less(t.heap[0], s) {
		return
	}
	t.heap[0] = s
	t.bubbleDown(0)
}

// Len returns the number of held entries.
func (t *TopK) Len() int {
	return len(t.heap)
}

// Min returns the lowest-ranked held entry.
func (t *TopK) Min() (Scored, bool) {
	if len(t.heap) == 0 {
		return Scored{}, false
	}
	return t.heap[0], true
}

// Sorted returns the held entries best first, ties broken by ascending id.
func (t *TopK) Sorted() []Scored {
	out := make([]Scored, len(t.heap))
	copy(out, t.heap)
	sort.Slice(out, func(i, j int) bool { return less(out[j], out[i]) })
	return out
}

func (t *TopK) bubbleUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(t.heap[i], t.heap[parent]) {
			return
		}
		t.heap[i], t.heap[parent] = t.heap[parent], t.heap[i]
		i = parent
	}
}

func (t *TopK) bubbleDown(i int) {
	n := len(t.heap)
	for {
		smallest := i
		left, right := 2*i+1, 2*i+2
		if left < n && less(t.heap[left], t.heap[smallest]) {
			smallest = left
		}
		if right < n && less(t.heap[right], t.heap[smallest]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		t.heap[i], t.heap[smallest] = t.heap[smallest], t.heap[i]
		i = smallest
	}
}
