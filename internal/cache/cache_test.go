// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUCache_Eviction(t *testing.T) {
	t.Parallel()

	c := NewLRUCache[string, int](3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// 'a' becomes most recently used, so 'b' is evicted next.
	c.Get("a")
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %q to be present", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	c := NewLRUCache[string, string](10, time.Second)
	c.now = func() time.Time { return now }

	c.Add("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}

	c.Add("x", "1")
	c.Add("y", "2")
	now = now.Add(2 * time.Second)
	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
}

func TestLRUCache_IsDuplicate(t *testing.T) {
	t.Parallel()

	c := NewLRUCache[string, struct{}](100, time.Minute)
	if c.IsDuplicate("round-1/worker-a") {
		t.Error("first sighting should not be a duplicate")
	}
	if !c.IsDuplicate("round-1/worker-a") {
		t.Error("second sighting should be a duplicate")
	}
	if c.IsDuplicate("round-1/worker-b") {
		t.Error("different key should not be a duplicate")
	}

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 2 || size != 2 {
		t.Errorf("Stats() = %d/%d/%d, want 1/2/2", hits, misses, size)
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewLRUCache[string, int](50, time.Minute)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%20)
				c.Add(key, i)
				c.Get(key)
				c.IsDuplicate(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}

func TestTopK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		k     int
		input []Scored
		want  []string
	}{
		{
			name:  "keeps highest",
			k:     2,
			input: []Scored{{"a", 0.1}, {"b", 0.9}, {"c", 0.5}, {"d", 0.7}},
			want:  []string{"b", "d"},
		},
		{
			name:  "ties broken by id",
			k:     3,
			input: []Scored{{"z", 1}, {"m", 1}, {"a", 1}, {"q", 1}},
			want:  []string{"a", "m", "q"},
		},
		{
			name:  "fewer than k",
			k:     5,
			input: []Scored{{"x", -1}, {"y", 2}},
			want:  []string{"y", "x"},
		},
		{
			name:  "zero k",
			k:     0,
			input: []Scored{{"x", 1}},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			top := NewTopK(tt.k)
			for _, s := range tt.input {
				top.Push(s.ID, s.Score)
			}
			got := top.Sorted()
			if len(got) != len(tt.want) {
				t.Fatalf("Sorted() len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("Sorted()[%d] = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}
