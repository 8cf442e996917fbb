// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package embedding

import (
	"errors"
	"testing"

	"github.com/tomtom215/ruvector/internal/vector"
)

func TestTable(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	if tbl.Current() != nil {
		t.Fatal("new table should be empty")
	}

	g1 := &Generation{Number: 1, Vectors: map[string]vector.Vector{"a": {1, 0}}}
	if err := tbl.Publish(g1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Publish(&Generation{Number: 1}); !errors.Is(err, ErrGenerationOutOfOrder) {
		t.Errorf("expected ErrGenerationOutOfOrder, got %v", err)
	}

	g2, err := tbl.Merge(2, 1, map[string]vector.Vector{"b": {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	if g2.Len() != 2 || g1.Len() != 1 {
		t.Errorf("Merge() sizes: new %d old %d", g2.Len(), g1.Len())
	}
	if g1.Basis != 1 || g2.Basis != 1 || tbl.CurrentBasis() != 1 {
		t.Errorf("basis: published %d, merged %d, current %d, want 1", g1.Basis, g2.Basis, tbl.CurrentBasis())
	}
	if _, gen, ok := tbl.Vector("a"); !ok || gen != 2 {
		t.Errorf("Vector(a) = gen %d, %v", gen, ok)
	}

	// The superseded generation stays readable until discarded.
	if _, ok, err := tbl.VectorAt("a", 1); err != nil || !ok {
		t.Errorf("VectorAt(a, 1) = %v, %v", ok, err)
	}
	if n := tbl.Discard(2); n != 1 {
		t.Errorf("Discard() = %d, want 1", n)
	}
	if _, _, err := tbl.VectorAt("a", 1); !errors.Is(err, ErrStaleGenerationRead) {
		t.Errorf("expected ErrStaleGenerationRead, got %v", err)
	}

	// The current generation survives any discard.
	tbl.Discard(100)
	if got := tbl.Live(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Live() = %v, want [2]", got)
	}

	tbl.Reset(nil)
	if tbl.CurrentNumber() != 0 {
		t.Errorf("CurrentNumber() after reset = %d", tbl.CurrentNumber())
	}
}

func TestGeneration_BasisNumber(t *testing.T) {
	t.Parallel()

	// Generations restored from older snapshots carry no basis.
	legacy := &Generation{Number: 4}
	if got := legacy.BasisNumber(); got != 4 {
		t.Errorf("BasisNumber() = %d, want 4", got)
	}

	tbl := NewTable()
	tbl.Reset(&Generation{Number: 7, Basis: 5})
	g, err := tbl.Merge(8, 0, map[string]vector.Vector{"x": {1}})
	if err != nil {
		t.Fatal(err)
	}
	if g.Basis != 5 {
		t.Errorf("merged basis = %d, want 5", g.Basis)
	}
	if err := tbl.Publish(&Generation{Number: 9}); err != nil {
		t.Fatal(err)
	}
	if got := tbl.CurrentBasis(); got != 9 {
		t.Errorf("CurrentBasis() after full publish = %d, want 9", got)
	}
}
