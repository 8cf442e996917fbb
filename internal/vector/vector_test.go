// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package vector

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	v := Vector{3, 4}
	if !Normalize(v) {
		t.Fatal("Normalize() = false for non-zero vector")
	}
	if math.Abs(Norm(v)-1) > 1e-6 {
		t.Errorf("Norm() after Normalize = %v", Norm(v))
	}

	zero := Vector{0, 0}
	if Normalize(zero) {
		t.Error("Normalize() = true for zero vector")
	}
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 1},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, -1},
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 0},
		{"zero", Vector{0, 0}, Vector{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("%s: Cosine() = %v, want %v", tt.name, got, tt.want)
		}
	}
	if d := CosineDistance(Vector{1, 0}, Vector{1, 0}); math.Abs(d) > 1e-6 {
		t.Errorf("CosineDistance(identical) = %v", d)
	}
}

func TestWeightedMean(t *testing.T) {
	t.Parallel()

	mean, ok := WeightedMean([]Vector{{1, 0}, {0, 1}, {5, 5}}, []float64{3, 1, -2})
	if !ok {
		t.Fatal("WeightedMean() = false")
	}
	if mean[0] <= mean[1] {
		t.Errorf("heavier weight should dominate: %v", mean)
	}
	if math.Abs(Norm(mean)-1) > 1e-6 {
		t.Errorf("mean not normalized: %v", Norm(mean))
	}

	if _, ok := WeightedMean([]Vector{{1, 0}}, []float64{-1}); ok {
		t.Error("WeightedMean() with only negative weights should fail")
	}
}
