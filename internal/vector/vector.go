// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package vector provides the dense vector type shared by the embedding
// engine, the similarity index and the recommendation service.
//
// Vectors are stored as float32. Accumulation happens in float64 so that
// long sums over many neighbours do not lose precision.
package vector

import "math"

// Vector is a dense embedding.
type Vector []float32

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Dot returns the dot product of a and b. Lengths must match.
func Dot(a, b Vector) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v Vector) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize L2-normalizes v in place. It reports false for a zero vector,
// which is left unchanged.
func Normalize(v Vector) bool {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) {
		return false
	}
	inv := 1 / n
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return true
}

// Cosine returns the cosine similarity of a and b, or 0 if either is zero.
func Cosine(a, b Vector) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// CosineDistance returns 1 - Cosine(a, b).
func CosineDistance(a, b Vector) float64 {
	return 1 - Cosine(a, b)
}

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// FromFloat64 converts an accumulator into a Vector.
func FromFloat64(acc []float64) Vector {
	out := make(Vector, len(acc))
	for i, x := range acc {
		out[i] = float32(x)
	}
	return out
}

// Accumulate adds w*v into acc.
func Accumulate(acc []float64, v Vector, w float64) {
	for i := range v {
		acc[i] += w * float64(v[i])
	}
}

// WeightedMean returns the normalized weighted mean of vs. Entries with a
// non-positive weight are ignored. It reports false when nothing remains.
func WeightedMean(vs []Vector, weights []float64) (Vector, bool) {
	if len(vs) == 0 {
		return nil, false
	}
	acc := make([]float64, len(vs[0]))
	var total float64
	for i, v := range vs {
		if weights[i] <= 0 || len(v) != len(acc) {
			continue
		}
		Accumulate(acc, v, weights[i])
		total += weights[i]
	}
	if total == 0 {
		return nil, false
	}
	out := FromFloat64(acc)
	if !Normalize(out) {
		return nil, false
	}
	return out, true
}
