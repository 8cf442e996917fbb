// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"fmt"
	"math"
	"math/rand"
)

// Schedule holds the SPSA gain sequences:
//
//	a_k = A / (k + 1 + Stability)^Alpha   (step size)
//	c_k = C / (k + 1)^Gamma               (perturbation size)
type Schedule struct {
	A         float64 `json:"a"`
	C         float64 `json:"c"`
	Alpha     float64 `json:"alpha"`
	Gamma     float64 `json:"gamma"`
	Stability float64 `json:"stability"`
}

// DefaultSchedule returns Spall's recommended exponents with a=c=0.1, A=100.
func DefaultSchedule() Schedule {
	return Schedule{A: 0.1, C: 0.1, Alpha: 0.602, Gamma: 0.101, Stability: 100}
}

// Validate checks that both sequences are positive and decreasing.
func (s Schedule) Validate() error {
	if s.A <= 0 || s.C <= 0 {
		return fmt.Errorf("gains must be positive (a=%g, c=%g)", s.A, s.C)
	}
	if s.Alpha <= 0 || s.Gamma <= 0 {
		return fmt.Errorf("exponents must be positive (alpha=%g, gamma=%g)", s.Alpha, s.Gamma)
	}
	if s.Stability < 0 {
		return fmt.Errorf("stability must not be negative, got %g", s.Stability)
	}
	return nil
}

// StepSize returns a_k.
func (s Schedule) StepSize(k uint64) float64 {
	return s.A / math.Pow(float64(k)+1+s.Stability, s.Alpha)
}

// Perturbation returns c_k.
func (s Schedule) Perturbation(k uint64) float64 {
	return s.C / math.Pow(float64(k)+1, s.Gamma)
}

// Rademacher returns n independent ±1 draws from seed. Workers and the
// coordinator regenerate the same direction from the seed carried in a job.
func Rademacher(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic perturbation, not security
	out := make([]float64, n)
	for i := range out {
		if rng.Int63()&1 == 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

// attemptSeed derives a fresh perturbation seed for (round, attempt) with
// a splitmix64 finalizer, so a retried round never reuses a direction.
func attemptSeed(base int64, round uint64, attempt int) int64 {
	z := uint64(base) + round*0x9E3779B97F4A7C15 + uint64(attempt)*0xBF58476D1CE4E5B9 //nolint:gosec // bit mixing
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z & math.MaxInt64) //nolint:gosec // masked to a non-negative int64
}
