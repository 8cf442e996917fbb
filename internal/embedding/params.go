// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package embedding

import (
	"fmt"
	"math"

	"github.com/tomtom215/ruvector/internal/vector"
)

// Params is the tunable d×d projection applied to every blended vector.
// Values are immutable once published; use Clone or Perturbed to derive.
type Params struct {
	// Round is the fine-tuning round that produced these parameters.
	Round uint64 `json:"round"`

	// Dim is d.
	Dim int `json:"dim"`

	// Theta holds the matrix in row-major order, len Dim*Dim.
	Theta []float64 `json:"theta"`
}

// IdentityParams returns the round-0 parameters.
func IdentityParams(dim int) *Params {
	theta := make([]float64, dim*dim)
	for i := 0; i < dim; i++ {
		theta[i*dim+i] = 1
	}
	return &Params{Dim: dim, Theta: theta}
}

// Len returns the number of scalar parameters.
func (p *Params) Len() int {
	return len(p.Theta)
}

// Validate checks shape and finiteness.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil parameters", ErrDimensionMismatch)
	}
	if p.Dim < 1 || len(p.Theta) != p.Dim*p.Dim {
		return fmt.Errorf("%w: %d values for dim %d", ErrDimensionMismatch, len(p.Theta), p.Dim)
	}
	for i, x := range p.Theta {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("parameter %d is not finite", i)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	theta := make([]float64, len(p.Theta))
	copy(theta, p.Theta)
	return &Params{Round: p.Round, Dim: p.Dim, Theta: theta}
}

// Perturbed returns θ + scale·delta. delta must have Len() entries.
func (p *Params) Perturbed(delta []float64, scale float64) *Params {
	out := p.Clone()
	for i := range out.Theta {
		out.Theta[i] += scale * delta[i]
	}
	return out
}

// Project applies θ to raw and L2-normalizes the result. A projection that
// collapses to zero falls back to the normalized raw vector.
func (p *Params) Project(raw []float64) vector.Vector {
	d := p.Dim
	out := make([]float64, d)
	for i := 0; i < d; i++ {
		row := p.Theta[i*d : (i+1)*d]
		var sum float64
		for j, x := range raw {
			sum += row[j] * x
		}
		out[i] = sum
	}
	v := vector.FromFloat64(out)
	if vector.Normalize(v) {
		return v
	}
	v = vector.FromFloat64(raw)
	vector.Normalize(v)
	return v
}
