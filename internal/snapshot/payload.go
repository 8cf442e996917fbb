// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package snapshot

import (
	"fmt"
	"time"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/ivf"
)

// PayloadVersion is bumped on incompatible payload changes.
const PayloadVersion = 1

// Optimization is the fine-tuning state captured with a snapshot.
type Optimization struct {
	Params   *embedding.Params `json:"params"`
	Seed     int64             `json:"seed"`
	Round    uint64            `json:"round"`
	LastLoss float64           `json:"last_loss"`
}

// Payload is the consistent point-in-time engine state.
type Payload struct {
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Offset     uint64    `json:"offset"`
	Generation uint64    `json:"generation"`

	Graph        hypergraph.State      `json:"graph"`
	Embeddings   *embedding.Generation `json:"embeddings,omitempty"`
	Index        *ivf.Snapshot         `json:"index,omitempty"`
	Optimization Optimization          `json:"optimization"`
}

// Validate checks the payload's internal consistency. All errors wrap
// ErrCorruptSnapshot.
func (p *Payload) Validate() error {
	if p.Version != PayloadVersion {
		return fmt.Errorf("%w: payload version %d", ErrCorruptSnapshot, p.Version)
	}
	if p.Offset != p.Graph.Offset {
		return fmt.Errorf("%w: offset %d does not match graph offset %d", ErrCorruptSnapshot, p.Offset, p.Graph.Offset)
	}
	if err := hypergraph.ValidateState(p.Graph); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	params := p.Optimization.Params
	if params == nil {
		return fmt.Errorf("%w: missing optimization params", ErrCorruptSnapshot)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	entities := make(map[string]struct{}, len(p.Graph.Entities))
	for _, e := range p.Graph.Entities {
		entities[e.ID] = struct{}{}
	}

	var embedded map[string]struct{}
	if g := p.Embeddings; g != nil {
		if g.Number != p.Generation {
			return fmt.Errorf("%w: embeddings generation %d, want %d", ErrCorruptSnapshot, g.Number, p.Generation)
		}
		embedded = make(map[string]struct{}, len(g.Vectors))
		for id, v := range g.Vectors {
			if _, ok := entities[id]; !ok {
				return fmt.Errorf("%w: embedding for unknown entity %q", ErrCorruptSnapshot, id)
			}
			if len(v) != params.Dim {
				return fmt.Errorf("%w: embedding %q has dimension %d, want %d", ErrCorruptSnapshot, id, len(v), params.Dim)
			}
			embedded[id] = struct{}{}
		}
	}

	if ix := p.Index; ix != nil {
		if err := ix.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		if ix.Dim != 0 && ix.Dim != params.Dim {
			return fmt.Errorf("%w: index dimension %d, want %d", ErrCorruptSnapshot, ix.Dim, params.Dim)
		}
		if ix.Generation > p.Generation {
			return fmt.Errorf("%w: index generation %d ahead of embeddings %d", ErrCorruptSnapshot, ix.Generation, p.Generation)
		}
		if embedded != nil {
			for _, list := range ix.Lists {
				for _, e := range list {
					if _, ok := embedded[e.ID]; !ok {
						return fmt.Errorf("%w: index entry %q has no embedding", ErrCorruptSnapshot, e.ID)
					}
				}
			}
		}
	}
	return nil
}
