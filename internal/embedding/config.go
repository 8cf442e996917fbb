// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package embedding

import (
	"errors"
	"fmt"
	"runtime"
)

// Config controls walk sampling, FastRP propagation and blending.
type Config struct {
	// Dimensions is the output vector length.
	Dimensions int

	// WalkLength is the number of nodes per random walk, including the start.
	WalkLength int

	// WalksPerEntity is the number of walks started from each embedded entity.
	WalksPerEntity int

	// WindowSize is the skip-gram context window.
	WindowSize int

	// ReturnParam is node2vec p. Higher values make walks less likely to
	// step straight back.
	ReturnParam float64

	// InOutParam is node2vec q. Values above 1 keep walks local.
	InOutParam float64

	// IterationWeights weights FastRP propagation depths; index 0 is the
	// entity's own base vector, index k is its k-hop aggregate.
	IterationWeights []float64

	// MinWalkSamples is the number of distinct co-occurring entities below
	// which an entity is treated as cold.
	MinWalkSamples int

	// ColdBlend and WarmBlend are the walk-signal weights for cold and warm
	// entities. FastRP receives the remainder.
	ColdBlend float64
	WarmBlend float64

	// Workers bounds batch parallelism.
	Workers int
}

// DefaultConfig returns the default embedding configuration.
func DefaultConfig() Config {
	return Config{
		Dimensions:       128,
		WalkLength:       80,
		WalksPerEntity:   10,
		WindowSize:       5,
		ReturnParam:      1.0,
		InOutParam:       1.0,
		IterationWeights: []float64{0.0, 1.0, 1.0},
		MinWalkSamples:   5,
		ColdBlend:        0.2,
		WarmBlend:        0.7,
		Workers:          runtime.GOMAXPROCS(0),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dimensions < 1 {
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	}
	if c.WalkLength < 2 || c.WalksPerEntity < 1 {
		return errors.New("walk length must be >= 2 and walks per entity >= 1")
	}
	if c.WindowSize < 1 {
		return errors.New("window size must be positive")
	}
	if c.ReturnParam <= 0 || c.InOutParam <= 0 {
		return errors.New("p and q must be positive")
	}
	if len(c.IterationWeights) == 0 {
		return errors.New("at least one iteration weight is required")
	}
	if c.ColdBlend < 0 || c.ColdBlend > 1 || c.WarmBlend < 0 || c.WarmBlend > 1 {
		return errors.New("blend weights must be within [0, 1]")
	}
	return nil
}
