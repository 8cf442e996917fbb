// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package rverrors defines the engine-wide error taxonomy.
//
// Domain packages re-export these values (hypergraph.ErrUnknownEntity is
// rverrors.ErrUnknownEntity) so callers can match with errors.Is regardless
// of which layer wrapped the error.
package rverrors

import "errors"

var (
	// ErrUnknownEntity is returned when an interaction references an unregistered entity.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrDuplicateKindConflict is returned when an entity is re-registered with another kind.
	ErrDuplicateKindConflict = errors.New("entity already registered with a different kind")

	// ErrInsufficientGraphData is returned when an entity has neither adjacency nor features.
	ErrInsufficientGraphData = errors.New("insufficient graph data")

	// ErrIndexNotBuilt is returned by queries issued before the first index build.
	ErrIndexNotBuilt = errors.New("similarity index not built")

	// ErrCorruptSnapshot is returned when a snapshot fails validation during restore.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrQuorumTimeout is returned when a fine-tuning round misses its worker quorum.
	ErrQuorumTimeout = errors.New("fine-tuning quorum timeout")

	// ErrStaleGenerationRead is returned when a query observed an embedding
	// generation that was superseded while it ran.
	ErrStaleGenerationRead = errors.New("stale embedding generation read")
)

// IsRetryable reports whether err is worth retrying with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIndexNotBuilt) ||
		errors.Is(err, ErrQuorumTimeout) ||
		errors.Is(err, ErrStaleGenerationRead)
}
