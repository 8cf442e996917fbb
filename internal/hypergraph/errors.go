// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package hypergraph

import (
	"errors"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

var (
	// ErrUnknownEntity is returned when an id has not been registered.
	ErrUnknownEntity = rverrors.ErrUnknownEntity

	// ErrDuplicateKindConflict is returned when an id is re-registered with another kind.
	ErrDuplicateKindConflict = rverrors.ErrDuplicateKindConflict

	// ErrInvalidFeatures is returned when a feature payload has an unsupported shape.
	ErrInvalidFeatures = errors.New("invalid feature payload")

	// ErrInvalidEntity is returned for malformed ids or unknown kinds.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInconsistentState is returned by LoadState when edges reference
	// missing entities or sequence numbers exceed the recorded offset.
	ErrInconsistentState = errors.New("inconsistent hypergraph state")

	// ErrInvalidInteraction is returned for malformed interactions (no ids, unknown type).
	ErrInvalidInteraction = errors.New("invalid interaction")
)
