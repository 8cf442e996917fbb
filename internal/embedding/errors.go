// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package embedding

import (
	"errors"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

var (
	// ErrInsufficientGraphData is returned for an entity with no incident
	// hyperedges and an empty feature payload.
	ErrInsufficientGraphData = rverrors.ErrInsufficientGraphData

	// ErrUnknownEntity is returned when asked to embed an unregistered id.
	ErrUnknownEntity = rverrors.ErrUnknownEntity

	// ErrStaleGenerationRead is returned by Table.VectorAt for a discarded generation.
	ErrStaleGenerationRead = rverrors.ErrStaleGenerationRead

	// ErrDimensionMismatch is returned when parameters do not match the configured dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrGenerationOutOfOrder is returned when publishing a generation that is
	// not newer than the current one.
	ErrGenerationOutOfOrder = errors.New("embedding generation out of order")
)
