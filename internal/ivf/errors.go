// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package ivf

import (
	"errors"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

var (
	// ErrIndexNotBuilt is returned before the first successful Build.
	ErrIndexNotBuilt = rverrors.ErrIndexNotBuilt

	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidSnapshot is returned by Restore for a structurally broken snapshot.
	ErrInvalidSnapshot = errors.New("invalid index snapshot")
)
