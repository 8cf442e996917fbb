// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package snapshot

import (
	"errors"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

var (
	// ErrCorruptSnapshot is returned for truncated, garbled, or inconsistent payloads.
	ErrCorruptSnapshot = rverrors.ErrCorruptSnapshot

	// ErrNoSnapshot is returned by RestoreLatest when nothing has been stored.
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrSnapshotNotFound is returned by Restore for an unknown reference.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
