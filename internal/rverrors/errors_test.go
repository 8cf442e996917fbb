// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package rverrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"index not built", ErrIndexNotBuilt, true},
		{"wrapped quorum timeout", fmt.Errorf("round 3: %w", ErrQuorumTimeout), true},
		{"stale read", ErrStaleGenerationRead, true},
		{"unknown entity", ErrUnknownEntity, false},
		{"corrupt snapshot", ErrCorruptSnapshot, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tt.name, got, tt.want)
		}
	}
}
