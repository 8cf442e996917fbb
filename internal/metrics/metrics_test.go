// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/trending", "200"))
	RecordAPIRequest("GET", "/api/v1/trending", "200", 3*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/trending", "200"))
	if after-before != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestRecordInteraction(t *testing.T) {
	likes := testutil.ToFloat64(GraphInteractionsTotal.WithLabelValues("like"))
	dups := testutil.ToFloat64(GraphDuplicatesTotal)

	RecordInteraction("like", false)
	RecordInteraction("like", true)

	if got := testutil.ToFloat64(GraphInteractionsTotal.WithLabelValues("like")); got != likes+1 {
		t.Errorf("like interactions = %v, want %v", got, likes+1)
	}
	if got := testutil.ToFloat64(GraphDuplicatesTotal); got != dups+1 {
		t.Errorf("duplicates = %v, want %v", got, dups+1)
	}
}

func TestRecordFineTuneRound(t *testing.T) {
	RecordFineTuneRound("published", 7, 0.42)
	if got := testutil.ToFloat64(FineTuneRound); got != 7 {
		t.Errorf("round gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(FineTuneLoss); got != 0.42 {
		t.Errorf("loss gauge = %v, want 0.42", got)
	}

	// Non-published outcomes leave the gauges alone.
	RecordFineTuneRound("quorum_timeout", 99, 9)
	if got := testutil.ToFloat64(FineTuneRound); got != 7 {
		t.Errorf("round gauge changed on timeout: %v", got)
	}
}

func TestSnapshotReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("decode: %w", rverrors.ErrCorruptSnapshot), "corrupt"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("put: %w", context.DeadlineExceeded), "canceled"},
		{errors.New("disk full"), "other"},
	}
	for _, tt := range tests {
		if got := snapshotReason(tt.err); got != tt.want {
			t.Errorf("snapshotReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRecordSnapshotFailure(t *testing.T) {
	before := testutil.ToFloat64(SnapshotFailures.WithLabelValues("restore", "corrupt"))
	RecordSnapshot("restore", 0, time.Millisecond, rverrors.ErrCorruptSnapshot)
	if got := testutil.ToFloat64(SnapshotFailures.WithLabelValues("restore", "corrupt")); got != before+1 {
		t.Errorf("snapshot failures = %v, want %v", got, before+1)
	}
}

func TestRecordIndexBuild(t *testing.T) {
	RecordIndexBuild(20*time.Millisecond, 500, 16)
	if got := testutil.ToFloat64(IndexSize); got != 500 {
		t.Errorf("index size = %v, want 500", got)
	}
	if got := testutil.ToFloat64(IndexLists); got != 16 {
		t.Errorf("index lists = %v, want 16", got)
	}
}
