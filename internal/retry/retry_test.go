// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	return cfg
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastConfig(5), "index", func(context.Context) error {
		calls++
		if calls < 3 {
			return rverrors.ErrIndexNotBuilt
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastConfig(5), "register", func(context.Context) error {
		calls++
		return rverrors.ErrUnknownEntity
	})
	if !errors.Is(err, rverrors.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_BoundedAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastConfig(3), "quorum", func(context.Context) error {
		calls++
		return rverrors.ErrQuorumTimeout
	})
	if !errors.Is(err, rverrors.ErrQuorumTimeout) {
		t.Fatalf("expected ErrQuorumTimeout, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(10), "canceled", func(context.Context) error {
		calls++
		return rverrors.ErrIndexNotBuilt
	})
	if err == nil {
		t.Fatal("expected an error for canceled context")
	}
	if calls > 1 {
		t.Errorf("expected at most 1 call, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	t.Parallel()

	calls := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), "value", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, rverrors.ErrStaleGenerationRead
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got (%d, %v), want (42, nil)", v, err)
	}
}
