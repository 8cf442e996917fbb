// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

// Package retry runs operations under a bounded exponential backoff.
//
// Only errors classified as retryable (see rverrors.IsRetryable, or a
// custom Config.RetryIf) are retried; everything else is returned on the
// first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/rverrors"
)

// Config controls the backoff schedule.
type Config struct {
	// MaxAttempts bounds the total number of attempts (first try included).
	MaxAttempts int

	// InitialInterval is the wait before the second attempt.
	InitialInterval time.Duration

	// MaxInterval caps a single wait.
	MaxInterval time.Duration

	// Multiplier grows the interval between attempts.
	Multiplier float64

	// RetryIf decides whether an error is retryable. Defaults to rverrors.IsRetryable.
	RetryIf func(error) bool
}

// DefaultConfig returns the retry schedule used for index and quorum failures.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     4,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		RetryIf:         rverrors.IsRetryable,
	}
}

func (c Config) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		b.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		b.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	// attempts bound the schedule, not wall-clock time
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	if c.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(b, uint64(c.MaxAttempts-1))
	}
	return backoff.WithContext(bo, ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, the attempt
// budget is exhausted, or ctx is done. The last error is returned.
//
//nolint:gocritic // Config is small and passed by value for call-site ergonomics
func Do(ctx context.Context, cfg Config, name string, op func(ctx context.Context) error) error {
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = rverrors.IsRetryable
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err != nil && !retryIf(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx).Debug().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Retrying after retryable error")
	}

	return backoff.RetryNotify(operation, cfg.backOff(ctx), notify)
}

// DoWithResult is Do for operations that produce a value.
//
//nolint:gocritic // Config is small and passed by value for call-site ergonomics
func DoWithResult[T any](ctx context.Context, cfg Config, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
