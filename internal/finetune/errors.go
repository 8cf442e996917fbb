// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"errors"

	"github.com/tomtom215/ruvector/internal/rverrors"
)

var (
	// ErrQuorumTimeout is returned when too few workers answer a round in time.
	ErrQuorumTimeout = rverrors.ErrQuorumTimeout

	// ErrNoSamples is returned when no worker result carries samples.
	ErrNoSamples = errors.New("no worker samples to average")

	// ErrInvalidJob is returned for a malformed JobRequest.
	ErrInvalidJob = errors.New("invalid fine-tuning job")

	// ErrRoundInProgress is returned by Restore while a round is running.
	ErrRoundInProgress = errors.New("fine-tuning round in progress")

	// ErrJobNotFound is returned for an unknown learning job id.
	ErrJobNotFound = errors.New("learning job not found")

	// ErrTooManyJobs is returned when job submission is rate limited.
	ErrTooManyJobs = errors.New("too many learning jobs submitted")

	// ErrManagerClosed is returned after JobManager.Close.
	ErrManagerClosed = errors.New("job manager closed")
)

func isInvalid(err error) bool {
	return errors.Is(err, ErrInvalidJob)
}
