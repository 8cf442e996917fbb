// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"context"
	"fmt"

	"github.com/tomtom215/ruvector/internal/finetune"
)

var _ finetune.Runner = (*Engine)(nil)

// SubmitFineTune starts a background learning job of rounds SPSA rounds
// awaiting numWorkers results each. Zero workers uses the configured quorum.
func (e *Engine) SubmitFineTune(ctx context.Context, rounds, numWorkers int) (*finetune.Job, error) {
	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}
	if numWorkers <= 0 {
		numWorkers = e.cfg.FineTune.Quorum
	}
	return e.jobs.Submit(ctx, rounds, numWorkers)
}

// FineTuneJob returns a learning job.
func (e *Engine) FineTuneJob(ctx context.Context, id string) (*finetune.Job, error) {
	return e.jobs.Get(ctx, id)
}

// FineTuneJobs lists learning jobs.
func (e *Engine) FineTuneJobs(ctx context.Context) ([]finetune.Job, error) {
	return e.jobs.List(ctx)
}

// WaitForJobs blocks until every submitted job has finished.
func (e *Engine) WaitForJobs() {
	e.jobs.Wait()
}

// Run implements finetune.Runner. Each published round has already been
// adopted by the embedder; a single rebuild follows the last one.
func (e *Engine) Run(ctx context.Context, rounds, quorum int, onRound func(*finetune.RoundComplete)) ([]*finetune.RoundComplete, error) {
	done, err := e.coordinator.Run(ctx, rounds, quorum, onRound)
	if len(done) > 0 {
		if _, rerr := e.Rebuild(ctx); rerr != nil && err == nil {
			err = fmt.Errorf("rebuild after fine-tuning: %w", rerr)
		}
	}
	return done, err
}

// FineTuneRound runs one round with the configured quorum and rebuilds
// on success. It is the scheduled fine-tuning entry point.
func (e *Engine) FineTuneRound(ctx context.Context) (*finetune.RoundComplete, error) {
	if !e.initialized.Load() {
		return nil, ErrNotInitialized
	}
	done, err := e.Run(ctx, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	return done[0], nil
}

// adoptRound installs parameters published by the local coordinator.
func (e *Engine) adoptRound(_ context.Context, rc *finetune.RoundComplete) error {
	if err := e.embedder.SetParams(rc.Params); err != nil {
		return err
	}
	e.paramsDirty.Store(true)
	return nil
}

// applySync installs parameters broadcast on the model-sync topic, which
// include this node's own rounds. Rounds not newer than the current
// parameters are ignored.
func (e *Engine) applySync(ctx context.Context, rc *finetune.RoundComplete) error {
	if rc.Round <= e.embedder.Params().Round {
		return nil
	}
	e.logger.Info().Uint64("round", rc.Round).Str("job_id", rc.JobID).Msg("Adopting parameters from model sync")
	return e.adoptRound(ctx, rc)
}
