// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/cache"
	"github.com/tomtom215/ruvector/internal/pubsub"
)

// WorkerConfig configures an SPSA worker.
type WorkerConfig struct {
	ID           string
	ResultsTopic string

	// HandledCapacity bounds the per-job result memo.
	HandledCapacity int
	HandledTTL      time.Duration
}

// Worker answers JobRequests with a two-sided SPSA estimate.
type Worker struct {
	cfg       WorkerConfig
	evaluator Evaluator
	publisher message.Publisher
	handled   *cache.LRUCache[string, PartialResult]
	logger    zerolog.Logger
}

// NewWorker creates a worker publishing results through publisher.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWorker(cfg WorkerConfig, evaluator Evaluator, publisher message.Publisher, logger zerolog.Logger) (*Worker, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("worker id is required")
	}
	if cfg.ResultsTopic == "" {
		cfg.ResultsTopic = pubsub.DefaultTopics().Results
	}
	if cfg.HandledCapacity <= 0 {
		cfg.HandledCapacity = 1024
	}
	if cfg.HandledTTL <= 0 {
		cfg.HandledTTL = time.Hour
	}
	return &Worker{
		cfg:       cfg,
		evaluator: evaluator,
		publisher: publisher,
		handled:   cache.NewLRUCache[string, PartialResult](cfg.HandledCapacity, cfg.HandledTTL),
		logger:    logger.With().Str("component", "finetune-worker").Str("worker_id", cfg.ID).Logger(),
	}, nil
}

// ID returns the worker id.
func (w *Worker) ID() string {
	return w.cfg.ID
}

// Evaluate computes the SPSA estimate for job without publishing it.
// A job already evaluated returns the memoized result.
func (w *Worker) Evaluate(ctx context.Context, job *JobRequest) (PartialResult, error) {
	if r, ok := w.handled.Get(job.JobID); ok {
		return r, nil
	}
	if err := job.Validate(); err != nil {
		return PartialResult{}, err
	}

	ev, err := w.evaluator.Prepare(ctx, job, w.cfg.ID)
	if err != nil {
		return PartialResult{}, fmt.Errorf("prepare job %s: %w", job.JobID, err)
	}
	if err := ctx.Err(); err != nil {
		return PartialResult{}, err
	}

	delta := Rademacher(job.Seed, job.Params.Len())
	plus := ev.Loss(job.Params.Perturbed(delta, job.Perturbation))
	minus := ev.Loss(job.Params.Perturbed(delta, -job.Perturbation))

	r := PartialResult{
		JobID:     job.JobID,
		Round:     job.Round,
		Attempt:   job.Attempt,
		WorkerID:  w.cfg.ID,
		Estimate:  (plus - minus) / (2 * job.Perturbation),
		Samples:   ev.Samples(),
		LossPlus:  plus,
		LossMinus: minus,
	}
	w.handled.Add(job.JobID, r)
	return r, nil
}

// Handle evaluates job and publishes the result. Redelivered jobs republish
// the memoized result under the same dedup key, so the coordinator counts
// each (round, worker) once.
func (w *Worker) Handle(ctx context.Context, job *JobRequest) error {
	r, err := w.Evaluate(ctx, job)
	if err != nil {
		return err
	}
	msg, err := pubsub.NewMessage(TypePartialResult, r.dedupKey(), r)
	if err != nil {
		return err
	}
	if err := w.publisher.Publish(w.cfg.ResultsTopic, msg); err != nil {
		return fmt.Errorf("publish result for round %d: %w", r.Round, err)
	}

	w.logger.Debug().
		Uint64("round", r.Round).
		Int("attempt", r.Attempt).
		Float64("estimate", r.Estimate).
		Int("samples", r.Samples).
		Msg("Published SPSA estimate")
	return nil
}

// HandleMessage is the router handler for the jobs topic. Malformed jobs
// are acknowledged and dropped.
func (w *Worker) HandleMessage(msg *message.Message) error {
	var job JobRequest
	if err := pubsub.Decode(msg, &job); err != nil {
		w.logger.Warn().Err(err).Msg("Dropping undecodable job")
		return nil
	}
	err := w.Handle(msg.Context(), &job)
	if err != nil && isInvalid(err) {
		w.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Dropping invalid job")
		return nil
	}
	return err
}

// Register subscribes the worker on r.
func (w *Worker) Register(r *pubsub.Router, subscriber message.Subscriber, jobsTopic string) {
	r.AddConsumerHandler("finetune.worker."+w.cfg.ID, jobsTopic, subscriber, w.HandleMessage)
}
