// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/ruvector/internal/embedding"
)

// Message types carried in the pubsub "type" metadata.
const (
	TypeJobRequest    = "finetune.job_request"
	TypePartialResult = "finetune.partial_result"
	TypeRoundComplete = "finetune.round_complete"
)

// JobRequest is broadcast on the jobs topic at the start of a round attempt.
type JobRequest struct {
	JobID   string `json:"job_id"`
	Round   uint64 `json:"round"`
	Attempt int    `json:"attempt"`

	// Seed regenerates the Rademacher direction on every worker.
	Seed int64 `json:"seed"`

	// Perturbation is c_k.
	Perturbation float64 `json:"perturbation"`

	// StepSize is a_k, informational for workers.
	StepSize float64 `json:"step_size"`

	// Generation pins the embedding generation workers replay against.
	Generation uint64 `json:"generation"`

	Params *embedding.Params `json:"params"`

	// MaxSamples caps the triplets a worker replays; zero means no cap.
	MaxSamples int       `json:"max_samples"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Validate rejects jobs a worker cannot evaluate.
func (j *JobRequest) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("%w: missing job id", ErrInvalidJob)
	}
	if !(j.Perturbation > 0) || math.IsInf(j.Perturbation, 0) {
		return fmt.Errorf("%w: perturbation %g", ErrInvalidJob, j.Perturbation)
	}
	if err := j.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return nil
}

func (j *JobRequest) dedupKey() string {
	return fmt.Sprintf("job:%s", j.JobID)
}

// PartialResult is a worker's SPSA estimate for one job.
type PartialResult struct {
	JobID    string `json:"job_id"`
	Round    uint64 `json:"round"`
	Attempt  int    `json:"attempt"`
	WorkerID string `json:"worker_id"`

	// Estimate is (f+ − f−) / (2·c_k).
	Estimate float64 `json:"estimate"`

	// Samples is the number of replayed triplets behind the estimate.
	Samples   int     `json:"samples"`
	LossPlus  float64 `json:"loss_plus"`
	LossMinus float64 `json:"loss_minus"`
}

func (r *PartialResult) dedupKey() string {
	return fmt.Sprintf("result:%d:%d:%s", r.Round, r.Attempt, r.WorkerID)
}

// RoundComplete is published on the model-sync topic after averaging.
type RoundComplete struct {
	JobID string `json:"job_id"`

	// Round is the new round counter; Params.Round equals it.
	Round    uint64            `json:"round"`
	Params   *embedding.Params `json:"params"`
	Gradient float64           `json:"gradient"`
	StepSize float64           `json:"step_size"`

	// Loss is the sample-weighted objective around the pre-update parameters.
	Loss        float64   `json:"loss"`
	Workers     int       `json:"workers"`
	Samples     int       `json:"samples"`
	CompletedAt time.Time `json:"completed_at"`
}

func (r *RoundComplete) dedupKey() string {
	return fmt.Sprintf("sync:%d", r.Round)
}
