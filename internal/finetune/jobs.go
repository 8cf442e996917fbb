// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ruvector/internal/docstore"
)

// JobsCollection is the document store collection holding learning jobs.
const JobsCollection = "learning-jobs"

// JobStatus is the lifecycle of a learning job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a persisted multi-round fine-tuning request.
type Job struct {
	ID         string    `json:"id"`
	Status     JobStatus `json:"status"`
	Rounds     int       `json:"rounds"`
	NumWorkers int       `json:"num_workers"`

	CompletedRounds int       `json:"completed_rounds"`
	Progress        float64   `json:"progress"`
	Losses          []float64 `json:"losses"`
	StartRound      uint64    `json:"start_round"`
	CurrentRound    uint64    `json:"current_round"`
	Error           string    `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Runner runs fine-tuning rounds. *Coordinator implements it.
type Runner interface {
	Run(ctx context.Context, rounds, quorum int, onRound func(*RoundComplete)) ([]*RoundComplete, error)
}

// JobManagerConfig configures submission admission.
type JobManagerConfig struct {
	// SubmitRate and SubmitBurst bound job submissions.
	SubmitRate  rate.Limit
	SubmitBurst int
	MaxRounds   int
}

// JobManager runs learning jobs one at a time in the background and keeps
// their status in the document store.
type JobManager struct {
	store   docstore.Store
	runner  Runner
	limiter *rate.Limiter
	cfg     JobManagerConfig
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// runMu serializes job execution.
	runMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewJobManager creates a manager.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewJobManager(cfg JobManagerConfig, store docstore.Store, runner Runner, logger zerolog.Logger) *JobManager {
	if cfg.SubmitRate <= 0 {
		cfg.SubmitRate = rate.Every(time.Second)
	}
	if cfg.SubmitBurst <= 0 {
		cfg.SubmitBurst = 5
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 1000
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		store:   store,
		runner:  runner,
		limiter: rate.NewLimiter(cfg.SubmitRate, cfg.SubmitBurst),
		cfg:     cfg,
		logger:  logger.With().Str("component", "learning-jobs").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit persists a pending job and starts it in the background.
func (m *JobManager) Submit(ctx context.Context, rounds, numWorkers int) (*Job, error) {
	if rounds < 1 || rounds > m.cfg.MaxRounds {
		return nil, fmt.Errorf("%w: rounds must be between 1 and %d, got %d", ErrInvalidJob, m.cfg.MaxRounds, rounds)
	}
	if numWorkers < 0 {
		return nil, fmt.Errorf("%w: numWorkers must not be negative, got %d", ErrInvalidJob, numWorkers)
	}
	if !m.limiter.Allow() {
		return nil, ErrTooManyJobs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	job := &Job{
		ID:         uuid.NewString(),
		Status:     JobPending,
		Rounds:     rounds,
		NumWorkers: numWorkers,
		Losses:     []float64{},
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.save(ctx, job); err != nil {
		return nil, err
	}

	m.wg.Add(1)
	go func(j Job) {
		defer m.wg.Done()
		m.execute(&j)
	}(*job)

	m.logger.Info().Str("job_id", job.ID).Int("rounds", rounds).Int("workers", numWorkers).Msg("Learning job submitted")
	return job, nil
}

func (m *JobManager) execute(job *Job) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.ctx.Err() != nil {
		m.fail(job, m.ctx.Err())
		return
	}

	started := time.Now().UTC()
	job.Status = JobRunning
	job.StartedAt = &started
	if err := m.save(m.ctx, job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job start")
	}

	first := true
	_, err := m.runner.Run(m.ctx, job.Rounds, job.NumWorkers, func(rc *RoundComplete) {
		if first {
			job.StartRound = rc.Round - 1
			first = false
		}
		job.CompletedRounds++
		job.CurrentRound = rc.Round
		job.Losses = append(job.Losses, rc.Loss)
		job.Progress = float64(job.CompletedRounds) / float64(job.Rounds)
		if err := m.save(m.ctx, job); err != nil {
			m.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist job progress")
		}
	})
	if err != nil {
		m.fail(job, err)
		return
	}

	done := time.Now().UTC()
	job.Status = JobCompleted
	job.Progress = 1
	job.CompletedAt = &done
	if err := m.save(context.Background(), job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job completion")
	}
	m.logger.Info().Str("job_id", job.ID).Int("rounds", job.CompletedRounds).Msg("Learning job completed")
}

func (m *JobManager) fail(job *Job, cause error) {
	done := time.Now().UTC()
	job.Status = JobFailed
	job.Error = cause.Error()
	job.CompletedAt = &done
	if err := m.save(context.Background(), job); err != nil {
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist job failure")
	}
	m.logger.Warn().Err(cause).Str("job_id", job.ID).Int("completed_rounds", job.CompletedRounds).Msg("Learning job failed")
}

func (m *JobManager) save(ctx context.Context, job *Job) error {
	if err := docstore.PutJSON(ctx, m.store, JobsCollection, job.ID, job); err != nil {
		return fmt.Errorf("save learning job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns a job by id.
func (m *JobManager) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := docstore.GetJSON(ctx, m.store, JobsCollection, id, &job)
	if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidKey) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns every job, newest first.
func (m *JobManager) List(ctx context.Context) ([]Job, error) {
	jobs, err := docstore.ListJSON[Job](ctx, m.store, JobsCollection)
	if err != nil {
		return nil, fmt.Errorf("list learning jobs: %w", err)
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

// Counts returns the number of jobs per status.
func (m *JobManager) Counts(ctx context.Context) (map[JobStatus]int, error) {
	jobs, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[JobStatus]int)
	for _, j := range jobs {
		out[j.Status]++
	}
	return out, nil
}

// Wait blocks until every submitted job has finished.
func (m *JobManager) Wait() {
	m.wg.Wait()
}

// Close cancels running jobs and waits for them to record their outcome.
func (m *JobManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}
