// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/metrics"
	"github.com/tomtom215/ruvector/internal/pubsub"
	"github.com/tomtom215/ruvector/internal/retry"
)

// State is the coordinator round state.
type State int

const (
	StateIdle State = iota
	StateAwaitingWorkerResults
	StateAveraging
	StatePublished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingWorkerResults:
		return "awaiting_worker_results"
	case StateAveraging:
		return "averaging"
	case StatePublished:
		return "published"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// OptimizationState is the coordinator-owned parameter state.
type OptimizationState struct {
	Params   *embedding.Params `json:"params"`
	Seed     int64             `json:"seed"`
	Round    uint64            `json:"round"`
	LastLoss float64           `json:"last_loss"`
}

// CoordinatorConfig configures rounds.
type CoordinatorConfig struct {
	// Quorum is the number of distinct worker results a round waits for.
	Quorum        int
	QuorumTimeout time.Duration
	Schedule      Schedule

	// Retry bounds re-attempts after ErrQuorumTimeout.
	Retry retry.Config

	// Seed is the base perturbation seed.
	Seed int64

	// MaxSamples is forwarded to workers as the replay cap.
	MaxSamples int

	JobsTopic      string
	ModelSyncTopic string
}

// Coordinator drives SPSA rounds over pub/sub and owns the optimization state.
type Coordinator struct {
	cfg        CoordinatorConfig
	publisher  message.Publisher
	generation func() uint64
	onPublish  func(ctx context.Context, rc *RoundComplete) error
	logger     zerolog.Logger

	// runMu serializes rounds.
	runMu sync.Mutex

	mu       sync.Mutex
	state    State
	params   *embedding.Params
	round    uint64
	lastLoss float64
	pending  *pendingRound
}

type pendingRound struct {
	job     JobRequest
	delta   []float64
	quorum  int
	results map[string]PartialResult
	ready   chan struct{}
	closed  bool
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithGeneration sets the embedding generation source stamped on jobs.
func WithGeneration(fn func() uint64) CoordinatorOption {
	return func(c *Coordinator) { c.generation = fn }
}

// WithOnPublish sets a callback invoked after each published round, used
// by the engine to adopt the new parameters.
func WithOnPublish(fn func(ctx context.Context, rc *RoundComplete) error) CoordinatorOption {
	return func(c *Coordinator) { c.onPublish = fn }
}

// NewCoordinator creates a coordinator starting from initial parameters.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCoordinator(cfg CoordinatorConfig, initial *embedding.Params, publisher message.Publisher, logger zerolog.Logger, opts ...CoordinatorOption) (*Coordinator, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial params: %w", err)
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	if cfg.Quorum < 1 {
		return nil, fmt.Errorf("quorum must be at least 1, got %d", cfg.Quorum)
	}
	if cfg.QuorumTimeout <= 0 {
		return nil, fmt.Errorf("quorum timeout must be positive")
	}
	topics := pubsub.DefaultTopics()
	if cfg.JobsTopic == "" {
		cfg.JobsTopic = topics.Jobs
	}
	if cfg.ModelSyncTopic == "" {
		cfg.ModelSyncTopic = topics.ModelSync
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	c := &Coordinator{
		cfg:        cfg,
		publisher:  publisher,
		generation: func() uint64 { return 0 },
		logger:     logger.With().Str("component", "finetune-coordinator").Logger(),
		params:     initial.Clone(),
		round:      initial.Round,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current round state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Optimization returns a copy of the optimization state.
func (c *Coordinator) Optimization() OptimizationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return OptimizationState{
		Params:   c.params.Clone(),
		Seed:     c.cfg.Seed,
		Round:    c.round,
		LastLoss: c.lastLoss,
	}
}

// Restore replaces the optimization state. It fails while a round runs.
func (c *Coordinator) Restore(st OptimizationState) error {
	if err := st.Params.Validate(); err != nil {
		return fmt.Errorf("restore params: %w", err)
	}
	if !c.runMu.TryLock() {
		return ErrRoundInProgress
	}
	defer c.runMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = st.Params.Clone()
	c.params.Round = st.Round
	c.round = st.Round
	c.cfg.Seed = st.Seed
	c.lastLoss = st.LastLoss
	return nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RunRound runs one round with the configured quorum. A round that misses
// quorum is retried with a fresh seed under the retry policy.
func (c *Coordinator) RunRound(ctx context.Context) (*RoundComplete, error) {
	return c.runRound(ctx, c.cfg.Quorum)
}

func (c *Coordinator) runRound(ctx context.Context, quorum int) (*RoundComplete, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	attempt := 0
	return retry.DoWithResult(ctx, c.cfg.Retry, "finetune.round", func(ctx context.Context) (*RoundComplete, error) {
		attempt++
		return c.attemptRound(ctx, attempt, quorum)
	})
}

// Run executes rounds sequentially. onRound, if set, observes each
// published round. quorum <= 0 uses the configured quorum.
func (c *Coordinator) Run(ctx context.Context, rounds, quorum int, onRound func(*RoundComplete)) ([]*RoundComplete, error) {
	if quorum <= 0 {
		quorum = c.cfg.Quorum
	}
	out := make([]*RoundComplete, 0, rounds)
	for i := 0; i < rounds; i++ {
		rc, err := c.runRound(ctx, quorum)
		if err != nil {
			return out, err
		}
		out = append(out, rc)
		if onRound != nil {
			onRound(rc)
		}
	}
	return out, nil
}

func (c *Coordinator) attemptRound(ctx context.Context, attempt, quorum int) (*RoundComplete, error) {
	log := logging.Ctx(ctx).With().Str("component", "finetune-coordinator").Logger()

	c.mu.Lock()
	prev := c.state
	params := c.params
	round := c.round
	job := JobRequest{
		JobID:        uuid.NewString(),
		Round:        round,
		Attempt:      attempt,
		Seed:         attemptSeed(c.cfg.Seed, round, attempt),
		Perturbation: c.cfg.Schedule.Perturbation(round),
		StepSize:     c.cfg.Schedule.StepSize(round),
		Generation:   c.generation(),
		Params:       params,
		MaxSamples:   c.cfg.MaxSamples,
		IssuedAt:     time.Now().UTC(),
	}
	p := &pendingRound{
		job:     job,
		delta:   Rademacher(job.Seed, params.Len()),
		quorum:  quorum,
		results: make(map[string]PartialResult, quorum),
		ready:   make(chan struct{}),
	}
	c.pending = p
	c.state = StateAwaitingWorkerResults
	c.mu.Unlock()

	msg, err := pubsub.NewMessage(TypeJobRequest, job.dedupKey(), job)
	if err == nil {
		err = c.publisher.Publish(c.cfg.JobsTopic, msg)
	}
	if err != nil {
		c.abandon(p, prev)
		metrics.RecordFineTuneRound("failed", round, 0)
		return nil, fmt.Errorf("broadcast job for round %d: %w", round, err)
	}

	log.Debug().
		Uint64("round", round).
		Int("attempt", attempt).
		Int("quorum", quorum).
		Msg("Broadcast fine-tuning job")

	timer := time.NewTimer(c.cfg.QuorumTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.abandon(p, prev)
		metrics.RecordFineTuneRound("canceled", round, 0)
		return nil, ctx.Err()
	case <-timer.C:
		got := c.abandon(p, StateIdle)
		metrics.RecordFineTuneRound("quorum_timeout", round, 0)
		log.Warn().
			Uint64("round", round).
			Int("attempt", attempt).
			Int("results", got).
			Int("quorum", quorum).
			Msg("Fine-tuning quorum not reached")
		return nil, fmt.Errorf("round %d attempt %d: %d of %d results: %w", round, attempt, got, quorum, ErrQuorumTimeout)
	case <-p.ready:
	}

	return c.complete(ctx, p)
}

// abandon drops p if it is still pending and returns how many results it had.
func (c *Coordinator) abandon(p *pendingRound, next State) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(p.results)
	if c.pending == p {
		c.pending = nil
		c.state = next
	}
	return n
}

func (c *Coordinator) complete(ctx context.Context, p *pendingRound) (*RoundComplete, error) {
	c.mu.Lock()
	if c.pending != p {
		c.mu.Unlock()
		return nil, fmt.Errorf("round %d superseded", p.job.Round)
	}
	c.state = StateAveraging
	c.pending = nil
	results := make([]PartialResult, 0, len(p.results))
	for _, r := range p.results {
		results = append(results, r)
	}
	c.mu.Unlock()

	sort.Slice(results, func(i, j int) bool { return results[i].WorkerID < results[j].WorkerID })
	grad, loss, samples, err := FederatedAverage(results)
	if err != nil {
		c.setState(StateIdle)
		metrics.RecordFineTuneRound("failed", p.job.Round, 0)
		return nil, fmt.Errorf("average round %d: %w", p.job.Round, err)
	}

	next := p.job.Params.Perturbed(p.delta, -p.job.StepSize*grad)
	next.Round = p.job.Round + 1
	if err := next.Validate(); err != nil {
		c.setState(StateIdle)
		metrics.RecordFineTuneRound("failed", p.job.Round, 0)
		return nil, fmt.Errorf("round %d update: %w", p.job.Round, err)
	}

	c.mu.Lock()
	c.params = next
	c.round = next.Round
	c.lastLoss = loss
	c.state = StatePublished
	c.mu.Unlock()

	rc := &RoundComplete{
		JobID:       p.job.JobID,
		Round:       next.Round,
		Params:      next.Clone(),
		Gradient:    grad,
		StepSize:    p.job.StepSize,
		Loss:        loss,
		Workers:     len(results),
		Samples:     samples,
		CompletedAt: time.Now().UTC(),
	}
	c.broadcast(ctx, rc)
	c.setState(StateIdle)

	metrics.RecordFineTuneRound("published", rc.Round, loss)
	c.logger.Info().
		Uint64("round", rc.Round).
		Float64("gradient", grad).
		Float64("loss", loss).
		Int("workers", rc.Workers).
		Int("samples", samples).
		Msg("Published fine-tuning round")
	return rc, nil
}

// broadcast publishes rc and hands it to onPublish. The update is already
// applied locally, so failures here are logged rather than returned.
func (c *Coordinator) broadcast(ctx context.Context, rc *RoundComplete) {
	msg, err := pubsub.NewMessage(TypeRoundComplete, rc.dedupKey(), rc)
	if err == nil {
		err = c.publisher.Publish(c.cfg.ModelSyncTopic, msg)
	}
	if err != nil {
		c.logger.Warn().Err(err).Uint64("round", rc.Round).Msg("Failed to publish model sync")
	}
	if c.onPublish != nil {
		if err := c.onPublish(ctx, rc); err != nil {
			c.logger.Error().Err(err).Uint64("round", rc.Round).Msg("Failed to adopt published parameters")
		}
	}
}

// HandleResult records a worker result. Results for another job, from a
// worker already counted, or with a non-finite estimate are ignored.
func (c *Coordinator) HandleResult(r PartialResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pending
	if p == nil || r.JobID != p.job.JobID {
		metrics.FineTuneWorkerResults.WithLabelValues("stale").Inc()
		return false
	}
	if _, dup := p.results[r.WorkerID]; dup {
		metrics.FineTuneWorkerResults.WithLabelValues("duplicate").Inc()
		return false
	}
	if math.IsNaN(r.Estimate) || math.IsInf(r.Estimate, 0) {
		metrics.FineTuneWorkerResults.WithLabelValues("stale").Inc()
		c.logger.Warn().Str("worker_id", r.WorkerID).Msg("Ignoring non-finite estimate")
		return false
	}
	p.results[r.WorkerID] = r
	metrics.FineTuneWorkerResults.WithLabelValues("accepted").Inc()
	if len(p.results) >= p.quorum && !p.closed {
		p.closed = true
		close(p.ready)
	}
	return true
}

// HandleMessage is the router handler for the results topic.
func (c *Coordinator) HandleMessage(msg *message.Message) error {
	var r PartialResult
	if err := pubsub.Decode(msg, &r); err != nil {
		c.logger.Warn().Err(err).Msg("Dropping undecodable result")
		return nil
	}
	c.HandleResult(r)
	return nil
}

// Register subscribes the coordinator to the results topic on r.
func (c *Coordinator) Register(r *pubsub.Router, subscriber message.Subscriber, resultsTopic string) {
	r.AddConsumerHandler("finetune.coordinator", resultsTopic, subscriber, c.HandleMessage)
}

// SyncHandler returns a model-sync handler that passes each RoundComplete
// to apply. Replicas use it to adopt parameters published elsewhere.
func SyncHandler(apply func(ctx context.Context, rc *RoundComplete) error) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var rc RoundComplete
		if err := pubsub.Decode(msg, &rc); err != nil {
			return nil
		}
		if rc.Params == nil {
			return nil
		}
		return apply(msg.Context(), &rc)
	}
}
