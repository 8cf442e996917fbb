// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package finetune

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ruvector/internal/docstore"
	"github.com/tomtom215/ruvector/internal/embedding"
)

type fakeRunner struct {
	round  uint64
	failAt int
	quorum []int
}

func (f *fakeRunner) Run(ctx context.Context, rounds, quorum int, onRound func(*RoundComplete)) ([]*RoundComplete, error) {
	f.quorum = append(f.quorum, quorum)
	var out []*RoundComplete
	for i := 0; i < rounds; i++ {
		if f.failAt > 0 && i+1 == f.failAt {
			return out, ErrQuorumTimeout
		}
		f.round++
		rc := &RoundComplete{Round: f.round, Params: embedding.IdentityParams(2), Loss: 1 / float64(f.round)}
		out = append(out, rc)
		onRound(rc)
	}
	return out, nil
}

func TestJobManager_Lifecycle(t *testing.T) {
	t.Parallel()

	store := docstore.NewMemory()
	runner := &fakeRunner{round: 4}
	m := NewJobManager(JobManagerConfig{SubmitRate: rate.Inf}, store, runner, zerolog.Nop())
	defer m.Close()

	job, err := m.Submit(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.Status != JobPending {
		t.Errorf("status = %s, want pending", job.Status)
	}
	m.Wait()

	got, err := m.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != JobCompleted || got.CompletedRounds != 3 || got.Progress != 1 {
		t.Errorf("job = %+v", got)
	}
	if got.StartRound != 4 || got.CurrentRound != 7 || len(got.Losses) != 3 {
		t.Errorf("rounds %d..%d losses %v", got.StartRound, got.CurrentRound, got.Losses)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps not recorded")
	}
	if len(runner.quorum) != 1 || runner.quorum[0] != 2 {
		t.Errorf("runner quorum = %v, want [2]", runner.quorum)
	}
}

func TestJobManager_Failure(t *testing.T) {
	t.Parallel()

	m := NewJobManager(JobManagerConfig{SubmitRate: rate.Inf}, docstore.NewMemory(), &fakeRunner{failAt: 2}, zerolog.Nop())
	defer m.Close()

	job, err := m.Submit(context.Background(), 5, 1)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	m.Wait()

	got, err := m.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != JobFailed || got.CompletedRounds != 1 || got.Error == "" {
		t.Errorf("job = %+v", got)
	}

	counts, err := m.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if counts[JobFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestJobManager_ValidationAndLimits(t *testing.T) {
	t.Parallel()

	m := NewJobManager(JobManagerConfig{SubmitRate: rate.Every(1 << 40), SubmitBurst: 1, MaxRounds: 10},
		docstore.NewMemory(), &fakeRunner{}, zerolog.Nop())

	if _, err := m.Submit(context.Background(), 0, 1); err == nil {
		t.Error("expected error for zero rounds")
	}
	if _, err := m.Submit(context.Background(), 11, 1); err == nil {
		t.Error("expected error above max rounds")
	}
	if _, err := m.Submit(context.Background(), 1, 1); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := m.Submit(context.Background(), 1, 1); !errors.Is(err, ErrTooManyJobs) {
		t.Errorf("error = %v, want ErrTooManyJobs", err)
	}

	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrJobNotFound", err)
	}

	m.Close()
	jobs, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("List() = %d jobs, want 1", len(jobs))
	}
}
