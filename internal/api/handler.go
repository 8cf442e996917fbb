// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/engine"
	"github.com/tomtom215/ruvector/internal/finetune"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/recommend"
	"github.com/tomtom215/ruvector/internal/snapshot"
)

// Engine is the recommendation engine as seen by the HTTP layer.
// *engine.Engine implements it.
type Engine interface {
	Initialize(ctx context.Context) (*engine.InitResult, error)
	Initialized() bool

	Recommend(ctx context.Context, seedID string, q recommend.Query) (*recommend.Response, error)
	Similar(ctx context.Context, itemID string, q recommend.Query) (*recommend.Response, error)
	MultiSeed(ctx context.Context, seedIDs []string, q recommend.Query) (*recommend.Response, error)
	Trending(ctx context.Context, q recommend.Query) (*recommend.Response, error)
	Explain(ctx context.Context, seedID, itemID string) ([]string, error)

	RegisterMedia(ctx context.Context, id string, features hypergraph.Features) (uint64, error)
	RecordInteraction(ctx context.Context, in engine.InteractionInput) (hypergraph.RecordResult, error)
	DeactivateMedia(ctx context.Context, id string) error

	SubmitFineTune(ctx context.Context, rounds, numWorkers int) (*finetune.Job, error)
	FineTuneJob(ctx context.Context, id string) (*finetune.Job, error)
	FineTuneJobs(ctx context.Context) ([]finetune.Job, error)

	Stats(ctx context.Context) (*engine.Stats, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) (*snapshot.Payload, error)
	Snapshot(ctx context.Context) (*snapshot.Manifest, error)
	ListSnapshots(ctx context.Context) ([]snapshot.Manifest, error)
}

var _ Engine = (*engine.Engine)(nil)

// Handler serves the RuVector HTTP API.
type Handler struct {
	engine    Engine
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandler creates a handler over eng.
func NewHandler(eng Engine, logger zerolog.Logger) *Handler {
	return &Handler{
		engine:    eng,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}
