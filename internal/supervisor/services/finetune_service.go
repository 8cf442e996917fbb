// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/engine"
	"github.com/tomtom215/ruvector/internal/finetune"
)

// RoundRunner runs one fine-tuning round against the configured quorum.
type RoundRunner interface {
	FineTuneRound(ctx context.Context) (*finetune.RoundComplete, error)
}

// FineTuneServiceConfig configures scheduled fine-tuning.
type FineTuneServiceConfig struct {
	Interval time.Duration

	// RoundTimeout bounds a single round including its rebuild. Default: 10m
	RoundTimeout time.Duration
}

// FineTuneService runs a fine-tuning round on a fixed interval.
type FineTuneService struct {
	engine RoundRunner
	config FineTuneServiceConfig
	logger zerolog.Logger
	name   string
}

// NewFineTuneService creates the service. A non-positive interval
// defaults to six hours.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFineTuneService(engine RoundRunner, cfg FineTuneServiceConfig, logger zerolog.Logger) *FineTuneService {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = 10 * time.Minute
	}
	return &FineTuneService{
		engine: engine,
		config: cfg,
		logger: logger.With().Str("service", "finetune").Logger(),
		name:   "finetune-service",
	}
}

// Serve implements suture.Service.
func (s *FineTuneService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("scheduled fine-tuning running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.round(ctx)
		}
	}
}

func (s *FineTuneService) round(ctx context.Context) {
	roundCtx, cancel := context.WithTimeout(ctx, s.config.RoundTimeout)
	defer cancel()

	start := time.Now()
	rc, err := s.engine.FineTuneRound(roundCtx)
	switch {
	case err == nil:
		s.logger.Info().
			Uint64("round", rc.Round).
			Float64("loss", rc.Loss).
			Int("workers", rc.Workers).
			Dur("duration", time.Since(start)).
			Msg("scheduled fine-tuning round complete")
	case errors.Is(err, engine.ErrNotInitialized):
		s.logger.Debug().Msg("engine not initialized, skipping fine-tuning round")
	case errors.Is(err, finetune.ErrRoundInProgress):
		s.logger.Debug().Msg("fine-tuning job in progress, skipping scheduled round")
	case ctx.Err() != nil:
		// shutting down
	case errors.Is(err, finetune.ErrQuorumTimeout):
		s.logger.Warn().Err(err).Msg("fine-tuning quorum not reached, parameters unchanged")
	default:
		s.logger.Error().Err(err).Msg("scheduled fine-tuning round failed")
	}
}

// String returns the service name for logging.
func (s *FineTuneService) String() string {
	return s.name
}
