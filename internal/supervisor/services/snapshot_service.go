// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/snapshot"
)

// Snapshotter writes engine snapshots.
type Snapshotter interface {
	Initialized() bool
	Snapshot(ctx context.Context) (*snapshot.Manifest, error)
}

// SnapshotServiceConfig configures periodic snapshots.
type SnapshotServiceConfig struct {
	Interval time.Duration

	// OnShutdown takes one last snapshot when the service is stopped.
	OnShutdown bool

	// ShutdownTimeout bounds the final snapshot. Default: 30s
	ShutdownTimeout time.Duration
}

// SnapshotService snapshots an initialized engine on a fixed interval.
type SnapshotService struct {
	engine Snapshotter
	config SnapshotServiceConfig
	logger zerolog.Logger
	name   string
}

// NewSnapshotService creates the service. A non-positive interval
// defaults to one hour.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSnapshotService(engine Snapshotter, cfg SnapshotServiceConfig, logger zerolog.Logger) *SnapshotService {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &SnapshotService{
		engine: engine,
		config: cfg,
		logger: logger.With().Str("service", "snapshot").Logger(),
		name:   "snapshot-service",
	}
}

// Serve implements suture.Service.
func (s *SnapshotService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("snapshot service running")

	for {
		select {
		case <-ctx.Done():
			if s.config.OnShutdown {
				// ctx is already canceled.
				finalCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
				s.snapshot(finalCtx)
				cancel()
			}
			return ctx.Err()

		case <-ticker.C:
			s.snapshot(ctx)
		}
	}
}

func (s *SnapshotService) snapshot(ctx context.Context) {
	if !s.engine.Initialized() {
		s.logger.Debug().Msg("engine not initialized, skipping snapshot")
		return
	}
	m, err := s.engine.Snapshot(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("snapshot failed")
		return
	}
	s.logger.Info().
		Str("snapshot_id", m.ID).
		Uint64("generation", m.Generation).
		Int("size", m.Size).
		Msg("snapshot written")
}

// String returns the service name for logging.
func (s *SnapshotService) String() string {
	return s.name
}
