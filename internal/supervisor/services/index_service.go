// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/hypergraph"
)

// IndexMaintainer rebuilds the similarity index when it drifts and folds
// old hyperedges into aggregates.
type IndexMaintainer interface {
	MaintainIndex(ctx context.Context) (bool, error)
	Compact(ctx context.Context) (hypergraph.CompactResult, error)
}

// IndexMaintenanceConfig holds the two maintenance cadences. A zero
// interval disables that task.
type IndexMaintenanceConfig struct {
	RebuildInterval time.Duration
	CompactInterval time.Duration
}

// IndexMaintenanceService checks the index for a pending rebuild on one
// ticker and compacts the hyperedge log on another.
type IndexMaintenanceService struct {
	engine IndexMaintainer
	config IndexMaintenanceConfig
	logger zerolog.Logger
	name   string
}

// NewIndexMaintenanceService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewIndexMaintenanceService(engine IndexMaintainer, cfg IndexMaintenanceConfig, logger zerolog.Logger) *IndexMaintenanceService {
	return &IndexMaintenanceService{
		engine: engine,
		config: cfg,
		logger: logger.With().Str("service", "index-maintenance").Logger(),
		name:   "index-maintenance",
	}
}

// Serve implements suture.Service.
func (s *IndexMaintenanceService) Serve(ctx context.Context) error {
	rebuildC, stopRebuild := tickerChan(s.config.RebuildInterval)
	defer stopRebuild()
	compactC, stopCompact := tickerChan(s.config.CompactInterval)
	defer stopCompact()

	s.logger.Info().
		Dur("rebuild_interval", s.config.RebuildInterval).
		Dur("compact_interval", s.config.CompactInterval).
		Msg("index maintenance running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-rebuildC:
			rebuilt, err := s.engine.MaintainIndex(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				s.logger.Warn().Err(err).Msg("index rebuild failed, previous generation still serving")
			case rebuilt:
				s.logger.Debug().Msg("index rebuilt")
			}

		case <-compactC:
			if _, err := s.engine.Compact(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("hyperedge compaction failed")
			}
		}
	}
}

// String returns the service name for logging.
func (s *IndexMaintenanceService) String() string {
	return s.name
}

// tickerChan returns a ticker channel, or a nil channel that never fires
// when interval is not positive.
func tickerChan(interval time.Duration) (<-chan time.Time, func()) {
	if interval <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(interval)
	return t.C, t.Stop
}
