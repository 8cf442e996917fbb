// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package docstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/config"
)

// Open builds the configured backend wrapped with metrics.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(ctx context.Context, cfg *config.StorageConfig, logger zerolog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.DocStore {
	case "", "memory":
		s = NewMemory()
	case "badger":
		s, err = OpenBadger(BadgerConfig{Path: cfg.BadgerPath, SyncWrites: cfg.BadgerSyncWrites}, logger)
	case "dynamodb":
		s, err = OpenDynamo(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, cfg.DynamoTable)
	default:
		return nil, fmt.Errorf("unknown document store %q", cfg.DocStore)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s), nil
}
