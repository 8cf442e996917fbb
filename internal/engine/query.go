// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"context"

	"github.com/tomtom215/ruvector/internal/recommend"
)

// Recommend returns recommendations seeded by a user or item id.
func (e *Engine) Recommend(ctx context.Context, seedID string, q recommend.Query) (*recommend.Response, error) {
	return e.recs.Recommend(ctx, seedID, q)
}

// Similar returns media similar to itemID, blending co-interaction.
func (e *Engine) Similar(ctx context.Context, itemID string, q recommend.Query) (*recommend.Response, error) {
	return e.recs.Similar(ctx, itemID, q)
}

// MultiSeed fuses per-seed result lists.
func (e *Engine) MultiSeed(ctx context.Context, seedIDs []string, q recommend.Query) (*recommend.Response, error) {
	return e.recs.MultiSeed(ctx, seedIDs, q)
}

// Trending returns media ranked by decayed interaction weight.
func (e *Engine) Trending(ctx context.Context, q recommend.Query) (*recommend.Response, error) {
	return e.recs.Trending(ctx, q)
}

// Explain returns the reasons itemID is related to seedID.
func (e *Engine) Explain(ctx context.Context, seedID, itemID string) ([]string, error) {
	return e.recs.Explain(ctx, seedID, itemID)
}

// RecommendConfig returns the effective query settings.
func (e *Engine) RecommendConfig() recommend.Config {
	return e.recs.Config()
}
