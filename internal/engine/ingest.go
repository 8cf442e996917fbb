// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/rverrors"
)

// InteractionInput is a user-to-media interaction.
type InteractionInput struct {
	UserID string
	ItemID string
	Type   hypergraph.InteractionType

	// Weight overrides the per-type default when non-nil.
	Weight    *float64
	Timestamp time.Time
}

// RegisterMedia registers a media item and links its attribute entities.
// Re-registering an existing item is a no-op. Once the index is built a
// new item is embedded and inserted right away; a failed insert is logged
// and left to the next rebuild.
func (e *Engine) RegisterMedia(ctx context.Context, id string, features hypergraph.Features) (uint64, error) {
	_, existed := e.graph.Entity(id)
	version, err := e.graph.RegisterMedia(id, features)
	if err != nil || existed {
		return version, err
	}
	if err := e.indexMedia(ctx, id); err != nil {
		if ctx.Err() != nil {
			return version, ctx.Err()
		}
		e.logger.Warn().Err(err).Str("media_id", id).Msg("Incremental index insert failed; deferring to rebuild")
	}
	return version, nil
}

// RecordInteraction appends a user-media hyperedge. Unknown users are
// registered on first contact; the item must already be registered media.
func (e *Engine) RecordInteraction(_ context.Context, in InteractionInput) (hypergraph.RecordResult, error) {
	item, ok := e.graph.Entity(in.ItemID)
	if !ok {
		return hypergraph.RecordResult{}, fmt.Errorf("%w: %s", rverrors.ErrUnknownEntity, in.ItemID)
	}
	if item.Kind != hypergraph.KindMedia {
		return hypergraph.RecordResult{}, fmt.Errorf("%w: %s is a %s, not media", rverrors.ErrUnknownEntity, in.ItemID, item.Kind)
	}
	if _, err := e.graph.RegisterEntity(in.UserID, hypergraph.KindUser, nil); err != nil {
		return hypergraph.RecordResult{}, err
	}
	return e.graph.RecordInteraction(hypergraph.Interaction{
		EntityIDs: []string{in.UserID, in.ItemID},
		Type:      in.Type,
		Weight:    in.Weight,
		Timestamp: in.Timestamp,
	})
}

// DeactivateMedia hides a media item from every result and removes it
// from the in-process index.
func (e *Engine) DeactivateMedia(_ context.Context, id string) error {
	ent, ok := e.graph.Entity(id)
	if !ok || ent.Kind != hypergraph.KindMedia {
		return fmt.Errorf("%w: %s", rverrors.ErrUnknownEntity, id)
	}
	if _, err := e.graph.Deactivate(id); err != nil {
		return err
	}
	if e.index != nil {
		if err := e.index.Remove(id); err != nil && !errors.Is(err, rverrors.ErrIndexNotBuilt) {
			return err
		}
	}
	e.recs.InvalidateCache()
	return nil
}
