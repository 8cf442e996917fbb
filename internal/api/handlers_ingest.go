// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ruvector/internal/engine"
	"github.com/tomtom215/ruvector/internal/hypergraph"
)

// InteractionResponse describes a recorded interaction.
type InteractionResponse struct {
	EdgeID    string    `json:"edge_id"`
	Seq       uint64    `json:"seq"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
	Version   uint64    `json:"graph_version"`
	Duplicate bool      `json:"duplicate"`
}

// RecordInteraction handles POST /api/v1/interactions. Unknown users are
// registered on first use; the item must already exist.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if !readBody(w, r, &req) {
		return
	}

	in := engine.InteractionInput{
		UserID: req.UserID,
		ItemID: req.ItemID,
		Type:   hypergraph.InteractionType(req.Type),
		Weight: req.Weight,
	}
	if req.Timestamp != nil {
		in.Timestamp = *req.Timestamp
	}

	res, err := h.engine.RecordInteraction(r.Context(), in)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	out := InteractionResponse{Version: res.Version, Duplicate: res.Duplicate}
	if res.Edge != nil {
		out.EdgeID = res.Edge.Hash
		out.Seq = res.Edge.Seq
		out.Weight = res.Edge.Weight
		out.Timestamp = res.Edge.Timestamp
	}
	rw := NewResponseWriter(w, r)
	if res.Duplicate {
		rw.Success(out)
		return
	}
	rw.Created(out)
}

// MediaResponse describes a registered media item.
type MediaResponse struct {
	MediaID string `json:"media_id"`
	Version uint64 `json:"graph_version"`
}

// RegisterMedia handles POST /api/v1/media. Genre, cast and director
// features become attribute entities linked to the item.
func (h *Handler) RegisterMedia(w http.ResponseWriter, r *http.Request) {
	var req MediaRequest
	if !readBody(w, r, &req) {
		return
	}

	features, err := hypergraph.ParseFeatures(req.Features)
	if err != nil {
		NewResponseWriter(w, r).ValidationError(err.Error(), nil)
		return
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	version, err := h.engine.RegisterMedia(r.Context(), id, features)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(MediaResponse{MediaID: id, Version: version})
}

// DeactivateMedia handles DELETE /api/v1/media/{itemID}. The item stays in
// the graph but is no longer recommended.
func (h *Handler) DeactivateMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.engine.DeactivateMedia(r.Context(), id); err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"media_id": id, "status": "inactive"})
}
