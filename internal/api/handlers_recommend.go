// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ruvector/internal/recommend"
	"github.com/tomtom215/ruvector/internal/validation"
)

// pathID reads and checks an entity id URL parameter, writing a 400 when it
// is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if !validation.IsEntityID(id) {
		NewResponseWriter(w, r).BadRequest("Invalid " + name)
		return "", false
	}
	return id, true
}

// Recommendations handles GET /api/v1/recommendations/{userID}. The seed may
// be a user or a media item.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	seed, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	params, ok := queryParams(w, r)
	if !ok {
		return
	}

	resp, err := h.engine.Recommend(r.Context(), seed, params.toQuery())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(resp, len(resp.Items))
}

// Similar handles GET /api/v1/similar/{itemID}.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	item, ok := pathID(w, r, "itemID")
	if !ok {
		return
	}
	params, ok := queryParams(w, r)
	if !ok {
		return
	}

	resp, err := h.engine.Similar(r.Context(), item, params.toQuery())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(resp, len(resp.Items))
}

// MultiSeed handles POST /api/v1/recommendations/multi-seed.
func (h *Handler) MultiSeed(w http.ResponseWriter, r *http.Request) {
	var req MultiSeedRequest
	if !readBody(w, r, &req) {
		return
	}

	q := req.toQuery()
	q.Aggregation = recommend.Aggregation(req.Aggregation)
	resp, err := h.engine.MultiSeed(r.Context(), req.SeedIDs, q)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(resp, len(resp.Items))
}

// Trending handles GET /api/v1/trending.
func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	params, ok := queryParams(w, r)
	if !ok {
		return
	}

	resp, err := h.engine.Trending(r.Context(), params.toQuery())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(resp, len(resp.Items))
}

// ExplainResponse lists why an item relates to a seed.
type ExplainResponse struct {
	SeedID  string   `json:"seed_id"`
	ItemID  string   `json:"item_id"`
	Reasons []string `json:"reasons"`
}

// Explain handles GET /api/v1/explain?seed_id=&item_id=.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	req := ExplainRequest{
		SeedID: r.URL.Query().Get("seed_id"),
		ItemID: r.URL.Query().Get("item_id"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	reasons, err := h.engine.Explain(r.Context(), req.SeedID, req.ItemID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(ExplainResponse{SeedID: req.SeedID, ItemID: req.ItemID, Reasons: reasons})
}
