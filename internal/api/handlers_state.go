// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/ruvector/internal/engine"
)

// InitializeResponse reports what Initialize did plus the resulting stats.
type InitializeResponse struct {
	*engine.InitResult
	Stats *engine.Stats `json:"stats"`
}

// Initialize handles POST /api/v1/initialize: restore the latest snapshot
// or seed the demo catalogue, then build the index. Repeat calls rebuild.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Initialize(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.logger.Info().
		Str("restored_from", res.RestoredFrom).
		Int("demo_media", res.DemoMedia).
		Msg("Engine initialized via API")
	NewResponseWriter(w, r).Success(InitializeResponse{InitResult: res, Stats: stats})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(stats)
}

// Export handles GET /api/v1/export. The body is the raw state document,
// not wrapped in the response envelope, so it can be posted back to /import.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.Export(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	name := fmt.Sprintf("ruvector-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Export write failed")
	}
}

// ImportResponse summarizes an imported state.
type ImportResponse struct {
	Generation uint64        `json:"generation"`
	Offset     uint64        `json:"offset"`
	Round      uint64        `json:"round"`
	Stats      *engine.Stats `json:"stats"`
}

// Import handles POST /api/v1/import. The body is an export document or a
// compressed snapshot blob; the engine state is replaced only if it is valid.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
			return
		}
		NewResponseWriter(w, r).BadRequest("Failed to read request body")
		return
	}
	if len(data) == 0 {
		NewResponseWriter(w, r).BadRequest("Request body is empty")
		return
	}

	p, err := h.engine.Import(r.Context(), data)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.logger.Info().
		Uint64("generation", p.Generation).
		Uint64("offset", p.Offset).
		Msg("Engine state imported via API")
	NewResponseWriter(w, r).Success(ImportResponse{
		Generation: p.Generation,
		Offset:     p.Offset,
		Round:      p.Optimization.Round,
		Stats:      stats,
	})
}

// CreateSnapshot handles POST /api/v1/snapshots.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	man, err := h.engine.Snapshot(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(man)
}

// ListSnapshots handles GET /api/v1/snapshots.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListSnapshots(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(list, len(list))
}
