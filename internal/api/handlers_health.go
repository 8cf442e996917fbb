// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probes. It returns 200 while the process is
// serving, regardless of engine state.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probes. The node is ready once the engine
// has been initialized; until then it answers 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.engine.Initialized()
	data := map[string]interface{}{
		"initialized":    ready,
		"ready_to_serve": ready,
		"uptime":         time.Since(h.startTime).Seconds(),
	}
	rw := NewResponseWriter(w, r)
	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Engine not initialized", data)
		return
	}
	rw.Success(data)
}
