// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SubmitFineTune handles POST /api/v1/fine-tune. The job runs in the
// background; poll GET /fine-tune/{jobID} for progress.
func (h *Handler) SubmitFineTune(w http.ResponseWriter, r *http.Request) {
	var req FineTuneRequest
	if !readBody(w, r, &req) {
		return
	}
	if req.Rounds == 0 {
		req.Rounds = defaultFineTuneRounds
	}

	job, err := h.engine.SubmitFineTune(r.Context(), req.Rounds, req.NumWorkers)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/fine-tune/"+job.ID)
	NewResponseWriter(w, r).Accepted(job)
}

// FineTuneJobs handles GET /api/v1/fine-tune.
func (h *Handler) FineTuneJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.engine.FineTuneJobs(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).List(jobs, len(jobs))
}

// FineTuneJob handles GET /api/v1/fine-tune/{jobID}.
func (h *Handler) FineTuneJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if id == "" {
		NewResponseWriter(w, r).BadRequest("Invalid jobID")
		return
	}
	job, err := h.engine.FineTuneJob(r.Context(), id)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(job)
}
