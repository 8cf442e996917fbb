// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/ruvector/internal/embedding"
	"github.com/tomtom215/ruvector/internal/engine"
	"github.com/tomtom215/ruvector/internal/finetune"
	"github.com/tomtom215/ruvector/internal/hypergraph"
	"github.com/tomtom215/ruvector/internal/logging"
	"github.com/tomtom215/ruvector/internal/recommend"
	"github.com/tomtom215/ruvector/internal/rverrors"
	"github.com/tomtom215/ruvector/internal/snapshot"
)

// errorMapping maps a sentinel error to a status and code. Entries are
// checked in order with errors.Is.
type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{rverrors.ErrUnknownEntity, http.StatusNotFound, ErrCodeUnknownEntity},
	{finetune.ErrJobNotFound, http.StatusNotFound, ErrCodeJobNotFound},
	{snapshot.ErrSnapshotNotFound, http.StatusNotFound, ErrCodeNotFound},
	{snapshot.ErrNoSnapshot, http.StatusNotFound, ErrCodeNotFound},
	{rverrors.ErrDuplicateKindConflict, http.StatusConflict, ErrCodeKindConflict},
	{engine.ErrNotInitialized, http.StatusConflict, ErrCodeNotInitialized},
	{finetune.ErrRoundInProgress, http.StatusConflict, ErrCodeConflict},
	{finetune.ErrTooManyJobs, http.StatusTooManyRequests, ErrCodeTooManyRequests},
	{rverrors.ErrCorruptSnapshot, http.StatusBadRequest, ErrCodeCorruptSnapshot},
	{embedding.ErrDimensionMismatch, http.StatusBadRequest, ErrCodeDimensionMismatch},
	{hypergraph.ErrInvalidFeatures, http.StatusBadRequest, ErrCodeValidationFailed},
	{hypergraph.ErrInvalidEntity, http.StatusBadRequest, ErrCodeValidationFailed},
	{hypergraph.ErrInvalidInteraction, http.StatusBadRequest, ErrCodeValidationFailed},
	{finetune.ErrInvalidJob, http.StatusBadRequest, ErrCodeValidationFailed},
	{recommend.ErrNoSeeds, http.StatusBadRequest, ErrCodeValidationFailed},
	{finetune.ErrManagerClosed, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{rverrors.ErrQuorumTimeout, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
}

// respondEngineError writes the response for an engine error. Unmapped
// errors are logged and reported as 500 without their text.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			WriteError(w, r, m.status, m.code, err.Error())
			return
		}
	}
	if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Request failed")
	NewResponseWriter(w, r).InternalError("Internal server error")
}
