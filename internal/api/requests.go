// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ruvector/internal/recommend"
	"github.com/tomtom215/ruvector/internal/validation"
)

const day = 24 * time.Hour

// QueryParams are the options shared by the recommendation routes. GET
// routes read them from the query string; multi-seed embeds them in the body.
type QueryParams struct {
	Limit       int      `json:"limit" validate:"gte=0,lte=1000"`
	ExcludeSeen bool     `json:"exclude_seen"`
	UserID      string   `json:"user_id" validate:"omitempty,entityid"`
	Categories  []string `json:"categories" validate:"max=32,dive,min=1,max=128"`
	RecencyDays int      `json:"recency_days" validate:"gte=0,lte=36500"`
	Explain     bool     `json:"explain"`
}

// toQuery converts validated params to a recommend.Query.
func (p *QueryParams) toQuery() recommend.Query {
	return recommend.Query{
		Limit:         p.Limit,
		ExcludeSeen:   p.ExcludeSeen,
		UserID:        p.UserID,
		Categories:    p.Categories,
		RecencyWindow: time.Duration(p.RecencyDays) * day,
		Explain:       p.Explain,
	}
}

// MultiSeedRequest is the body of POST /recommendations/multi-seed.
type MultiSeedRequest struct {
	QueryParams
	SeedIDs     []string `json:"seed_ids" validate:"required,min=1,max=50,dive,entityid"`
	Aggregation string   `json:"aggregation" validate:"omitempty,oneof=rank score"`
}

// ExplainRequest holds the query parameters of GET /explain.
type ExplainRequest struct {
	SeedID string `validate:"required,entityid"`
	ItemID string `validate:"required,entityid"`
}

// InteractionRequest is the body of POST /interactions.
type InteractionRequest struct {
	UserID    string     `json:"user_id" validate:"required,entityid"`
	ItemID    string     `json:"item_id" validate:"required,entityid"`
	Type      string     `json:"type" validate:"required,oneof=view like skip complete"`
	Weight    *float64   `json:"weight,omitempty" validate:"omitempty,gte=-100,lte=100"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// MediaRequest is the body of POST /media. An empty id is replaced with a
// generated one.
type MediaRequest struct {
	ID       string                 `json:"id" validate:"omitempty,entityid"`
	Features map[string]interface{} `json:"features" validate:"max=64,dive,keys,featurekey,endkeys"`
}

// FineTuneRequest is the body of POST /fine-tune.
type FineTuneRequest struct {
	Rounds     int `json:"rounds" validate:"gte=0,lte=1000"`
	NumWorkers int `json:"num_workers" validate:"gte=0,lte=64"`
}

// defaultFineTuneRounds applies when a fine-tune request omits rounds.
const defaultFineTuneRounds = 5

// validateRequest runs struct validation and returns the API error to send,
// or nil.
func validateRequest(v interface{}) *APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	apiErr := verr.ToAPIError()
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// errEmptyBody is returned by decodeJSON for a missing body.
var errEmptyBody = errors.New("request body is empty")

// decodeJSON decodes a single JSON object from the request body.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// readBody decodes and validates a JSON body, writing the error response on
// failure. It reports whether the handler should continue.
func readBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(r, dst); err != nil {
		if isBodyTooLarge(err) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Request body too large")
			return false
		}
		NewResponseWriter(w, r).BadRequest("Invalid JSON body: " + err.Error())
		return false
	}
	if apiErr := validateRequest(dst); apiErr != nil {
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// parseQueryParams reads the shared recommendation options from the URL.
// "genres" is accepted as an alias for "categories" and
// "include_explanation" for "explain".
func parseQueryParams(r *http.Request) (*QueryParams, error) {
	q := r.URL.Query()
	p := &QueryParams{UserID: q.Get("user_id")}

	var err error
	if p.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		return nil, fmt.Errorf("limit: %w", err)
	}
	if p.RecencyDays, err = intParam(q.Get("recency_days"), 0); err != nil {
		return nil, fmt.Errorf("recency_days: %w", err)
	}
	if p.ExcludeSeen, err = boolParam(q.Get("exclude_seen")); err != nil {
		return nil, fmt.Errorf("exclude_seen: %w", err)
	}
	explain := q.Get("explain")
	if explain == "" {
		explain = q.Get("include_explanation")
	}
	if p.Explain, err = boolParam(explain); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	cats := q.Get("categories")
	if cats == "" {
		cats = q.Get("genres")
	}
	p.Categories = parseCommaSeparated(cats)
	return p, nil
}

// queryParams parses and validates the shared options, writing the error
// response on failure.
func queryParams(w http.ResponseWriter, r *http.Request) (*QueryParams, bool) {
	p, err := parseQueryParams(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest("Invalid query parameter " + err.Error())
		return nil, false
	}
	if apiErr := validateRequest(p); apiErr != nil {
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return nil, false
	}
	return p, true
}

func intParam(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}

func boolParam(value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}

// parseCommaSeparated splits a comma-separated list, dropping blanks.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
