// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ruvector/internal/blobstore"
	"github.com/tomtom215/ruvector/internal/config"
	"github.com/tomtom215/ruvector/internal/docstore"
	"github.com/tomtom215/ruvector/internal/engine"
	"github.com/tomtom215/ruvector/internal/recommend"
)

func testEngineConfig() *config.Config {
	cfg := config.Default()
	cfg.Embedding.Dimensions = 8
	cfg.Embedding.WalkLength = 10
	cfg.Embedding.WalksPerEntity = 4
	cfg.Embedding.Workers = 2
	cfg.Index.NumLists = 4
	cfg.Index.ProbedLists = 4
	cfg.FineTune.QuorumTimeout = 5 * time.Second
	cfg.FineTune.ReplaySamples = 64
	cfg.Graph.SeedDemoData = true
	cfg.Recommend.CacheSize = 0
	cfg.Snapshot.Compression = "lz4"
	return cfg
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(context.Background(), testEngineConfig(), zerolog.Nop(),
		engine.WithDocStore(docstore.NewMemory()),
		engine.WithBlobStore(blobstore.NewMemory()),
	)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// newTestServer returns a router over a fresh engine with rate limiting off.
func newTestServer(t *testing.T) (http.Handler, *engine.Engine) {
	t.Helper()
	e := newTestEngine(t)
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 0
	return NewRouter(NewHandler(e, zerolog.Nop()), cfg).SetupChi(), e
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		rdr = bytes.NewReader(b)
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json; charset=utf-8") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (data %s)", err, env.Data)
	}
}

func initialize(t *testing.T, h http.Handler) {
	t.Helper()
	rec, env := do(t, h, http.MethodPost, "/api/v1/initialize", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("initialize status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHealthProbes(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Errorf("live = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil {
		t.Fatalf("ready before initialize = %d, want 503", rec.Code)
	}

	initialize(t, h)
	rec, _ = do(t, h, http.MethodGet, "/api/v1/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready after initialize = %d, want 200", rec.Code)
	}
}

func TestColdStartServesTrending(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)

	for _, id := range []string{"m1", "m2"} {
		rec, _ := do(t, h, http.MethodPost, "/api/v1/media", map[string]interface{}{
			"id":       id,
			"features": map[string]interface{}{"genre": "Drama"},
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("register %s = %d", id, rec.Code)
		}
	}
	rec, _ := do(t, h, http.MethodPost, "/api/v1/interactions", map[string]string{"user_id": "u1", "item_id": "m2", "type": "like"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("interaction = %d, body %s", rec.Code, rec.Body.String())
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/recommendations/u1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp recommend.Response
	decodeData(t, env, &resp)
	if resp.Source != recommend.SourceTrending || resp.FallbackReason != recommend.FallbackIndexNotBuilt {
		t.Errorf("source = %q reason = %q, want trending/index_not_built", resp.Source, resp.FallbackReason)
	}
	if len(resp.Items) == 0 || resp.Items[0].ID != "m2" {
		t.Errorf("items = %+v, want m2 first", resp.Items)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/recommendations/u-nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown seed = %d, want 404", rec.Code)
	}
}

func TestRecommendationsAfterInitialize(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)
	initialize(t, h)

	rec, env := do(t, h, http.MethodGet, "/api/v1/recommendations/u-alice?limit=3&exclude_seen=true&explain=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp recommend.Response
	decodeData(t, env, &resp)
	if len(resp.Items) == 0 || len(resp.Items) > 3 {
		t.Fatalf("got %d items, want 1..3", len(resp.Items))
	}
	if env.Meta == nil || env.Meta.Count == nil || *env.Meta.Count != len(resp.Items) {
		t.Errorf("meta count = %+v, want %d", env.Meta, len(resp.Items))
	}
	seen := map[string]bool{"m-arrival": true, "m-interstellar": true, "m-dune": true}
	for _, it := range resp.Items {
		if seen[it.ID] {
			t.Errorf("item %s already seen by u-alice", it.ID)
		}
		if len(it.Reasons) == 0 {
			t.Errorf("item %s has no reasons", it.ID)
		}
	}
}

func TestQueryRoutes(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)
	initialize(t, h)

	tests := []struct {
		name       string
		method     string
		target     string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"similar", http.MethodGet, "/api/v1/similar/m-arrival?limit=5", nil, http.StatusOK, ""},
		{"similar unknown", http.MethodGet, "/api/v1/similar/m-missing", nil, http.StatusNotFound, ErrCodeUnknownEntity},
		{"trending by genre", http.MethodGet, "/api/v1/trending?genres=drama", nil, http.StatusOK, ""},
		{"bad limit", http.MethodGet, "/api/v1/trending?limit=abc", nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"limit too large", http.MethodGet, "/api/v1/trending?limit=5000", nil, http.StatusBadRequest, ErrCodeValidationFailed},
		{"multi-seed", http.MethodPost, "/api/v1/recommendations/multi-seed",
			map[string]interface{}{"seed_ids": []string{"m-arrival", "m-whiplash"}, "aggregation": "rank"}, http.StatusOK, ""},
		{"multi-seed no seeds", http.MethodPost, "/api/v1/recommendations/multi-seed",
			map[string]interface{}{"seed_ids": []string{}}, http.StatusBadRequest, ErrCodeValidationFailed},
		{"multi-seed bad aggregation", http.MethodPost, "/api/v1/recommendations/multi-seed",
			map[string]interface{}{"seed_ids": []string{"m-dune"}, "aggregation": "median"}, http.StatusBadRequest, ErrCodeValidationFailed},
		{"explain", http.MethodGet, "/api/v1/explain?seed_id=m-arrival&item_id=m-dune", nil, http.StatusOK, ""},
		{"explain missing item", http.MethodGet, "/api/v1/explain?seed_id=m-arrival", nil, http.StatusBadRequest, ErrCodeValidationFailed},
		{"unknown route", http.MethodGet, "/api/v1/nope", nil, http.StatusNotFound, ErrCodeNotFound},
		{"wrong method", http.MethodPut, "/api/v1/trending", nil, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode == "" {
				if !env.Success {
					t.Errorf("success = false, body %s", rec.Body.String())
				}
				return
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestExplainReasons(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)
	initialize(t, h)

	_, env := do(t, h, http.MethodGet, "/api/v1/explain?seed_id=m-arrival&item_id=m-dune", nil)
	var resp ExplainResponse
	decodeData(t, env, &resp)
	found := false
	for _, r := range resp.Reasons {
		if r == "Same director: Denis Villeneuve" {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want shared director", resp.Reasons)
	}
}

func TestIngestRoutes(t *testing.T) {
	t.Parallel()
	h, e := newTestServer(t)

	rec, env := do(t, h, http.MethodPost, "/api/v1/media", map[string]interface{}{
		"id": "m-sicario",
		"features": map[string]interface{}{
			"title":    "Sicario",
			"year":     2015,
			"genres":   []string{"Thriller", "Crime"},
			"director": "Denis Villeneuve",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register media = %d, body %s", rec.Code, rec.Body.String())
	}
	var media MediaResponse
	decodeData(t, env, &media)
	if media.MediaID != "m-sicario" {
		t.Errorf("media_id = %q", media.MediaID)
	}
	if _, ok := e.Graph().Entity("director:denis_villeneuve"); !ok {
		t.Error("director attribute entity not created")
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/media", map[string]interface{}{"features": map[string]interface{}{"title": "Untitled"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register without id = %d", rec.Code)
	}
	decodeData(t, env, &media)
	if media.MediaID == "" {
		t.Error("expected generated media id")
	}

	tests := []struct {
		name       string
		target     string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"interaction", "/api/v1/interactions",
			map[string]interface{}{"user_id": "u-zoe", "item_id": "m-sicario", "type": "like"}, http.StatusCreated, ""},
		{"interaction unknown item", "/api/v1/interactions",
			map[string]interface{}{"user_id": "u-zoe", "item_id": "m-missing", "type": "view"}, http.StatusNotFound, ErrCodeUnknownEntity},
		{"interaction bad type", "/api/v1/interactions",
			map[string]interface{}{"user_id": "u-zoe", "item_id": "m-sicario", "type": "rate"}, http.StatusBadRequest, ErrCodeValidationFailed},
		{"user id owned by media", "/api/v1/interactions",
			map[string]interface{}{"user_id": "m-sicario", "item_id": "m-sicario", "type": "view"}, http.StatusConflict, ErrCodeKindConflict},
		{"malformed json", "/api/v1/interactions", "{", http.StatusBadRequest, ErrCodeBadRequest},
		{"empty body", "/api/v1/interactions", "", http.StatusBadRequest, ErrCodeBadRequest},
		{"bad feature key", "/api/v1/media",
			map[string]interface{}{"id": "m-x", "features": map[string]interface{}{"Bad Key": "x"}}, http.StatusBadRequest, ErrCodeValidationFailed},
		{"nested feature", "/api/v1/media",
			map[string]interface{}{"id": "m-y", "features": map[string]interface{}{"meta": map[string]string{"a": "b"}}}, http.StatusBadRequest, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" && (env.Error == nil || env.Error.Code != tt.wantCode) {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/media/m-sicario", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate = %d", rec.Code)
	}
	if ent, _ := e.Graph().Entity("m-sicario"); ent.Active {
		t.Error("m-sicario still active")
	}
	rec, _ = do(t, h, http.MethodDelete, "/api/v1/media/m-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deactivate unknown = %d, want 404", rec.Code)
	}
}

func TestFineTuneRoutes(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)

	rec, env := do(t, h, http.MethodPost, "/api/v1/fine-tune", map[string]int{"rounds": 1})
	if rec.Code != http.StatusConflict || env.Error == nil || env.Error.Code != ErrCodeNotInitialized {
		t.Fatalf("fine-tune before initialize = %d %+v, want 409 NOT_INITIALIZED", rec.Code, env.Error)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/fine-tune", map[string]int{"rounds": 5000})
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("rounds out of range = %d, want 400", rec.Code)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/fine-tune/does-not-exist", nil)
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeJobNotFound {
		t.Errorf("unknown job = %d %+v, want 404", rec.Code, env.Error)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/fine-tune", nil)
	if rec.Code != http.StatusOK || env.Meta.Count == nil || *env.Meta.Count != 0 {
		t.Errorf("list jobs = %d meta %+v, want empty list", rec.Code, env.Meta)
	}
}

func TestStatsExportImport(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/export", nil)
	if rec.Code != http.StatusConflict || env.Error.Code != ErrCodeNotInitialized {
		t.Fatalf("export before initialize = %d", rec.Code)
	}

	initialize(t, h)

	rec, env = do(t, h, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d", rec.Code)
	}
	var stats engine.Stats
	decodeData(t, env, &stats)
	if !stats.Initialized || stats.Graph.EntitiesByKind["media"] != 10 || !stats.Index.Built {
		t.Errorf("stats = %+v", stats)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "attachment") {
		t.Error("export missing Content-Disposition")
	}
	exported := rec.Body.Bytes()

	// A second node imports the export and answers the same query.
	other, _ := newTestServer(t)
	rec, env = do(t, other, http.MethodPost, "/api/v1/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d, body %s", rec.Code, rec.Body.String())
	}
	var imp ImportResponse
	decodeData(t, env, &imp)
	if imp.Generation != stats.Embeddings.Generation {
		t.Errorf("imported generation = %d, want %d", imp.Generation, stats.Embeddings.Generation)
	}

	_, want := do(t, h, http.MethodGet, "/api/v1/recommendations/u-bob?limit=4", nil)
	_, got := do(t, other, http.MethodGet, "/api/v1/recommendations/u-bob?limit=4", nil)
	var wantResp, gotResp recommend.Response
	decodeData(t, want, &wantResp)
	decodeData(t, got, &gotResp)
	if len(wantResp.Items) != len(gotResp.Items) {
		t.Fatalf("imported node returned %d items, want %d", len(gotResp.Items), len(wantResp.Items))
	}
	for i := range wantResp.Items {
		if wantResp.Items[i].ID != gotResp.Items[i].ID {
			t.Errorf("item %d = %s, want %s", i, gotResp.Items[i].ID, wantResp.Items[i].ID)
		}
	}

	rec, env = do(t, other, http.MethodPost, "/api/v1/import", "not a snapshot")
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeCorruptSnapshot {
		t.Errorf("corrupt import = %d %+v, want 400 CORRUPT_SNAPSHOT", rec.Code, env.Error)
	}
	rec, _ = do(t, other, http.MethodPost, "/api/v1/import", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty import = %d, want 400", rec.Code)
	}
}

func TestSnapshotRoutes(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)
	initialize(t, h)

	rec, env := do(t, h, http.MethodPost, "/api/v1/snapshots", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create snapshot = %d, body %s", rec.Code, rec.Body.String())
	}
	var man struct {
		Key   string `json:"key"`
		Codec string `json:"codec"`
	}
	decodeData(t, env, &man)
	if man.Key == "" || man.Codec != "lz4" {
		t.Errorf("manifest = %+v", man)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/snapshots", nil)
	if rec.Code != http.StatusOK || env.Meta.Count == nil || *env.Meta.Count != 1 {
		t.Errorf("list snapshots = %d meta %+v, want 1", rec.Code, env.Meta)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	h, _ := newTestServer(t)
	do(t, h, http.MethodGet, "/api/v1/health/live", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ruvector_api_requests_total") {
		t.Error("metrics output missing ruvector_api_requests_total")
	}
}
