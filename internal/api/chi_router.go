// RuVector - Hypergraph Media Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ruvector

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ruvector/internal/middleware"
)

// chiMiddleware adapts a func(http.HandlerFunc) http.HandlerFunc middleware
// to chi's signature.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil config uses defaults.
func NewRouter(handler *Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler
	mw := router.chiMiddleware

	// Global stack, applied to every route in order.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(mw.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(mw.MaxBodySize())
		r.Use(mw.Timeout())
		r.Use(chiMiddleware(middleware.Compression))

		// Queries
		r.Get("/recommendations/{userID}", h.Recommendations)
		r.Post("/recommendations/multi-seed", h.MultiSeed)
		r.Get("/similar/{itemID}", h.Similar)
		r.Get("/trending", h.Trending)
		r.Get("/explain", h.Explain)

		// Ingestion
		r.Post("/interactions", h.RecordInteraction)
		r.Post("/media", h.RegisterMedia)
		r.Delete("/media/{itemID}", h.DeactivateMedia)

		// Learning jobs
		r.Get("/fine-tune", h.FineTuneJobs)
		r.Get("/fine-tune/{jobID}", h.FineTuneJob)

		r.Get("/stats", h.Stats)
		r.Get("/export", h.Export)
		r.Get("/snapshots", h.ListSnapshots)

		// Whole-engine writes get a tighter limit.
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimitCustom(RateLimitWrite))
			r.Post("/initialize", h.Initialize)
			r.Post("/fine-tune", h.SubmitFineTune)
			r.Post("/import", h.Import)
			r.Post("/snapshots", h.CreateSnapshot)
		})
	})

	return r
}
